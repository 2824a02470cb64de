// Command validate provides a small CLI that validates level configuration
// JSON files. It checks:
//   - JSON structure
//   - Grid consistency and allowed characters (R, S, X, F, B)
//   - Exactly one start (S), at least one finish (F) and enough junctions (X)
//   - Everything the engine checks when it loads a level (headings, turn
//     counts, legend, messages, course winnability)
//   - Connectivity: a finish is reachable from the start over road cells
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/level"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration JSON file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var config engine.LevelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	// Validate grid
	if len(config.Layout) == 0 {
		result.fail("Layout is empty")
	}

	gridWidth := -1
	startCount, junctionCount, finishCount := 0, 0, 0
	validChars := map[rune]bool{
		'R': true, // Road
		'S': true, // Start
		'X': true, // Intersection
		'F': true, // Finish
		'B': true, // Building
	}

	for i, row := range config.Layout {
		if gridWidth == -1 {
			gridWidth = len(row)
		} else if len(row) != gridWidth {
			result.fail("Inconsistent grid width at row %d: expected %d, got %d", i+1, gridWidth, len(row))
		}

		for j, char := range row {
			if !validChars[char] {
				result.fail("Invalid character '%c' at position [%d,%d]", char, i+1, j+1)
			}
			switch char {
			case 'S':
				startCount++
			case 'X':
				junctionCount++
			case 'F':
				finishCount++
			}
		}
	}

	if startCount != 1 {
		result.fail("Must have exactly 1 start (S) cell, found %d", startCount)
	}
	if finishCount == 0 {
		result.fail("Must have at least 1 finish (F) cell")
	}
	if junctionCount < config.RequiredTurns {
		result.fail("Needs at least %d intersection (X) cells for %d required turns, found %d",
			config.RequiredTurns, config.RequiredTurns, junctionCount)
	}

	if !result.Valid {
		return result
	}

	// Connectivity before the engine's course check, so a cut-off finish
	// gets the clearer report.
	reachability := validateConnectivity(config.Layout)
	if !reachability.Valid {
		result.Valid = false
		result.Errors = append(result.Errors, reachability.Errors...)
		return result
	}
	result.Errors = append(result.Errors, reachability.Errors...)

	engine.ApplyDefaults(&config)
	if err := engine.ValidateLevelConfig(&config); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	// Add informational data
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", config.Name))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d", len(config.Layout), gridWidth))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Heading: %s", config.InitialHeading))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Intersections: %d", junctionCount))
	if turns, err := level.Solution(&config); err == nil {
		plan := make([]string, len(turns))
		for i, t := range turns {
			plan[i] = string(t)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Solution: %s", strings.Join(plan, ", ")))
	}

	return result
}

// validateConnectivity ensures a finish cell is reachable from the start
// using 4-directional movement over non-building cells.
func validateConnectivity(layout []string) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	if len(layout) == 0 {
		result.fail("Cannot validate connectivity: empty layout")
		return result
	}

	height := len(layout)
	width := len(layout[0])

	var start []int
	var finishes [][]int
	for y := 0; y < height; y++ {
		for x := 0; x < width && x < len(layout[y]); x++ {
			switch layout[y][x] {
			case 'S':
				start = []int{x, y}
			case 'F':
				finishes = append(finishes, []int{x, y})
			}
		}
	}

	if start == nil {
		result.fail("No start position found for connectivity test")
		return result
	}
	if len(finishes) == 0 {
		result.fail("No finish cells found for connectivity test")
		return result
	}

	isPassable := func(x, y int) bool {
		if x < 0 || y < 0 || y >= height || x >= width || x >= len(layout[y]) {
			return false
		}
		return engine.CellTypeFromChar(layout[y][x]) != engine.Building
	}

	// Flood fill from the start
	visited := make(map[engine.Position]bool)
	queue := []engine.Position{{X: start[0], Y: start[1]}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		for _, dir := range [][]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			next := engine.Position{X: current.X + dir[0], Y: current.Y + dir[1]}
			if !visited[next] && isPassable(next.X, next.Y) {
				queue = append(queue, next)
			}
		}
	}

	reached := 0
	for _, f := range finishes {
		if visited[engine.Position{X: f[0], Y: f[1]}] {
			reached++
		}
	}

	if reached == 0 {
		result.fail("Connectivity failure: no finish cell is reachable from the start")
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Connectivity: %d/%d finish cells reachable from start", reached, len(finishes)))
	}

	return result
}

// printResult writes the report for one file and returns its validity.
func printResult(result ValidationResult) bool {
	fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

	if result.Valid {
		fmt.Println("✅ VALID")
		for _, info := range result.Errors {
			fmt.Println("  " + info)
		}
		return true
	}

	fmt.Println("❌ INVALID")
	for _, err := range result.Errors {
		if !strings.HasPrefix(err, "✓") {
			fmt.Println("  ❌ " + err)
		}
	}
	return false
}

// main validates the given files, or every *.json file of --dir, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	cmd := &cli.Command{
		Name:      "validate",
		Usage:     "validate level configuration files",
		ArgsUsage: "[config.json ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "../configs", Usage: "directory scanned when no files are given"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				files, err = filepath.Glob(filepath.Join(cmd.String("dir"), "*.json"))
				if err != nil {
					return fmt.Errorf("error finding config files: %w", err)
				}
			}

			allValid := true
			for _, file := range files {
				if !printResult(validateConfig(file)) {
					allValid = false
				}
			}

			fmt.Printf("\n%s\n", strings.Repeat("=", 40))
			if !allValid {
				return cli.Exit("❌ Some configurations have errors", 1)
			}
			fmt.Println("✅ All configurations are valid!")
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
