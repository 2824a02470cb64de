// Command analyze prints quick, human-readable heuristics about level
// configuration files. For each level it traces the course the bus takes
// from S, lists the turns it meets and checks them against the level's
// required turn count and the runway left after the last required turn.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

// Analysis is the report for one configuration file.
type Analysis struct {
	File     string
	Name     string
	Width    int
	Height   int
	Heading  engine.Heading
	Required int
	Course   *engine.Course
	Runway   int
	Problems []string
}

// OK reports whether the level has no problems.
func (a *Analysis) OK() bool { return len(a.Problems) == 0 }

func main() {
	cmd := &cli.Command{
		Name:      "analyze",
		Usage:     "trace the course of each level and check its turns and runway",
		ArgsUsage: "[config.json ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "configs", Usage: "directory scanned when no files are given"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				if files, err = configFiles(cmd.String("dir")); err != nil {
					return err
				}
			}

			failed := 0
			for _, file := range files {
				fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
				a, err := analyzeConfig(file)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					failed++
					continue
				}
				printAnalysis(os.Stdout, a)
				if !a.OK() {
					failed++
				}
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d levels have problems", failed, len(files)), 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFiles lists the *.json files of dir in name order.
func configFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no configuration files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// analyzeConfig reads a level without validating it, so that a broken level
// still gets a report.
func analyzeConfig(path string) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	var config engine.LevelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}
	engine.ApplyDefaults(&config)

	a := &Analysis{
		File:     path,
		Name:     config.Name,
		Height:   len(config.Layout),
		Heading:  config.InitialHeading,
		Required: config.RequiredTurns,
	}
	if a.Height > 0 {
		a.Width = len(config.Layout[0])
	}

	course, err := engine.TraceCourse(config.Layout, config.InitialHeading)
	if err != nil {
		a.Problems = append(a.Problems, fmt.Sprintf("course cannot be traced: %v", err))
		return a, nil
	}
	a.Course = course

	switch {
	case len(course.Turns) < config.RequiredTurns:
		a.Problems = append(a.Problems, fmt.Sprintf("course has %d turns, level requires %d", len(course.Turns), config.RequiredTurns))
	case len(course.Turns) > config.RequiredTurns:
		a.Problems = append(a.Problems, fmt.Sprintf("course has %d turns, only %d are required; the bus finishes mid-course", len(course.Turns), config.RequiredTurns))
	}

	a.Runway = course.RunwayAfter(config.RequiredTurns)
	if config.RequiredTurns <= len(course.Turns) && a.Runway < engine.MinFinishRunway {
		a.Problems = append(a.Problems, fmt.Sprintf("only %d cells after turn %d, need %d to finish", a.Runway, config.RequiredTurns, engine.MinFinishRunway))
	}
	if !course.Finish {
		a.Problems = append(a.Problems, "course never reaches a finish cell")
	}
	return a, nil
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d\n", a.Width, a.Height)
	fmt.Fprintf(w, "Initial Heading: %s\n", a.Heading)
	fmt.Fprintf(w, "Required Turns: %d\n", a.Required)

	if a.Course != nil {
		turns := make([]string, len(a.Course.Turns))
		for i, t := range a.Course.Turns {
			p := a.Course.Cells[a.Course.TurnAt[i]]
			turns[i] = fmt.Sprintf("%s@(%d,%d)", t, p.X, p.Y)
		}
		fmt.Fprintf(w, "Course: %d cells, turns: %s\n", len(a.Course.Cells), strings.Join(turns, " "))
		fmt.Fprintf(w, "Runway after turn %d: %d cells\n", a.Required, a.Runway)
	}

	if a.OK() {
		fmt.Fprintf(w, "✅ Course matches the required turns and reaches the finish\n")
		return
	}
	for _, p := range a.Problems {
		fmt.Fprintf(w, "⚠️  %s\n", p)
	}
}
