// Command busterm plays a crossroad bus level in the terminal.
//
// Press space to set off, then turn with A/D, the arrow keys or a click on
// the left or right half of the screen while the bus is inside a junction.
//
// With --session the terminal joins a session of a running server over its
// WebSocket instead of playing locally; the server should run with
// --realtime so the bus moves between commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/crossroadbus/game/config"
	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/level"
)

func main() {
	cmd := &cli.Command{
		Name:  "busterm",
		Usage: "play a crossroad bus level in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing level configurations"},
			&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Usage: "level to play (default level when empty)"},
			&cli.Uint64Flag{Name: "seed", Usage: "generate a level from this seed instead of loading one"},
			&cli.IntFlag{Name: "turns", Value: 3, Usage: "required turns of a generated level"},
			&cli.IntFlag{Name: "fps", Value: 30, Usage: "frames per second"},
			&cli.BoolFlag{Name: "mute", Usage: "disable sound"},
			&cli.StringFlag{Name: "log", Usage: "write debug logs to this file"},
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "server joined with --session"},
			&cli.StringFlag{Name: "session", Usage: "play this server session instead of a local level"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "busterm: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log, closeLog, err := openLog(cmd.String("log"))
	if err != nil {
		return err
	}
	defer closeLog()

	var player tonePlayer = silentPlayer{}
	if !cmd.Bool("mute") {
		sp, err := newSpeakerPlayer()
		if err != nil {
			log.Warn().Err(err).Msg("audio unavailable, playing muted")
		} else {
			defer sp.Close()
			player = sp
		}
	}

	fx := newEffectsSink(player)
	drv, err := openDriver(cmd, fx, log)
	if err != nil {
		return err
	}
	defer drv.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	err = NewGame(screen, drv, fx, cmd.Int("fps"), log).Run(ctx)
	if r, ok := drv.(*remoteDriver); ok {
		if connErr := r.Err(); connErr != nil {
			log.Info().Err(connErr).Msg("server connection ended")
		}
	}
	return err
}

// openDriver joins the --session on the server or builds a local engine.
func openDriver(cmd *cli.Command, fx *effectsSink, log zerolog.Logger) (driver, error) {
	if id := cmd.String("session"); id != "" {
		return dialRemote(cmd.String("server"), id, fx, log)
	}

	cfg, err := chooseLevel(cmd)
	if err != nil {
		return nil, err
	}
	return newLocalDriver(cfg, engine.WithEffects(fx), engine.WithEngineLogger(log))
}

// chooseLevel generates a level when --seed is given and loads one otherwise.
func chooseLevel(cmd *cli.Command) (*engine.LevelConfig, error) {
	if cmd.IsSet("seed") {
		seed := cmd.Uint64("seed")
		return level.New(seed).Generate(fmt.Sprintf("Seed %d", seed), cmd.Int("turns"))
	}

	manager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return nil, err
	}
	if name := cmd.String("level"); name != "" {
		return manager.LoadConfig(name)
	}
	return manager.GetDefault(), nil
}

func openLog(path string) (zerolog.Logger, func(), error) {
	if path == "" {
		return zerolog.Nop(), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log := zerolog.New(f).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return log, func() { f.Close() }, nil
}
