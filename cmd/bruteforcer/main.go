// Command bruteforcer plays a level through the REST API by trying turn
// plans systematically until one reaches the finish.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

const sessionFile = ".session"

func main() {
	cmd := &cli.Command{
		Name:  "bruteforcer",
		Usage: "find a winning turn plan for a level by trial",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL"},
			&cli.StringFlag{Name: "config", Usage: "level configuration id (server default when empty)"},
			&cli.StringFlag{Name: "continue", Usage: "resume playing an existing session by ID"},
			&cli.IntFlag{Name: "max-frames", Value: 3000, Usage: "frame budget per attempt"},
			&cli.IntFlag{Name: "max-attempts", Value: 1000, Usage: "attempts before giving up"},
			&cli.DurationFlag{Name: "delay", Usage: "pause between attempts"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := zerolog.InfoLevel
			if cmd.Bool("v") {
				level = zerolog.DebugLevel
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()

			client := NewClient(cmd.String("url"))
			log.Info().Str("url", cmd.String("url")).Msg("connecting to game server")

			if err := openSession(ctx, client, cmd.String("continue"), cmd.String("config"), log); err != nil {
				return err
			}

			plan, attempts, err := solve(ctx, client, cmd.Int("max-attempts"), cmd.Int("max-frames"), cmd.Duration("delay"), log)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			log.Info().Strs("plan", plan).Int("attempts", attempts).Str("session", client.SessionID()).Msg("🎉 VICTORY!")
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openSession resumes the explicit or saved session and falls back to a new
// one, which is saved for the next run.
func openSession(ctx context.Context, client *Client, resume, configID string, log zerolog.Logger) error {
	if resume == "" {
		if data, err := os.ReadFile(sessionFile); err == nil {
			resume = string(bytes.TrimSpace(data))
		}
	}

	if resume != "" {
		client.UseSession(resume)
		session, err := client.GetSession(ctx)
		if err == nil {
			log.Info().Str("session", session.ID).Str("level", session.ConfigName).Msg("🔄 resuming session")
			return nil
		}
		log.Warn().Err(err).Msg("failed to resume session (may be expired), creating a new one")
	}

	session, err := client.CreateSession(ctx, configID)
	if err != nil {
		return err
	}
	log.Info().Str("session", session.ID).Str("level", session.ConfigName).Msg("✨ session created")

	if err := os.WriteFile(sessionFile, []byte(session.ID), 0644); err != nil {
		log.Warn().Err(err).Msg("failed to save session ID")
	}
	return nil
}

// solve resets the level and drives plans until one wins.
func solve(ctx context.Context, client *Client, maxAttempts, maxFrames int, delay time.Duration, log zerolog.Logger) ([]string, int, error) {
	state, err := client.Reset(ctx)
	if err != nil {
		return nil, 0, err
	}
	strategy := NewSystematicStrategy(state.Required)
	log.Info().Str("level", state.ConfigName).Int("required_turns", state.Required).Msg("searching")

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		plan := strategy.Plan()
		if plan == nil {
			return nil, attempt - 1, errors.New("❌ every plan crashed")
		}

		if attempt > 1 {
			if _, err := client.Reset(ctx); err != nil {
				return nil, attempt - 1, err
			}
		}

		result, err := client.Drive(ctx, plan, maxFrames)
		if err != nil {
			return nil, attempt - 1, err
		}
		log.Debug().
			Int("attempt", attempt).
			Strs("plan", plan).
			Int("applied", result.TurnsApplied).
			Str("stop", result.StopReasonCode).
			Msg("attempt finished")

		if strategy.Report(result) {
			return plan, attempt, nil
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, maxAttempts, fmt.Errorf("❌ failed to win after %d attempts", maxAttempts)
}
