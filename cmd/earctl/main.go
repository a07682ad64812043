package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const appName = "earctl"

// logger is shared by the subcommands. It writes to stderr so token and
// claims-set output on stdout stays clean for piping.
var logger = newLogger()

func newLogger() zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	l := zerolog.New(out).With().Timestamp().Str("app", appName).Logger()
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) == 40 {
				l = l.With().Str("commit", s.Value[:7]).Logger()
				break
			}
		}
	}
	return l
}

func newApp() *cli.App {
	return &cli.App{
		Name:  appName,
		Usage: "Create, verify and inspect EAT attestation result tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "log level (trace, debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "profiles",
				Aliases: []string{"p"},
				Usage:   "JSON file with profile extension declarations to register",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			cmdCreate,
			cmdVerify,
			cmdShow,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("Command failed.")
	}
}

// setup applies the global flags before any subcommand runs.
func setup(ctx *cli.Context) error {
	lvl, err := zerolog.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)

	if path := ctx.String("profiles"); path != "" {
		n, err := registerProfilesFile(path)
		if err != nil {
			return fmt.Errorf("failed to load profiles from %s: %w", path, err)
		}
		logger.Debug().Int("profiles", n).Str("file", path).Msg("Registered profiles.")
	}
	return nil
}
