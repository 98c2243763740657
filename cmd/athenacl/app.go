package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/cbegin/athenacl-go/internal/config"
)

// version is set with -ldflags "-X main.version=1.2.3".
var version = "dev"

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "athenacl",
		Usage:     "Interactive front-end for the athenaCL command shell",
		Version:   version,
		UsageText: "athenacl [global options] [command] [arguments...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (.toml, .yaml)",
				Value:   config.DefaultPath(),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Debug logging",
			},
			&cli.StringFlag{
				Name:  "prefs",
				Usage: "Preference database path (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "allow-exec",
				Usage: "Let unknown commands run as host programs",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Line-mode output (no TUI)",
			},
			&cli.BoolFlag{
				Name:  "no-audio",
				Usage: "Do not open the audio device",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start an interactive session",
				Action: cmdRun,
			},
			{
				Name:      "exec",
				Usage:     "Run commands in order and print their output",
				ArgsUsage: "<command>...",
				Action:    cmdExec,
			},
			{
				Name:      "render",
				Usage:     "Render a MIDI file to WAV with the built-in synth",
				ArgsUsage: "<in.mid> <out.wav>",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "seconds", Aliases: []string{"s"}, Usage: "Render length (0 = whole file)"},
					&cli.FloatFlag{Name: "tail", Value: 1, Usage: "Release tail in seconds after the last event"},
					&cli.IntFlag{Name: "tempo", Aliases: []string{"t"}, Usage: "Tempo override in bpm (0 = file tempo)"},
					&cli.IntFlag{Name: "sample-rate", Aliases: []string{"r"}, Usage: "Output sample rate (default from config)"},
				},
				Action: cmdRender,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: cmdConfig,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// Bare arguments are commands to execute.
			if args := cmd.Args().Slice(); len(args) > 0 {
				return execCommands(ctx, cmd, []string{strings.Join(args, " ")})
			}
			return cmdRun(ctx, cmd)
		},
	}
}
