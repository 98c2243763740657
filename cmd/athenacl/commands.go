package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"

	athenacl "github.com/cbegin/athenacl-go"
	"github.com/cbegin/athenacl-go/internal/config"
	"github.com/cbegin/athenacl-go/internal/console"
	"github.com/cbegin/athenacl-go/internal/engine"
	"github.com/cbegin/athenacl-go/internal/logging"
	"github.com/cbegin/athenacl-go/internal/prefs"
	"github.com/cbegin/athenacl-go/internal/synth"
	"github.com/cbegin/athenacl-go/internal/tui"
)

const banner = "athenaCL · type help for commands"

func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if p := cmd.String("prefs"); p != "" {
		cfg.PrefsPath = p
	}
	if cmd.Bool("allow-exec") {
		cfg.AllowExec = true
	}
	return cfg, nil
}

// newLogger keeps the terminal clean under the TUI: only a log file, if
// configured, receives entries there.
func newLogger(cmd *cli.Command, cfg config.Config, interactive bool) (*zap.Logger, error) {
	level := cfg.LogLevel
	if cmd.Bool("verbose") {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:   level,
		File:    cfg.LogFile,
		Console: !interactive && cmd.Bool("verbose"),
	})
}

// services is everything a session needs, torn down in reverse order.
type services struct {
	log     *zap.Logger
	store   *prefs.Store
	player  *athenacl.Player
	session *athenacl.Session
}

func openServices(cmd *cli.Command, cfg config.Config, log *zap.Logger) (*services, error) {
	rt := &services{log: log}
	store, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		return nil, err
	}
	rt.store = store

	player, err := athenacl.NewPlayer(cfg.SampleRate,
		athenacl.WithVolume(cfg.Volume),
		athenacl.WithPlayerLogger(log.Named("player")),
	)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.player = player
	if !cmd.Bool("no-audio") {
		if err := player.Start(); err != nil {
			log.Warn("audio output unavailable, playback is silent", zap.Error(err))
		}
	}

	factory := engine.NewShellFactory(engine.Options{
		Prefs:     store,
		AllowExec: cfg.AllowExec,
		Logger:    log.Named("engine"),
	})
	session, err := athenacl.NewSession(factory, player.Backends(),
		athenacl.WithLogger(log),
		athenacl.WithTempo(cfg.Tempo),
		athenacl.WithMediaWatch(cfg.WatchMedia),
	)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.session = session
	return rt, nil
}

func (rt *services) close() {
	if rt.session != nil {
		if err := rt.session.Close(); err != nil {
			rt.log.Warn("session close", zap.Error(err))
		}
	}
	if rt.player != nil {
		if err := rt.player.Close(); err != nil {
			rt.log.Warn("audio close", zap.Error(err))
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.log.Warn("prefs close", zap.Error(err))
		}
	}
	_ = rt.log.Sync()
}

func cmdRun(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	isTTY := term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
	useTUI := isTTY && !cmd.Bool("plain")

	log, err := newLogger(cmd, cfg, useTUI)
	if err != nil {
		return err
	}
	rt, err := openServices(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	text := ""
	if cfg.Banner {
		text = banner
	}
	if useTUI {
		return tui.Run(rt.session, tui.Options{TickInterval: cfg.TickInterval(), Banner: text})
	}
	opts := []console.Option{console.WithBanner(text), console.WithTickInterval(cfg.TickInterval())}
	if !isTTY {
		// piped input is not echoed by a terminal
		opts = append(opts, console.WithEcho())
	}
	c := console.New(rt.session, os.Stdin, os.Stdout, opts...)
	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func cmdExec(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("usage: athenacl exec <command>...")
	}
	return execCommands(ctx, cmd, args)
}

func execCommands(ctx context.Context, cmd *cli.Command, commands []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg, false)
	if err != nil {
		return err
	}
	rt, err := openServices(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	err = console.New(rt.session, os.Stdin, os.Stdout, console.WithEcho()).Exec(ctx, commands)
	if errors.Is(err, console.ErrCommandFailed) {
		return cli.Exit("", 1)
	}
	return err
}

func cmdRender(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 2 {
		return fmt.Errorf("usage: athenacl render <in.mid> <out.wav>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rate := cmd.Int("sample-rate")
	if rate <= 0 {
		rate = cfg.SampleRate
	}
	opts := synth.RenderOptions{
		SampleRate:  rate,
		Seconds:     cmd.Float("seconds"),
		TailSeconds: cmd.Float("tail"),
		BPM:         cmd.Int("tempo"),
	}
	if err := athenacl.RenderFile(args[0], args[1], opts); err != nil {
		return err
	}
	pterm.Success.Printfln("wrote %s", args[1])
	return nil
}

func cmdConfig(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n", cmd.String("config"))
	return cfg.Write(os.Stdout)
}
