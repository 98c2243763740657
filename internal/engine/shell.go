package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/cbegin/athenacl-go/internal/prefs"
)

// Options configures a Shell.
type Options struct {
	// Prefs persists the scratch directory and the library. Nil keeps
	// them in memory only.
	Prefs *prefs.Store
	// Dir is the interpreter's starting directory; empty means the process cwd.
	Dir string
	// AllowExec lets unknown commands run as host programs.
	AllowExec bool
	// Env is the interpreter environment; nil copies the process environment.
	Env    []string
	Logger *zap.Logger
}

// Shell is an Engine backed by an embedded POSIX shell interpreter. Shell
// state (variables, functions, cwd) persists between commands.
type Shell struct {
	runner    *interp.Runner
	parser    *syntax.Parser
	host      Host
	prefs     *prefs.Store
	allowExec bool
	log       *zap.Logger

	stdout bytes.Buffer
	stderr bytes.Buffer

	scratchDir string
	lib        library
}

// NewShellFactory returns a Factory producing shells configured with opts.
func NewShellFactory(opts Options) Factory {
	return func(host Host) (Engine, error) {
		return NewShell(host, opts)
	}
}

func NewShell(host Host, opts Options) (*Shell, error) {
	if host == nil {
		return nil, errors.New("engine: nil host")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Shell{
		parser:    syntax.NewParser(),
		host:      host,
		prefs:     opts.Prefs,
		allowExec: opts.AllowExec,
		log:       log,
	}
	if s.prefs != nil {
		dir, _, err := s.prefs.Get(prefs.KeyScratchDir)
		if err != nil {
			return nil, fmt.Errorf("load scratch dir: %w", err)
		}
		s.scratchDir = dir
	}
	lib, err := loadLibrary(s.prefs)
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	s.lib = lib

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	runner, err := interp.New(
		interp.Env(expand.ListEnviron(env...)),
		interp.Dir(opts.Dir),
		interp.StdIO(nil, &s.stdout, &s.stderr),
		interp.ExecHandlers(s.hostCommands),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: new interpreter: %w", err)
	}
	s.runner = runner
	return s, nil
}

func (s *Shell) ScratchDir() string { return s.scratchDir }

// Execute parses and runs one command line. Parse errors and handler faults
// come back as *Fault; a non-zero exit status is a failed Result.
func (s *Shell) Execute(ctx context.Context, command string) (Result, error) {
	file, err := s.parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return Result{}, &Fault{Err: err}
	}
	s.stdout.Reset()
	s.stderr.Reset()

	err = s.runner.Run(ctx, file)
	stdout := strings.TrimRight(s.stdout.String(), "\n")
	stderr := strings.TrimRight(s.stderr.String(), "\n")
	if err == nil {
		return Result{OK: true, Payload: stdout}, nil
	}
	var status interp.ExitStatus
	if errors.As(err, &status) {
		msg := stderr
		if msg == "" {
			msg = stdout
		}
		if msg == "" {
			msg = status.Error()
		}
		s.log.Debug("command failed", zap.String("cmd", command), zap.Uint8("status", uint8(status)))
		return Result{OK: false, Payload: msg}, nil
	}
	var fault *Fault
	if errors.As(err, &fault) {
		return Result{}, fault
	}
	return Result{}, &Fault{Err: err}
}
