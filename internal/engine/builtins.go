package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/interp"

	"github.com/cbegin/athenacl-go/internal/prefs"
	"github.com/cbegin/athenacl-go/internal/protocol"
)

const helpText = `host commands:
  post TEXT...      print TEXT to the output log while the command runs
  ask PROMPT...     ask the user for input and print the answer
  midi PATH         load a MIDI file into a new player
  audio PATH        load an audio file (mp3, wav, ogg) into a new player
  apdir [x] DIR     set the scratch directory
  scratchdir        print the scratch directory
  pin NAME          add a path instance and make it active
  pio NAME          select the active path instance
  tin NAME          add a texture instance and make it active
  tio NAME          select the active texture instance
  help              show this help`

// hostCommands is the exec middleware implementing the host builtins. Any
// other command falls through to next only when exec is allowed.
func (s *Shell) hostCommands(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		hc := interp.HandlerCtx(ctx)
		rest := args[1:]
		switch args[0] {
		case "help":
			fmt.Fprintln(hc.Stdout, helpText)
			return nil
		case "post":
			s.host.Post(strings.Join(rest, " "))
			return nil
		case "ask":
			return s.ask(hc.Stdout, rest)
		case "midi":
			return s.loadMedia(hc, rest, protocol.TrackMIDI)
		case "audio":
			return s.loadMedia(hc, rest, protocol.TrackAudio)
		case "apdir":
			return s.setScratchDir(hc, rest)
		case "scratchdir":
			fmt.Fprintln(hc.Stdout, s.scratchDir)
			return nil
		case "pin":
			return s.addInstance(hc, rest, protocol.LibraryPaths)
		case "tin":
			return s.addInstance(hc, rest, protocol.LibraryTextures)
		case "pio":
			return s.selectInstance(hc, rest, protocol.LibraryPaths)
		case "tio":
			return s.selectInstance(hc, rest, protocol.LibraryTextures)
		}
		if !s.allowExec {
			fmt.Fprintf(hc.Stderr, "%s: command not found\n", args[0])
			return interp.ExitStatus(127)
		}
		return next(ctx, args)
	}
}

func (s *Shell) ask(stdout io.Writer, args []string) error {
	if len(args) == 0 {
		return &Fault{Msg: "ask: missing prompt"}
	}
	answer, err := s.host.Ask(strings.Join(args, " "))
	if err != nil {
		return &Fault{Msg: "ask: " + err.Error(), Err: err}
	}
	fmt.Fprintln(stdout, answer)
	return nil
}

func (s *Shell) loadMedia(hc interp.HandlerContext, args []string, kind protocol.TrackKind) error {
	if len(args) != 1 {
		fmt.Fprintf(hc.Stderr, "usage: %s PATH\n", kind)
		return interp.ExitStatus(2)
	}
	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(hc.Dir, path)
	}
	s.host.Notify(protocol.MediaLoaded(0, path, kind))
	return nil
}

func (s *Shell) setScratchDir(hc interp.HandlerContext, args []string) error {
	if len(args) > 0 && args[0] == "x" {
		args = args[1:]
	}
	if len(args) != 1 {
		fmt.Fprintln(hc.Stderr, "usage: apdir [x] DIR")
		return interp.ExitStatus(2)
	}
	dir := args[0]
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(hc.Dir, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(hc.Stderr, "apdir: %s is not a directory\n", dir)
		return interp.ExitStatus(1)
	}
	if s.prefs != nil {
		if err := s.prefs.Set(prefs.KeyScratchDir, dir); err != nil {
			return &Fault{Msg: "apdir: " + err.Error(), Err: err}
		}
	}
	s.scratchDir = dir
	s.host.Notify(protocol.ScratchDir(0, dir))
	fmt.Fprintf(hc.Stdout, "scratch directory set to %s\n", dir)
	return nil
}

func (s *Shell) addInstance(hc interp.HandlerContext, args []string, kind string) error {
	if len(args) != 1 {
		fmt.Fprintf(hc.Stderr, "usage: %s NAME\n", instanceCommand(kind, true))
		return interp.ExitStatus(2)
	}
	events := s.lib.add(kind, args[0])
	if err := s.lib.save(s.prefs); err != nil {
		s.log.Warn("persist library", zap.Error(err))
	}
	for _, ev := range events {
		s.host.Notify(ev)
	}
	fmt.Fprintf(hc.Stdout, "%s %s created\n", instanceNoun(kind), args[0])
	return nil
}

func (s *Shell) selectInstance(hc interp.HandlerContext, args []string, kind string) error {
	if len(args) != 1 {
		fmt.Fprintf(hc.Stderr, "usage: %s NAME\n", instanceCommand(kind, false))
		return interp.ExitStatus(2)
	}
	events, ok := s.lib.selectActive(kind, args[0])
	if !ok {
		fmt.Fprintf(hc.Stderr, "no %s named %s\n", instanceNoun(kind), args[0])
		return interp.ExitStatus(1)
	}
	if err := s.lib.save(s.prefs); err != nil {
		s.log.Warn("persist library", zap.Error(err))
	}
	for _, ev := range events {
		s.host.Notify(ev)
	}
	fmt.Fprintf(hc.Stdout, "%s %s now active\n", instanceNoun(kind), args[0])
	return nil
}

func instanceNoun(kind string) string {
	if kind == protocol.LibraryTextures {
		return "texture instance"
	}
	return "path instance"
}

func instanceCommand(kind string, add bool) string {
	switch {
	case kind == protocol.LibraryTextures && add:
		return "tin"
	case kind == protocol.LibraryTextures:
		return "tio"
	case add:
		return "pin"
	default:
		return "pio"
	}
}
