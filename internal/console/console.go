// Package console is the line-mode renderer used when stdout is not a
// terminal, for scripted runs, or when --plain is given.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/cbegin/athenacl-go/internal/outlog"
	"github.com/cbegin/athenacl-go/internal/protocol"
)

const defaultPrompt = "athenacl> "

// ErrCommandFailed is returned by Exec when any command ended in an error.
var ErrCommandFailed = errors.New("console: command failed")

// Core is the part of a session the console drives.
type Core interface {
	Submit(text string) error
	Dispatch(in protocol.Intent) error
	NextEvent(ctx context.Context) (protocol.Event, error)
	Apply(ev protocol.Event)
	Tick() bool
	Playing() bool
	Snapshot() outlog.Snapshot
	Tracks() []protocol.TrackID
}

type Option func(*Console)

// WithEcho prints submitted commands and prompt answers. Useful when input
// is not a terminal and would otherwise not be visible.
func WithEcho() Option {
	return func(c *Console) { c.echo = true }
}

func WithBanner(text string) Option {
	return func(c *Console) { c.banner = text }
}

func WithTickInterval(d time.Duration) Option {
	return func(c *Console) {
		if d > 0 {
			c.tick = d
		}
	}
}

type Console struct {
	core   Core
	in     io.Reader
	out    io.Writer
	echo   bool
	banner string
	tick   time.Duration

	once     sync.Once
	lines    chan string
	events   chan protocol.Event
	eventErr error

	printed int
	busy    int
}

func New(core Core, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		core: core,
		in:   in,
		out:  out,
		tick: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// start launches the stdin reader and event pump. Both only hand values to
// the calling goroutine; all core mutation stays there.
func (c *Console) start(ctx context.Context) {
	c.once.Do(func() {
		c.lines = make(chan string)
		c.events = make(chan protocol.Event)
		go c.readLines(ctx)
		go c.pumpEvents(ctx)
	})
}

func (c *Console) readLines(ctx context.Context) {
	defer close(c.lines)
	sc := bufio.NewScanner(c.in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case c.lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (c *Console) pumpEvents(ctx context.Context) {
	for {
		ev, err := c.core.NextEvent(ctx)
		if err != nil {
			c.eventErr = err
			close(c.events)
			return
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			c.eventErr = ctx.Err()
			close(c.events)
			return
		}
	}
}

func (c *Console) closedErr() error {
	if errors.Is(c.eventErr, protocol.ErrClosed) {
		return nil
	}
	return c.eventErr
}

// Run reads commands until input ends or the context is cancelled. Each
// command finishes before the next line is read.
func (c *Console) Run(ctx context.Context) error {
	c.start(ctx)
	if c.banner != "" {
		pterm.DefaultHeader.WithWriter(c.out).Println(c.banner)
	}
	c.showPrompt()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		// Input is held back while a command runs, unless it is asking.
		lines := c.lines
		if c.busy > 0 && c.core.Snapshot().Prompt == nil {
			lines = nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c.handleLine(line)
		case ev, ok := <-c.events:
			if !ok {
				return c.closedErr()
			}
			c.apply(ev)
			if ev.Terminal() || ev.Kind == protocol.EventPrompt {
				c.showPrompt()
			}
		case <-ticker.C:
			c.tickPlayback()
		}
	}
}

// Exec submits each command in turn and waits for it to finish. Prompts are
// answered from input; at end of input they get an empty answer.
func (c *Console) Exec(ctx context.Context, commands []string) error {
	c.start(ctx)
	failed := false
	for _, cmd := range commands {
		if err := c.submit(cmd); err != nil {
			return err
		}
		ok, err := c.wait(ctx)
		if err != nil {
			return err
		}
		if !ok {
			failed = true
		}
	}
	if failed {
		return ErrCommandFailed
	}
	return nil
}

// wait applies events until the running command ends, and reports whether
// it succeeded.
func (c *Console) wait(ctx context.Context) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case ev, ok := <-c.events:
			if !ok {
				if err := c.closedErr(); err != nil {
					return false, err
				}
				return false, protocol.ErrClosed
			}
			c.apply(ev)
			switch {
			case ev.Kind == protocol.EventPrompt:
				fmt.Fprint(c.out, ev.Text)
				var answer string
				select {
				case answer = <-c.lines:
				case <-ctx.Done():
					return false, ctx.Err()
				}
				if err := c.submit(answer); err != nil {
					return false, err
				}
			case ev.Terminal():
				return ev.Kind == protocol.EventOutput, nil
			}
		}
	}
}

func (c *Console) handleLine(line string) {
	snap := c.core.Snapshot()
	switch {
	case snap.Prompt != nil:
		c.report(c.submit(line))
	case strings.TrimSpace(line) == "":
		c.showPrompt()
	case strings.HasPrefix(line, ":"):
		c.report(c.transport(strings.Fields(line[1:])))
		c.showPrompt()
	default:
		c.report(c.submit(line))
	}
}

func (c *Console) submit(text string) error {
	pending := c.core.Snapshot().Prompt != nil
	if err := c.core.Submit(text); err != nil {
		return err
	}
	if !pending {
		c.busy++
	}
	c.flush()
	return nil
}

func (c *Console) apply(ev protocol.Event) {
	c.core.Apply(ev)
	if ev.Terminal() && c.busy > 0 {
		c.busy--
	}
	if ev.Kind == protocol.EventMediaMissing {
		if ev.Missing {
			pterm.Warning.WithWriter(c.out).Printfln("missing: %s", ev.Path)
		} else {
			pterm.Info.WithWriter(c.out).Printfln("restored: %s", ev.Path)
		}
	}
	c.flush()
}

func (c *Console) tickPlayback() {
	if !c.core.Playing() {
		return
	}
	if c.core.Tick() {
		pterm.Info.WithWriter(c.out).Println("playback finished")
	}
	c.flush()
}

func (c *Console) showPrompt() {
	if p := c.core.Snapshot().Prompt; p != nil {
		fmt.Fprint(c.out, p.Text)
		return
	}
	if c.busy == 0 {
		fmt.Fprint(c.out, defaultPrompt)
	}
}

func (c *Console) report(err error) {
	if err != nil {
		pterm.Error.WithWriter(c.out).Println(err.Error())
	}
}

// flush prints log entries added since the last call.
func (c *Console) flush() {
	snap := c.core.Snapshot()
	if c.printed >= len(snap.Entries) {
		return
	}
	tracks := c.core.Tracks()
	for i := c.printed; i < len(snap.Entries); i++ {
		c.printEntry(i, snap.Entries[i], tracks)
	}
	c.printed = len(snap.Entries)
}

func (c *Console) printEntry(index int, e outlog.Entry, tracks []protocol.TrackID) {
	switch e.Kind {
	case outlog.EntryCommand:
		if c.echo {
			fmt.Fprintln(c.out, "> "+e.Text)
		}
	case outlog.EntryError:
		pterm.Error.WithWriter(c.out).Println(e.Text)
	case outlog.EntryTrack:
		n := trackNumber(tracks, index)
		pterm.Info.WithWriter(c.out).Printfln("%s track %d: %s (:play %d)", e.Track.Kind, n, e.Track.Path, n)
	case outlog.EntryGroup:
		for _, child := range e.Children {
			c.printEntry(index, child, tracks)
		}
	default:
		// Seq 0 text is the local echo of a prompt answer.
		if e.Seq == 0 && !c.echo {
			return
		}
		fmt.Fprintln(c.out, e.Text)
	}
}

func trackNumber(tracks []protocol.TrackID, index int) int {
	for i, id := range tracks {
		if id.Index == index {
			return i + 1
		}
	}
	return 0
}

// transport handles the colon commands that drive playback.
func (c *Console) transport(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: :tracks | :play N | :pause N | :seek N POS | :tempo BPM")
	}
	switch args[0] {
	case "tracks":
		c.printTracks()
		return nil
	case "tempo":
		if len(args) != 2 {
			return errors.New("usage: :tempo BPM")
		}
		bpm, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad tempo %q", args[1])
		}
		if err := c.core.Dispatch(protocol.SetTempo(bpm)); err != nil {
			return err
		}
		pterm.Info.WithWriter(c.out).Printfln("tempo %d", c.core.Snapshot().Tempo)
		return nil
	case "play", "pause", "seek":
		if len(args) < 2 {
			return fmt.Errorf("usage: :%s N", args[0])
		}
		id, err := c.track(args[1])
		if err != nil {
			return err
		}
		var in protocol.Intent
		switch args[0] {
		case "play":
			in = protocol.Play(id)
		case "pause":
			in = protocol.Pause(id)
		default:
			if len(args) != 3 {
				return errors.New("usage: :seek N POS")
			}
			pos, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("bad position %q", args[2])
			}
			in = protocol.Seek(id, pos)
		}
		err = c.core.Dispatch(in)
		c.flush()
		return err
	default:
		return fmt.Errorf("unknown command :%s", args[0])
	}
}

func (c *Console) track(arg string) (protocol.TrackID, error) {
	n, err := strconv.Atoi(arg)
	tracks := c.core.Tracks()
	if err != nil || n < 1 || n > len(tracks) {
		return protocol.TrackID{}, fmt.Errorf("no track %s", arg)
	}
	return tracks[n-1], nil
}

func (c *Console) printTracks() {
	snap := c.core.Snapshot()
	tracks := c.core.Tracks()
	if len(tracks) == 0 {
		pterm.Info.WithWriter(c.out).Println("no tracks")
		return
	}
	data := pterm.TableData{{"#", "kind", "state", "position", "path"}}
	for i, id := range tracks {
		t := snap.Entries[id.Index].Track
		state := "paused"
		switch {
		case t.Missing:
			state = "missing"
		case t.Playing:
			state = "playing"
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			t.Kind.String(),
			state,
			fmt.Sprintf("%3.0f%%", t.Position*100),
			t.Path,
		})
	}
	pterm.DefaultTable.
		WithWriter(c.out).
		WithHasHeader().
		WithData(data).
		Render() //nolint:errcheck
}
