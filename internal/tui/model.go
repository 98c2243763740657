// Package tui is the interactive terminal renderer.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cbegin/athenacl-go/internal/outlog"
	"github.com/cbegin/athenacl-go/internal/protocol"
	"github.com/cbegin/athenacl-go/internal/worker"
)

const (
	defaultPrompt = "athenacl> "
	seekStep      = 0.05
	tempoStep     = 5
)

// Core is the part of a session the renderer drives.
type Core interface {
	Submit(text string) error
	Dispatch(in protocol.Intent) error
	NextEvent(ctx context.Context) (protocol.Event, error)
	Apply(ev protocol.Event)
	Tick() bool
	Playing() bool
	Snapshot() outlog.Snapshot
	Tracks() []protocol.TrackID
	WorkerState() worker.State
}

type Options struct {
	TickInterval time.Duration
	Banner       string
}

type eventMsg struct{ ev protocol.Event }

type closedMsg struct{ err error }

type tickMsg struct{}

// Model is the Bubble Tea model. Every core call happens inside Update, so
// the core is only touched from the program's goroutine.
type Model struct {
	core   Core
	opts   Options
	input  textinput.Model
	log    viewport.Model
	snap   outlog.Snapshot
	tracks []protocol.TrackID
	// selected indexes tracks; -1 when there are none.
	selected int

	width, height int
	status        string
	closed        bool
	quitting      bool
}

func New(core Core, opts Options) Model {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	input := textinput.New()
	input.Prompt = defaultPrompt
	input.CharLimit = 4096
	input.Placeholder = "type a command, or help"
	input.Focus()

	m := Model{
		core:     core,
		opts:     opts,
		input:    input,
		log:      viewport.New(0, 0),
		selected: -1,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitEvent(m.core), m.tickCmd(), tea.WindowSize())
}

func waitEvent(core Core) tea.Cmd {
	return func() tea.Msg {
		ev, err := core.NextEvent(context.Background())
		if err != nil {
			return closedMsg{err: err}
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case eventMsg:
		m.core.Apply(msg.ev)
		m.refresh()
		return m, waitEvent(m.core)

	case closedMsg:
		m.closed = true
		if !errors.Is(msg.err, protocol.ErrClosed) {
			m.status = msg.err.Error()
		}
		return m, nil

	case tickMsg:
		if m.core.Playing() {
			m.core.Tick()
			m.refresh()
		}
		return m, m.tickCmd()

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "ctrl+d":
		m.quitting = true
		return tea.Quit, true
	case "enter":
		m.submit()
		return nil, true
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return cmd, true
	case "tab":
		m.selectTrack(1)
		return nil, true
	case "shift+tab":
		m.selectTrack(-1)
		return nil, true
	case "ctrl+p":
		m.togglePlay()
		return nil, true
	case "ctrl+right":
		m.seekBy(seekStep)
		return nil, true
	case "ctrl+left":
		m.seekBy(-seekStep)
		return nil, true
	case "ctrl+up":
		m.dispatch(protocol.SetTempo(m.snap.Tempo + tempoStep))
		return nil, true
	case "ctrl+down":
		m.dispatch(protocol.SetTempo(m.snap.Tempo - tempoStep))
		return nil, true
	}
	return nil, false
}

func (m *Model) submit() {
	text := m.input.Value()
	if text == "" && m.snap.Prompt == nil {
		return
	}
	m.input.Reset()
	if err := m.core.Submit(text); err != nil {
		m.status = err.Error()
	}
	m.refresh()
}

func (m *Model) dispatch(in protocol.Intent) {
	if err := m.core.Dispatch(in); err != nil {
		m.status = err.Error()
	}
	m.refresh()
}

func (m *Model) selectTrack(delta int) {
	n := len(m.tracks)
	if n == 0 {
		return
	}
	m.selected = ((m.selected+delta)%n + n) % n
	m.refresh()
}

func (m *Model) selectedTrack() (protocol.TrackID, bool) {
	if m.selected < 0 || m.selected >= len(m.tracks) {
		return protocol.TrackID{}, false
	}
	id := m.tracks[m.selected]
	if id.Index >= len(m.snap.Entries) {
		return protocol.TrackID{}, false
	}
	return id, true
}

func (m *Model) togglePlay() {
	id, ok := m.selectedTrack()
	if !ok {
		return
	}
	if e := m.snap.Entries[id.Index]; e.Track != nil && e.Track.Playing {
		m.dispatch(protocol.Pause(id))
		return
	}
	m.dispatch(protocol.Play(id))
}

func (m *Model) seekBy(delta float64) {
	id, ok := m.selectedTrack()
	if !ok {
		return
	}
	if e := m.snap.Entries[id.Index]; e.Track != nil {
		m.dispatch(protocol.Seek(id, e.Track.Position+delta))
	}
}

// refresh re-reads the core and rebuilds the log view. A newly loaded
// track becomes the selection.
func (m *Model) refresh() {
	m.snap = m.core.Snapshot()
	tracks := m.core.Tracks()
	if len(tracks) > len(m.tracks) {
		m.selected = len(tracks) - 1
	}
	m.tracks = tracks

	if m.snap.Prompt != nil {
		m.input.Prompt = m.snap.Prompt.Text
		m.input.PromptStyle = promptStyle
	} else {
		m.input.Prompt = defaultPrompt
		m.input.PromptStyle = commandStyle
	}

	atBottom := m.log.AtBottom()
	m.log.SetContent(m.renderLog(m.logWidth()))
	if atBottom {
		m.log.GotoBottom()
	}
}

func (m *Model) layout() {
	w := m.contentWidth()
	m.log.Width = m.logWidth()
	m.log.Height = max(m.height-6, 3)
	m.input.Width = max(w-len(m.input.Prompt)-1, 10)
}

// logWidth is the room inside the log border and padding.
func (m Model) logWidth() int { return m.contentWidth() - 2 }

func (m Model) contentWidth() int {
	if m.width < 20 {
		return 76
	}
	return m.width - 4
}

// Run blocks until the user quits.
func Run(core Core, opts Options) error {
	p := tea.NewProgram(New(core, opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
