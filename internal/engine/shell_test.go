package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cbegin/athenacl-go/internal/prefs"
	"github.com/cbegin/athenacl-go/internal/protocol"
)

type recordingHost struct {
	mu      sync.Mutex
	posts   []string
	prompts []string
	events  []protocol.Event
	answer  string
	askErr  error
}

func (h *recordingHost) Post(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.posts = append(h.posts, text)
}

func (h *recordingHost) Ask(prompt string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, prompt)
	return h.answer, h.askErr
}

func (h *recordingHost) Notify(ev protocol.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func newTestShell(t *testing.T, host Host, store *prefs.Store) *Shell {
	t.Helper()
	sh, err := NewShell(host, Options{Prefs: store, Dir: t.TempDir(), Env: []string{"HOME=/nonexistent"}})
	if err != nil {
		t.Fatalf("new shell: %v", err)
	}
	return sh
}

func TestShellExecuteOutcomes(t *testing.T) {
	cases := []struct {
		name      string
		cmd       string
		wantOK    bool
		wantFault bool
		payload   string
	}{
		{name: "echo", cmd: "echo hello", wantOK: true, payload: "hello"},
		{name: "help", cmd: "help", wantOK: true, payload: "host commands:"},
		{name: "failure with stderr", cmd: "echo nope >&2; false", wantOK: false, payload: "nope"},
		{name: "bare exit status", cmd: "exit 3", wantOK: false, payload: "exit status 3"},
		{name: "unknown command", cmd: "frobnicate", wantOK: false, payload: "frobnicate: command not found"},
		{name: "parse error", cmd: "echo 'unterminated", wantFault: true},
		{name: "ask without prompt", cmd: "ask", wantFault: true, payload: "ask: missing prompt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sh := newTestShell(t, &recordingHost{}, nil)
			res, err := sh.Execute(context.Background(), tc.cmd)
			if tc.wantFault {
				var fault *Fault
				if !errors.As(err, &fault) {
					t.Fatalf("err = %v, want *Fault", err)
				}
				if tc.payload != "" && fault.Error() != tc.payload {
					t.Fatalf("fault = %q, want %q", fault.Error(), tc.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected fault: %v", err)
			}
			if res.OK != tc.wantOK {
				t.Fatalf("OK = %v, want %v (payload %q)", res.OK, tc.wantOK, res.Payload)
			}
			if !strings.HasPrefix(res.Payload, tc.payload) {
				t.Fatalf("payload = %q, want prefix %q", res.Payload, tc.payload)
			}
		})
	}
}

func TestShellStatePersistsBetweenCommands(t *testing.T) {
	sh := newTestShell(t, &recordingHost{}, nil)
	if _, err := sh.Execute(context.Background(), "greeting=hi; f() { echo \"$greeting $1\"; }"); err != nil {
		t.Fatalf("define: %v", err)
	}
	res, err := sh.Execute(context.Background(), "f there")
	if err != nil || !res.OK || res.Payload != "hi there" {
		t.Fatalf("call = %+v, %v; want hi there", res, err)
	}
}

func TestShellHostCallbacks(t *testing.T) {
	host := &recordingHost{answer: "42"}
	sh := newTestShell(t, host, nil)

	res, err := sh.Execute(context.Background(), `post working; n=$(ask "how many? "); echo "got $n"`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.OK || res.Payload != "got 42" {
		t.Fatalf("result = %+v, want got 42", res)
	}
	if len(host.posts) != 1 || host.posts[0] != "working" {
		t.Fatalf("posts = %v", host.posts)
	}
	if len(host.prompts) != 1 || host.prompts[0] != "how many? " {
		t.Fatalf("prompts = %q", host.prompts)
	}
}

func TestShellAskErrorIsFault(t *testing.T) {
	host := &recordingHost{askErr: errors.New("closed")}
	sh := newTestShell(t, host, nil)
	_, err := sh.Execute(context.Background(), "ask name?")
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("err = %v, want *Fault", err)
	}
}

func TestShellLoadMediaResolvesRelativePaths(t *testing.T) {
	host := &recordingHost{}
	sh := newTestShell(t, host, nil)
	res, err := sh.Execute(context.Background(), "midi song.mid; audio /abs/take.wav")
	if err != nil || !res.OK {
		t.Fatalf("execute = %+v, %v", res, err)
	}
	if len(host.events) != 2 {
		t.Fatalf("events = %+v", host.events)
	}
	midi := host.events[0]
	if midi.Kind != protocol.EventMediaLoaded || midi.TrackKind != protocol.TrackMIDI || !filepath.IsAbs(midi.Path) || filepath.Base(midi.Path) != "song.mid" {
		t.Fatalf("midi event = %+v", midi)
	}
	audio := host.events[1]
	if audio.TrackKind != protocol.TrackAudio || audio.Path != "/abs/take.wav" {
		t.Fatalf("audio event = %+v", audio)
	}
}

func TestShellScratchDirPersists(t *testing.T) {
	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open prefs: %v", err)
	}
	defer store.Close()

	dir := t.TempDir()
	host := &recordingHost{}
	sh := newTestShell(t, host, store)
	res, err := sh.Execute(context.Background(), "apdir x "+dir)
	if err != nil || !res.OK {
		t.Fatalf("apdir = %+v, %v", res, err)
	}
	if sh.ScratchDir() != dir {
		t.Fatalf("scratch dir = %q, want %q", sh.ScratchDir(), dir)
	}
	if len(host.events) != 1 || host.events[0].Kind != protocol.EventScratchDir || host.events[0].Path != dir {
		t.Fatalf("events = %+v", host.events)
	}

	again := newTestShell(t, &recordingHost{}, store)
	if again.ScratchDir() != dir {
		t.Fatalf("reloaded scratch dir = %q, want %q", again.ScratchDir(), dir)
	}

	res, err = sh.Execute(context.Background(), "apdir /does/not/exist")
	if err != nil || res.OK {
		t.Fatalf("apdir on missing dir = %+v, %v; want command failure", res, err)
	}
}

func TestShellLibraryCommands(t *testing.T) {
	host := &recordingHost{}
	sh := newTestShell(t, host, nil)
	for _, cmd := range []string{"pin a", "pin b", "pio a", "tin t1"} {
		if res, err := sh.Execute(context.Background(), cmd); err != nil || !res.OK {
			t.Fatalf("%s = %+v, %v", cmd, res, err)
		}
	}
	res, err := sh.Execute(context.Background(), "pio missing")
	if err != nil || res.OK {
		t.Fatalf("pio missing = %+v, %v; want failure", res, err)
	}

	last := map[string][]string{}
	for _, ev := range host.events {
		if ev.Kind != protocol.EventLibraryStateChanged {
			t.Fatalf("unexpected event %+v", ev)
		}
		last[ev.Library] = ev.Payload
	}
	if got := strings.Join(last[protocol.LibraryPaths], ","); got != "a,b" {
		t.Fatalf("paths = %q", got)
	}
	if got := strings.Join(last[protocol.LibraryActivePath], ","); got != "a" {
		t.Fatalf("active path = %q", got)
	}
	if got := strings.Join(last[protocol.LibraryTextures], ","); got != "t1" {
		t.Fatalf("textures = %q", got)
	}
}

func TestFaultMessage(t *testing.T) {
	cases := []struct {
		fault *Fault
		want  string
	}{
		{&Fault{Msg: "boom"}, "boom"},
		{&Fault{Err: errors.New("inner")}, "inner"},
		{&Fault{}, UnknownError},
		{&Fault{Err: errors.New("")}, UnknownError},
	}
	for _, tc := range cases {
		if got := tc.fault.Error(); got != tc.want {
			t.Fatalf("Error() = %q, want %q", got, tc.want)
		}
	}
}
