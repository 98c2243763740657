package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/cbegin/athenacl-go/internal/config"
)

func TestAppCommands(t *testing.T) {
	app := newApp()
	want := map[string]bool{"run": false, "exec": false, "render": false, "config": false}
	for _, c := range app.Commands {
		if _, ok := want[c.Name]; ok {
			want[c.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing command %q", name)
		}
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "athenacl.toml")
	if err := os.WriteFile(path, []byte("tempo = 90\nprefs = \"/from/file.db\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got config.Config
	app := newApp()
	app.Action = func(ctx context.Context, cmd *cli.Command) error {
		var err error
		got, err = loadConfig(cmd)
		return err
	}
	prefsPath := filepath.Join(dir, "p.db")
	args := []string{"athenacl", "--config", path, "--prefs", prefsPath, "--allow-exec"}
	if err := app.Run(context.Background(), args); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Tempo != 90 || got.PrefsPath != prefsPath || !got.AllowExec {
		t.Fatalf("cfg = %+v", got)
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mid")
	out := filepath.Join(dir, "out.wav")
	// format 0, one empty track
	smf := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0, 96,
		'M', 'T', 'r', 'k', 0, 0, 0, 4, 0x00, 0xff, 0x2f, 0x00,
	}
	if err := os.WriteFile(in, smf, 0o644); err != nil {
		t.Fatal(err)
	}
	args := []string{"athenacl", "--config", filepath.Join(dir, "none.toml"), "render", "--seconds", "0.5", "--sample-rate", "8000", in, out}
	if err := newApp().Run(context.Background(), args); err != nil {
		t.Fatalf("render: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if want := int64(44 + 4000*2*4); info.Size() != want {
		t.Fatalf("size = %d, want %d", info.Size(), want)
	}
}
