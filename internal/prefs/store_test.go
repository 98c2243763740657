package prefs

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestStoreRoundTripPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok, err := s.Get(KeyScratchDir); err != nil || ok {
		t.Fatalf("get on empty store = ok %v, err %v", ok, err)
	}
	if err := s.Set(KeyScratchDir, "/tmp/a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(KeyScratchDir, "/tmp/b"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	v, ok, err := s.Get(KeyScratchDir)
	if err != nil || !ok || v != "/tmp/b" {
		t.Fatalf("get after reopen = %q, %v, %v; want /tmp/b", v, ok, err)
	}
}

func TestStoreEnablesWALAndBusyTimeout(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
	var timeout int
	if err := s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("query busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestStoreLists(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	got, err := s.GetList("paths")
	if err != nil || got != nil {
		t.Fatalf("missing list = %v, %v; want nil, nil", got, err)
	}
	want := []string{"a", "b"}
	if err := s.SetList("paths", want); err != nil {
		t.Fatalf("set list: %v", err)
	}
	got, err = s.GetList("paths")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("list = %v, want %v", got, want)
	}
}
