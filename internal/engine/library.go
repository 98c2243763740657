package engine

import (
	"slices"

	"github.com/cbegin/athenacl-go/internal/prefs"
	"github.com/cbegin/athenacl-go/internal/protocol"
)

const (
	keyPaths         = "lib.paths"
	keyTextures      = "lib.textures"
	keyActivePath    = "lib.active_path"
	keyActiveTexture = "lib.active_texture"
)

// library tracks named path and texture instances and which one of each is
// active. Only the names matter to the front-end.
type library struct {
	paths         []string
	textures      []string
	activePath    string
	activeTexture string
}

func loadLibrary(store *prefs.Store) (library, error) {
	var lib library
	if store == nil {
		return lib, nil
	}
	var err error
	if lib.paths, err = store.GetList(keyPaths); err != nil {
		return lib, err
	}
	if lib.textures, err = store.GetList(keyTextures); err != nil {
		return lib, err
	}
	if lib.activePath, _, err = store.Get(keyActivePath); err != nil {
		return lib, err
	}
	if lib.activeTexture, _, err = store.Get(keyActiveTexture); err != nil {
		return lib, err
	}
	return lib, nil
}

// add inserts name into the list selected by kind and makes it active.
// It returns the events describing the change.
func (l *library) add(kind, name string) []protocol.Event {
	list, active := l.slots(kind)
	if !slices.Contains(*list, name) {
		*list = append(*list, name)
	}
	*active = name
	return []protocol.Event{
		protocol.LibraryStateChanged(0, kind, slices.Clone(*list)),
		protocol.LibraryStateChanged(0, activeLibrary(kind), []string{name}),
	}
}

// selectActive makes an existing name active. It reports false when the
// name is unknown.
func (l *library) selectActive(kind, name string) ([]protocol.Event, bool) {
	list, active := l.slots(kind)
	if !slices.Contains(*list, name) {
		return nil, false
	}
	*active = name
	return []protocol.Event{protocol.LibraryStateChanged(0, activeLibrary(kind), []string{name})}, true
}

func (l *library) save(store *prefs.Store) error {
	if store == nil {
		return nil
	}
	if err := store.SetList(keyPaths, l.paths); err != nil {
		return err
	}
	if err := store.SetList(keyTextures, l.textures); err != nil {
		return err
	}
	if err := store.Set(keyActivePath, l.activePath); err != nil {
		return err
	}
	return store.Set(keyActiveTexture, l.activeTexture)
}

func (l *library) slots(kind string) (*[]string, *string) {
	if kind == protocol.LibraryTextures {
		return &l.textures, &l.activeTexture
	}
	return &l.paths, &l.activePath
}

func activeLibrary(kind string) string {
	if kind == protocol.LibraryTextures {
		return protocol.LibraryActiveTexture
	}
	return protocol.LibraryActivePath
}
