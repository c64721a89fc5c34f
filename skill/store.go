package skill

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrModuleNotFound is returned by a Store for modules it does not hold.
var ErrModuleNotFound = errors.New("skill module not found")

// Store reads module bodies by name.
type Store interface {
	ReadModule(name string) (string, error)
}

//go:embed skills/*.md
var embedded embed.FS

// FSStore reads modules from a file system.
type FSStore struct {
	fsys fs.FS
}

// NewFSStore returns a store over fsys.
func NewFSStore(fsys fs.FS) *FSStore { return &FSStore{fsys: fsys} }

// NewDirStore returns a store reading from a directory on disk.
func NewDirStore(dir string) *FSStore { return NewFSStore(os.DirFS(dir)) }

// DefaultStore returns the store holding the built-in modules.
func DefaultStore() *FSStore {
	sub, err := fs.Sub(embedded, "skills")
	if err != nil {
		panic(err)
	}
	return NewFSStore(sub)
}

// ReadModule implements Store.
func (s *FSStore) ReadModule(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("%w: invalid name %q", ErrModuleNotFound, name)
	}
	b, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read module %s: %w", name, err)
	}
	return string(b), nil
}
