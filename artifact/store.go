package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Info describes a stored artifact.
type Info struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
}

// Store reads and writes artifacts below the root of a filesystem. Names
// are slash-separated paths relative to that root.
type Store struct {
	fs *afero.Afero
}

// NewStore creates a store over fsys.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: &afero.Afero{Fs: fsys}}
}

// NewDirStore creates a store rooted at dir, creating the directory if needed.
func NewDirStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// Save stores (or overwrites) the artifact, creating parent directories.
func (s *Store) Save(name string, data []byte) error {
	p, err := cleanName(name)
	if err != nil {
		return err
	}

	if dir := path.Dir(p); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}

	if err := s.fs.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	return nil
}

// Get returns the artifact content or ErrNotFound.
func (s *Store) Get(name string) ([]byte, error) {
	p, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	data, err := s.fs.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}

	return data, nil
}

// List returns every regular file in the store sorted by name.
func (s *Store) List() ([]Info, error) {
	var infos []Info

	err := s.fs.Walk(".", func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if fi.IsDir() {
			return nil
		}

		infos = append(infos, Info{
			Name:    filepath.ToSlash(strings.TrimPrefix(p, "./")),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos, nil
}

// Delete removes the artifact or returns ErrNotFound.
func (s *Store) Delete(name string) error {
	p, err := cleanName(name)
	if err != nil {
		return err
	}

	exists, err := s.fs.Exists(p)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	return s.fs.Remove(p)
}

func cleanName(name string) (string, error) {
	p := path.Clean(filepath.ToSlash(strings.TrimSpace(name)))
	if p == "." || p == "/" || path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return p, nil
}
