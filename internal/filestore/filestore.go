// Package filestore reads and writes documents on a billy filesystem.
package filestore

import (
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
)

// Store resolves URIs against a filesystem root. Both plain paths and
// file:// URIs are accepted.
type Store struct {
	fs billy.Filesystem
}

func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// NewOS returns a store over the directory root. Relative paths are
// resolved against root; absolute paths must be inside it.
func NewOS(root string) *Store {
	return New(osfs.New(root, osfs.WithBoundOS()))
}

func NewMemory() *Store {
	return New(memfs.New())
}

func (s *Store) Filesystem() billy.Filesystem {
	return s.fs
}

func Path(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func (s *Store) Read(uri string) ([]byte, error) {
	name := Path(uri)
	f, err := s.fs.Open(name)
	if err != nil {
		var pathError *os.PathError
		if errors.As(err, &pathError) {
			return nil, errors.Errorf("failed to %s file %s: %s", pathError.Op, pathError.Path, pathError.Err.Error())
		}
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	return data, nil
}

// Write replaces the content of uri, creating parent directories.
func (s *Store) Write(uri string, data []byte) error {
	name := Path(uri)
	if dir := path.Dir(name); dir != "." && dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	return errors.Wrapf(util.WriteFile(s.fs, name, data, 0o644), "failed to write %s", name)
}

func (s *Store) Exists(uri string) bool {
	_, err := s.fs.Stat(Path(uri))
	return err == nil
}

func (s *Store) Delete(uri string) error {
	return errors.Wrapf(s.fs.Remove(Path(uri)), "failed to delete %s", Path(uri))
}

// Writable reports whether uri can be written. A missing file is
// writable; an existing one must carry the owner write bit.
func (s *Store) Writable(uri string) bool {
	info, err := s.fs.Stat(Path(uri))
	if err != nil {
		return os.IsNotExist(err)
	}
	return !info.IsDir() && info.Mode().Perm()&0o200 != 0
}

// List returns the names of regular files in dir with the given
// extension, sorted by name.
func (s *Store) List(dir, ext string) ([]string, error) {
	infos, err := s.fs.ReadDir(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ext) {
			continue
		}
		names = append(names, path.Join(Path(dir), info.Name()))
	}
	return names, nil
}
