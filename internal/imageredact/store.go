package imageredact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gonkalabs/pii-masker-go/internal/apperr"
)

// Artifact is a redacted image written to the output directory.
type Artifact struct {
	Path string // location on disk
	Name string // file name, as served under /output/
}

// Store writes redacted images to a directory and serves them back by name.
// Reads and writes go through an os.Root, so names cannot escape the
// directory.
type Store struct {
	dir  string
	root *os.Root
	now  func() time.Time
}

// NewStore creates dir if needed and opens it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{dir: dir, root: root, now: time.Now}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Close releases the directory handle.
func (s *Store) Close() error { return s.root.Close() }

// artifactName formats the timestamped file name for t,
// e.g. redacted_20240131_154502_123456.png.
func artifactName(t time.Time) string {
	return fmt.Sprintf("redacted_%s_%06d.png", t.Format("20060102_150405"), t.Nanosecond()/1000)
}

const maxNameAttempts = 1000

// Save writes data under a fresh timestamped name. Files are created
// exclusively; when two saves land on the same microsecond the later one
// moves to the next free name.
func (s *Store) Save(data []byte) (Artifact, error) {
	t := s.now()
	for range maxNameAttempts {
		name := artifactName(t)
		f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			t = t.Add(time.Microsecond)
			continue
		}
		if err != nil {
			return Artifact{}, fmt.Errorf("store: create %s: %w", name, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			_ = s.root.Remove(name)
			return Artifact{}, fmt.Errorf("store: write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			_ = s.root.Remove(name)
			return Artifact{}, fmt.Errorf("store: close %s: %w", name, err)
		}
		return Artifact{Path: filepath.Join(s.dir, name), Name: name}, nil
	}
	return Artifact{}, fmt.Errorf("store: no free file name after %d attempts", maxNameAttempts)
}

// Open returns the stored file called name. Anything that is not a plain
// regular file directly inside the directory reports a NotFound error.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, nil, apperr.New(apperr.NotFound, "open_artifact", fmt.Errorf("not found"))
	}
	f, err := s.root.Open(name)
	if err != nil {
		return nil, nil, apperr.New(apperr.NotFound, "open_artifact", fmt.Errorf("not found"))
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, apperr.New(apperr.NotFound, "open_artifact", fmt.Errorf("not found"))
	}
	return f, info, nil
}
