// Package cache persists named artifacts under a cache directory and decides
// whether a complete, usable cache exists.
package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/metrics"
)

var (
	// ErrNotFound is returned by Load when the artifact is absent.
	ErrNotFound = errors.New("artifact not found")
	// ErrCorrupt is returned by Load when the artifact cannot be decoded.
	ErrCorrupt = errors.New("artifact corrupt")
)

const tmpSuffix = ".tmp"

// Store maps artifact names to files in a single directory.
type Store struct {
	log   *slog.Logger
	locks map[string]*sync.Mutex
	dir   string
	mu    sync.Mutex
}

// EntryStatus reports presence and size of one manifest entry.
type EntryStatus struct {
	Entry
	Size    int64
	Present bool
}

// New creates a store rooted at dir, creating the directory if absent.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{
		dir:   dir,
		log:   common.OrDefault(logger),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for an artifact.
func (s *Store) Path(name, ext string) string {
	return filepath.Join(s.dir, name+ext)
}

// Has reports whether the artifact file is present.
func (s *Store) Has(name, ext string) bool {
	info, err := os.Stat(s.Path(name, ext))
	return err == nil && info.Mode().IsRegular()
}

// Exists reports whether the directory exists and every manifest entry is present.
// A single missing entry makes the whole cache unusable.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.dir)
	if err != nil || !info.IsDir() {
		return false
	}
	for _, e := range Manifest {
		if !s.Has(e.Name, e.Ext) {
			s.log.Debug("cache incomplete", "missing", e.File())
			return false
		}
	}
	return true
}

// Status lists every manifest entry with its presence.
func (s *Store) Status() []EntryStatus {
	out := make([]EntryStatus, 0, len(Manifest))
	for _, e := range Manifest {
		st := EntryStatus{Entry: e}
		if info, err := os.Stat(s.Path(e.Name, e.Ext)); err == nil && info.Mode().IsRegular() {
			st.Present = true
			st.Size = info.Size()
		}
		out = append(out, st)
	}
	return out
}

// Remove deletes an artifact. Removing an absent artifact is not an error.
func (s *Store) Remove(name, ext string) error {
	lock := s.lockFor(name + ext)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.Path(name, ext)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name+ext, err)
	}
	return nil
}

// Clear deletes the whole cache tree and recreates the empty directory.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear cache directory: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to recreate cache directory: %w", err)
	}
	return nil
}

func (s *Store) lockFor(file string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[file]
	if !ok {
		l = &sync.Mutex{}
		s.locks[file] = l
	}
	return l
}

// Save writes v under name. The file appears under its final name only once it
// has been fully written, so readers never observe a partial artifact.
func Save[T any](s *Store, name string, k Kind[T], v T) error {
	file := name + k.ext
	lock := s.lockFor(file)
	lock.Lock()
	defer lock.Unlock()

	if err := save(s, file, k, v); err != nil {
		metrics.ArtifactOps.WithLabelValues("save", "error").Inc()
		s.log.Error("failed to save cache artifact", "artifact", file, "error", err)
		return fmt.Errorf("save %s: %w", file, err)
	}
	metrics.ArtifactOps.WithLabelValues("save", "ok").Inc()
	s.log.Debug("saved cache artifact", "artifact", file)
	return nil
}

func save[T any](s *Store, file string, k Kind[T], v T) (err error) {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, file+".*"+tmpSuffix)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = k.encode(w, v); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, file))
}

// Load reads the artifact stored under name. It returns ErrNotFound when the
// artifact is absent and ErrCorrupt when it cannot be decoded.
func Load[T any](s *Store, name string, k Kind[T]) (T, error) {
	var zero T
	file := name + k.ext

	f, err := os.Open(filepath.Join(s.dir, file))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.ArtifactOps.WithLabelValues("load", "not_found").Inc()
			return zero, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		metrics.ArtifactOps.WithLabelValues("load", "error").Inc()
		s.log.Error("failed to open cache artifact", "artifact", file, "error", err)
		return zero, fmt.Errorf("%w: %s: %v", ErrCorrupt, file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		metrics.ArtifactOps.WithLabelValues("load", "error").Inc()
		return zero, fmt.Errorf("%w: %s: %v", ErrCorrupt, file, err)
	}

	v, err := k.decode(f, info.Size())
	if err != nil {
		metrics.ArtifactOps.WithLabelValues("load", "error").Inc()
		s.log.Warn("discarding corrupt cache artifact", "artifact", file, "error", err)
		return zero, fmt.Errorf("%w: %s: %v", ErrCorrupt, file, err)
	}
	metrics.ArtifactOps.WithLabelValues("load", "ok").Inc()
	return v, nil
}

// IsMiss reports whether err means the caller should recompute the artifact.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt)
}
