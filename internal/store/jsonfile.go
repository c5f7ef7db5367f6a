package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// Store is a JSON-file-backed key-value store. Each name maps to one file
// under the data root; values are whole-file documents. Writes are atomic
// (temp file then rename) so a concurrent reader only ever observes the old
// or the new content, and writers to the same name are serialized by an
// in-process per-name lock.
type Store struct {
	root string
	log  *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the store rooted at root, creating the directory layout
// the service expects.
func NewStore(root string, log *logger.Logger) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, "config"), filepath.Join(root, "state"), filepath.Join(root, "logs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return &Store{
		root:  root,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the data root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Read unmarshals the named document into out. A missing, empty, or corrupt
// file leaves out at its zero value: persistence corruption is recovered by
// defaulting and logged, never surfaced as a failure.
func (s *Store) Read(name string, out any) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Failed to read store file, using default", "file", name, "error", err)
		}
		return
	}
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("Corrupt store file, using default", "file", name, "error", err)
	}
}

// Write atomically replaces the named document.
func (s *Store) Write(name string, v any) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()
	return s.writeLocked(name, v)
}

// Mutate runs a read-modify-write cycle under the per-name lock so that
// concurrent mutations of the same document cannot interleave. fn receives
// the current document and returns the replacement.
func Mutate[T any](s *Store, name string, fn func(current T) (T, error)) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	var current T
	s.Read(name, &current)
	next, err := fn(current)
	if err != nil {
		return err
	}
	return s.writeLocked(name, next)
}

func (s *Store) writeLocked(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	target := s.path(name)
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
