// Package cache persists flat key to record mappings as JSON documents.
//
// Each logical cache (identity resolutions, astrometry artifacts, finder
// charts) is one file. Reads never fail: a missing or corrupt file is a cold
// start. Writes go to a temporary file that is renamed over the target, so a
// crash mid-write leaves the previous document in place.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Load reads the mapping stored at path. It returns an empty map when the
// file is absent or cannot be parsed.
func Load[T any](path string) map[string]T {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Unable to read cache, starting cold", "path", path, "error", err)
		}
		return make(map[string]T)
	}

	var out map[string]T
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("Corrupt cache file, starting cold", "path", path, "error", err)
		return make(map[string]T)
	}
	if out == nil {
		out = make(map[string]T)
	}
	return out
}

// Save writes the full mapping to path, creating parent directories.
func Save[T any](path string, data map[string]T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move cache file: %w", err)
	}

	return nil
}

// Store is the in-memory view of one cache document.
type Store[T any] struct {
	path string

	mu   sync.RWMutex
	data map[string]T
}

// Open loads the document at path into a new Store.
func Open[T any](path string) *Store[T] {
	return &Store[T]{
		path: path,
		data: Load[T](path),
	}
}

// Path returns the backing file location.
func (s *Store[T]) Path() string {
	return s.path
}

func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Store[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns the stored keys in sorted order.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Persist writes the current mapping to disk.
func (s *Store[T]) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Save(s.path, s.data)
}

// Clear drops every entry and removes the backing file.
func (s *Store[T]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]T)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
