// Package localcache is the device's persisted read cache: one JSON file
// mapping namespaced keys to {data, writtenAtEpochMs}. Every write replaces
// the whole file atomically. Last write wins per key.
package localcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type entry struct {
	Data             json.RawMessage `json:"data"`
	WrittenAtEpochMs int64           `json:"writtenAtEpochMs"`
}

type Store struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// Open loads the cache file at path, creating its directory if needed. A
// missing file is an empty cache; an unreadable one is discarded.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	s := &Store{path: path, now: time.Now, entries: make(map[string]entry)}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if err := json.Unmarshal(b, &s.entries); err != nil {
		slog.Warn("discarding unreadable local cache", "path", path, "error", err)
		s.entries = make(map[string]entry)
	}
	return s, nil
}

// Get decodes the entry for key into dst and returns its age. A missing or
// undecodable entry is a miss; undecodable entries are dropped.
func (s *Store) Get(key string, dst any) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		slog.Debug("dropping corrupt local cache entry", "key", key, "error", err)
		delete(s.entries, key)
		if err := s.persistLocked(); err != nil {
			slog.Warn("failed to persist local cache", "error", err)
		}
		return 0, false
	}
	age := s.now().Sub(time.UnixMilli(e.WrittenAtEpochMs))
	if age < 0 {
		age = 0
	}
	return age, true
}

func (s *Store) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{Data: data, WrittenAtEpochMs: s.now().UnixMilli()}
	return s.persistLocked()
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.persistLocked()
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (s *Store) DeletePrefix(prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.persistLocked()
}

// persistLocked writes the whole map to a temp file and renames it over the
// cache file. s.mu must be held.
func (s *Store) persistLocked() error {
	b, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("failed to encode local cache: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close temp file after write error", "error", cerr)
		}
		if rerr := os.Remove(tmp); rerr != nil {
			slog.Error("failed to remove temp file after write error", "error", rerr)
		}
		return fmt.Errorf("failed to write local cache: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(tmp); rerr != nil {
			slog.Error("failed to remove temp file after close error", "error", rerr)
		}
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if rerr := os.Remove(tmp); rerr != nil {
			slog.Error("failed to remove temp file after rename error", "error", rerr)
		}
		return fmt.Errorf("failed to replace local cache: %w", err)
	}
	return nil
}
