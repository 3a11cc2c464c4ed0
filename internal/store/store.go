// Package store persists user-authored manual updates in a small JSON
// file next to the config. The pipeline reads a snapshot at run start;
// authoring happens outside the core (the `note` CLI command or any
// editor), so the file is watched for changes.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// maxUpdates caps how many manual updates are loaded; anything past
// that is an authoring mistake, not a report.
const maxUpdates = 30

type fileFormat struct {
	ManualUpdates []string `json:"manual_updates"`
}

// Store caches the manual-update list and keeps it fresh via fsnotify.
type Store struct {
	path string

	mu      sync.RWMutex
	updates []string
}

// Open loads the file (a missing file is an empty list) and returns
// the store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// ManualUpdates returns the current list in insertion order.
func (s *Store) ManualUpdates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.updates...)
}

// Append adds one manual update and persists the file. Used by the
// `note` CLI command.
func (s *Store) Append(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("manual update is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updates := append(append([]string(nil), s.updates...), text)
	data, err := json.MarshalIndent(fileFormat{ManualUpdates: updates}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	s.updates = updates
	return nil
}

// Clear empties the list, typically after a delivered report.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(fileFormat{ManualUpdates: []string{}}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	s.updates = nil
	return nil
}

// Watch reloads the file whenever it changes on disk, until the
// watcher is closed. It returns the closer.
func (s *Store) Watch() (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: editors replace files rather than writing
	// in place, which drops inode-level watches.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					log.Warn().Err(err).Msg("manual updates reload failed")
				} else {
					log.Debug().Str("path", s.path).Msg("manual updates reloaded")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("manual updates watcher error")
			}
		}
	}()

	return watcher.Close, nil
}

func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.updates = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	cleaned := make([]string, 0, len(f.ManualUpdates))
	for _, u := range f.ManualUpdates {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		cleaned = append(cleaned, u)
		if len(cleaned) == maxUpdates {
			break
		}
	}

	s.mu.Lock()
	s.updates = cleaned
	s.mu.Unlock()
	return nil
}
