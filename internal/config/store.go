package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 150 * time.Millisecond

// Snapshot is an immutable point-in-time copy of the settings plus facts
// that live outside the settings file.
type Snapshot struct {
	Config
	APIKeyPresent bool
}

// Store owns the live settings. Readers take snapshots; writers go through
// Set or a file reload. Nothing handed out by the store aliases its state.
type Store struct {
	path        string
	credentials func() bool
	logger      *slog.Logger

	mu      sync.RWMutex
	current Config
}

// NewStore starts from an already loaded document. credentials reports
// whether an API key is available; nil means never.
func NewStore(loaded Loaded, credentials func() bool, logger *slog.Logger) *Store {
	if credentials == nil {
		credentials = func() bool { return false }
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		path:        loaded.Path,
		credentials: credentials,
		logger:      logger,
		current:     loaded.Config.Clone(),
	}
}

// Path is the settings file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a fresh copy of the settings. Call it at each decision
// point rather than holding on to an older one.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	cfg := s.current.Clone()
	s.mu.RUnlock()

	return Snapshot{
		Config:        cfg,
		APIKeyPresent: s.credentials(),
	}
}

// Set applies one key, persists the whole document, and swaps it in.
func (s *Store) Set(key, value string) (Config, []Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, warnings, err := Apply(s.current, key, value)
	if err != nil {
		return Config{}, nil, err
	}
	if err := Save(s.path, next); err != nil {
		return Config{}, nil, err
	}
	s.current = next
	s.logger.Info("settings updated", "key", key, "path", s.path)
	return next.Clone(), warnings, nil
}

// Reload re-reads the settings file. A broken file leaves the previous
// settings in place and returns the parse error.
func (s *Store) Reload() (Config, error) {
	loaded, err := Load(s.path)
	if err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	s.current = loaded.Config.Clone()
	s.mu.Unlock()

	for _, w := range loaded.Warnings {
		s.logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	return loaded.Config.Clone(), nil
}

// Watch reloads the store whenever the settings file changes and calls
// onChange with the new settings. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer watcher.Close()

	// Editors save by renaming over the file, so watch the directory.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				cfg, err := s.Reload()
				if err != nil {
					s.logger.Error("settings reload failed; keeping previous settings", "error", err.Error())
					return
				}
				s.logger.Info("settings reloaded", "path", s.path)
				if onChange != nil {
					onChange(cfg)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watcher error", "error", err.Error())
		}
	}
}
