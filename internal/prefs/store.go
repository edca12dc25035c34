package prefs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Store keeps preferences in a YAML file. Every change rewrites the file.
type Store struct {
	mu        sync.Mutex
	path      string
	fallback  Prefs
	prefs     Prefs
	lastWrite []byte
	logger    *log.Logger
}

// Open loads the preferences at path. A missing or corrupt file yields
// fallback, which is clamped first.
func Open(path string, fallback Prefs, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Store{
		path:     path,
		fallback: fallback.Clamp(),
		logger:   logger.WithPrefix("prefs"),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}
	s.prefs = s.read()
	return s, nil
}

func (s *Store) read() Prefs {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.fallback
	}
	if err != nil {
		s.logger.Warn("reading prefs", "path", s.path, "error", err)
		return s.fallback
	}

	// Unset fields keep their fallback values.
	p := s.fallback
	if err := yaml.Unmarshal(data, &p); err != nil {
		s.logger.Warn("corrupt prefs, using defaults", "path", s.path, "error", err)
		return s.fallback
	}
	return p.Clamp()
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Get returns the current preferences.
func (s *Store) Get() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Update applies fn, clamps the result and writes it out.
func (s *Store) Update(fn func(Prefs) Prefs) (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.prefs).Clamp()
	data, err := yaml.Marshal(next)
	if err != nil {
		return s.prefs, fmt.Errorf("encode prefs: %w", err)
	}
	if err := writeFile(s.path, data); err != nil {
		return s.prefs, err
	}
	s.prefs = next
	s.lastWrite = data
	return next, nil
}

// SetVoice stores a catalog voice and forgets any custom voice id.
func (s *Store) SetVoice(name string) error {
	_, err := s.Update(func(p Prefs) Prefs {
		p.Voice = name
		p.CustomVoiceID = ""
		return p
	})
	return err
}

// SetCustomVoice stores a custom voice id.
func (s *Store) SetCustomVoice(id string) error {
	_, err := s.Update(func(p Prefs) Prefs {
		p.CustomVoiceID = id
		return p
	})
	return err
}

// ToggleDark flips dark mode and returns the new value.
func (s *Store) ToggleDark() (bool, error) {
	p, err := s.Update(func(p Prefs) Prefs {
		p.Dark = !p.Dark
		return p
	})
	return p.Dark, err
}

// Reset restores the fallback preferences.
func (s *Store) Reset() error {
	_, err := s.Update(func(Prefs) Prefs { return s.fallback })
	return err
}

// Watch reloads the preferences when the file is edited by someone else
// and calls onChange with the new values. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(Prefs)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Debug("watching prefs", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if p, changed := s.reload(); changed && onChange != nil {
				s.logger.Debug("prefs changed on disk", "event", event.Op)
				onChange(p)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Debug("watch error", "error", err)
		}
	}
}

// reload rereads the file, ignoring our own writes.
func (s *Store) reload() (Prefs, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Prefs{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(data, s.lastWrite) {
		return s.prefs, false
	}

	p := s.fallback
	if err := yaml.Unmarshal(data, &p); err != nil {
		// Likely a partial write by an editor; the next event will do.
		return s.prefs, false
	}
	p = p.Clamp()
	if p == s.prefs {
		return p, false
	}
	s.prefs = p
	s.lastWrite = data
	return p, true
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".prefs-*")
	if err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}
