// Package prefs persists the client-only preferences in a small YAML file.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Theme is the UI colour scheme
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrInvalidTheme is returned for anything but light or dark
var ErrInvalidTheme = errors.New("theme must be light or dark")

// ParseTheme validates s.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(s); t {
	case ThemeLight, ThemeDark:
		return t, nil
	}
	return "", ErrInvalidTheme
}

type fileContents struct {
	Theme Theme `yaml:"theme"`
}

// Store reads and writes the preferences file.
type Store struct {
	path string
	mu   sync.Mutex
	data fileContents
}

// Open loads path. A missing or unreadable file yields the light theme.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: fileContents{Theme: ThemeLight}}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read preferences: %w", err)
	}

	var stored fileContents
	if err := yaml.Unmarshal(raw, &stored); err != nil {
		return s, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if t, err := ParseTheme(string(stored.Theme)); err == nil {
		s.data.Theme = t
	}
	return s, nil
}

// Theme returns the stored theme.
func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Theme
}

// SetTheme stores t and writes the file.
func (s *Store) SetTheme(t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data
	next.Theme = t
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// write replaces the file atomically via a temp file in the same directory.
func (s *Store) write(data fileContents) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preferences-*")
	if err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
