package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestThemePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := s.Theme(); got != ThemeLight {
		t.Errorf("default theme = %q, want light", got)
	}

	if err := s.SetTheme(ThemeDark); err != nil {
		t.Fatalf("set theme: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Theme(); got != ThemeDark {
		t.Errorf("reopened theme = %q, want dark", got)
	}
}

func TestInvalidTheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	s, _ := Open(path)

	if err := s.SetTheme("sepia"); err != ErrInvalidTheme {
		t.Errorf("SetTheme(sepia) err = %v, want ErrInvalidTheme", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("rejected theme should not create the file")
	}

	if err := os.WriteFile(path, []byte("theme: purple\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := s.Theme(); got != ThemeLight {
		t.Errorf("unknown stored theme should fall back to light, got %q", got)
	}
}
