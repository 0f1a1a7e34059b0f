package config

import (
	"path/filepath"
	"testing"
)

func TestLoadFromFileCreatesDefaultWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.CacheWindowHours != defaultWindowHours {
		t.Errorf("CacheWindowHours = %d, want %d", cfg.CacheWindowHours, defaultWindowHours)
	}
	if cfg.DatabasePath == "" {
		t.Errorf("DatabasePath is empty, want a default")
	}

	reloaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("second LoadFromFile() error = %v", err)
	}
	if reloaded != cfg {
		t.Errorf("reloaded config = %+v, want %+v (file should have been written)", reloaded, cfg)
	}
}

func TestLoadFromFileParsesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Config{DatabasePath: "/tmp/db.sqlite", CacheWindowHours: 24}
	if err := SaveToFile(path, cfg); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded != cfg {
		t.Errorf("LoadFromFile() = %+v, want %+v", loaded, cfg)
	}
}

func TestValidateClampsNonPositiveWindow(t *testing.T) {
	cfg := Config{DatabasePath: "/tmp/db.sqlite", CacheWindowHours: -5}
	warnings := cfg.Validate()
	if len(warnings) == 0 {
		t.Errorf("Validate() produced no warnings for a negative window")
	}
	if cfg.CacheWindowHours != defaultWindowHours {
		t.Errorf("CacheWindowHours after Validate() = %d, want %d", cfg.CacheWindowHours, defaultWindowHours)
	}
}

func TestVerbosityTruthTable(t *testing.T) {
	cases := []struct {
		verbose, quiet bool
		want           Verbosity
	}{
		{false, false, Normal},
		{true, false, Verbose},
		{false, true, Quiet},
		{true, true, Normal},
	}
	for _, c := range cases {
		got := NewVerbosityFromFlags(c.verbose, c.quiet)
		if got != c.want {
			t.Errorf("NewVerbosityFromFlags(%v, %v) = %v, want %v", c.verbose, c.quiet, got, c.want)
		}
	}
}
