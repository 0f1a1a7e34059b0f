// Package config loads and saves dsscan's small YAML configuration
// document, following the load-or-create-default idiom used throughout
// the example pack's config loaders.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const defaultWindowHours = 168

// Config is the on-disk configuration document. Only the two fields
// the core engine actually consumes are modeled; the CLI layer owns
// everything else (recursive, dry-run, force-refresh, verbosity) as
// per-invocation flags rather than persisted state.
type Config struct {
	DatabasePath     string `yaml:"database_path"`
	CacheWindowHours int64  `yaml:"cache_window_hours"`
}

// Default returns a Config populated with the conventional defaults:
// ~/.config/dsscan/cache.sqlite and a one-week freshness window.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("config: determine home directory: %w", err)
	}
	return Config{
		DatabasePath:     filepath.Join(home, ".config", "dsscan", "cache.sqlite"),
		CacheWindowHours: defaultWindowHours,
	}, nil
}

// ConfigPath returns the default config file location,
// $HOME/.config/dsscan/config.yaml.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dsscan", "config.yaml"), nil
}

// Load reads the config file at its default location, creating it with
// defaults if absent.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFromFile(path)
}

// LoadFromFile reads path, or writes and returns the default config if
// path does not exist.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg, err := Default()
		if err != nil {
			return Config{}, err
		}
		if err := SaveToFile(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	warnings := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "WARN config: %s\n", w)
	}
	return cfg, nil
}

// Save writes the config to its default location.
func (c Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToFile(path, c)
}

// SaveToFile writes cfg as YAML to path, creating parent directories as
// needed.
func SaveToFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate replaces a non-positive cache_window_hours with the 168-hour
// default and an empty database_path with the default path, and returns
// a warning for each replacement, in the warn-and-fix idiom used for
// validating loaded configuration elsewhere in the pack.
func (c *Config) Validate() []string {
	var warnings []string
	if c.CacheWindowHours <= 0 {
		warnings = append(warnings, fmt.Sprintf("cache_window_hours %d is not positive, using default %d", c.CacheWindowHours, defaultWindowHours))
		c.CacheWindowHours = defaultWindowHours
	}
	if c.DatabasePath == "" {
		def, err := Default()
		if err == nil {
			warnings = append(warnings, fmt.Sprintf("database_path is empty, using default %s", def.DatabasePath))
			c.DatabasePath = def.DatabasePath
		}
	}
	return warnings
}

// WatchFile watches path for writes and invokes callback on change,
// adapted from the teacher's fsnotify-based config watcher to retarget
// a long-lived invocation's cache window without a restart.
func WatchFile(path string, callback func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == path && event.Op&fsnotify.Write == fsnotify.Write {
					callback()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher, nil
}
