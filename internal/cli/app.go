// Package cli wires dsscan's cobra command tree to the rest of the
// module: it owns the one place that opens the database, builds the
// durable components, and decides the process's exit code.
package cli

import (
	"fmt"

	"github.com/hazyhaar/dsscan/internal/cache"
	"github.com/hazyhaar/dsscan/internal/config"
	"github.com/hazyhaar/dsscan/internal/found"
	"github.com/hazyhaar/dsscan/internal/queue"
	"github.com/hazyhaar/dsscan/internal/scanner"
	"github.com/hazyhaar/dsscan/internal/session"
	"github.com/hazyhaar/dsscan/internal/store"
)

// env bundles every durable component a command needs, plus the
// cleanup routine that checkpoints and closes the database.
type env struct {
	cfg      config.Config
	store    *store.Store
	cache    *cache.Cache
	queue    *queue.Queue
	sessions *session.Registry
	found    *found.Log
}

func (e *env) deps(logger *logger) scanner.Deps {
	return scanner.Deps{
		Cache:    e.cache,
		Queue:    e.queue,
		Sessions: e.sessions,
		Found:    e.found,
		Log:      logger.slog,
	}
}

func (e *env) close() error {
	return e.store.Close()
}

// openEnv loads the config, opens the store, and constructs every
// durable component. windowHours, when non-nil, overrides the config's
// cache_window_hours for this invocation only (per §13's
// --window-hours flag).
func openEnv(log *logger, windowHours *int64, forceRefresh bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cli: load config: %w", err)
	}
	if windowHours != nil {
		cfg.CacheWindowHours = *windowHours
	}
	warnings := cfg.Validate()
	for _, w := range warnings {
		log.progress("%s", warnBanner(w))
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("cli: open database: %w", err)
	}

	c, err := cache.Open(s, cfg.CacheWindowHours, forceRefresh)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("cli: open cache: %w", err)
	}

	q := queue.Open(s)
	reg := session.Open(s, q, cfg.CacheWindowHours)
	f := found.Open(s)

	return &env{cfg: cfg, store: s, cache: c, queue: q, sessions: reg, found: f}, nil
}
