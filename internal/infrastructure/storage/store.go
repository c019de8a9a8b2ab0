package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"FlatScanner/internal/config"
	"FlatScanner/internal/ports"
)

// ErrUnknownDriver is returned by Open for drivers nobody registered.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is a seen-id store that can claim ids atomically and must be closed.
type Store interface {
	ports.SeenStore
	ports.SeenClaimer
	io.Closer
}

// Factory opens a store from its configuration.
type Factory func(ctx context.Context, cfg config.StorageConfig) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		"memory": func(_ context.Context, cfg config.StorageConfig) (Store, error) {
			return NewMemoryStore(cfg.RetentionTTL()), nil
		},
		"sqlite": func(ctx context.Context, cfg config.StorageConfig) (Store, error) {
			return OpenSQLite(ctx, cfg.DSN)
		},
		"postgres": func(ctx context.Context, cfg config.StorageConfig) (Store, error) {
			return OpenPostgres(ctx, cfg.DSN)
		},
		"redis": func(ctx context.Context, cfg config.StorageConfig) (Store, error) {
			return OpenRedis(ctx, cfg.DSN, cfg.RetentionTTL())
		},
	}
)

// RegisterDriver adds or replaces a storage driver.
func RegisterDriver(name string, fn Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[strings.ToLower(name)] = fn
}

// Drivers lists the registered driver names.
func Drivers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the store selected by cfg.Driver, defaulting to sqlite.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	factoriesMu.RLock()
	fn, ok := factories[driver]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownDriver, driver, strings.Join(Drivers(), ", "))
	}

	store, err := fn(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return store, nil
}
