// Package store persists option records behind a small key-value interface.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/playok/adminsync/internal/config"
	"github.com/playok/adminsync/internal/model"
)

// ErrListUnsupported is returned by drivers that cannot enumerate keys.
var ErrListUnsupported = errors.New("store: driver cannot list options")

// Store is an option table: every record is addressed by its full option name.
type Store interface {
	// Get returns the stored value and whether a record exists.
	Get(ctx context.Context, name string) (string, bool, error)
	// Create adds a record. An existing record is left untouched.
	Create(ctx context.Context, name, value string) error
	// Update sets a record, creating it if needed.
	Update(ctx context.Context, name, value string) error
	// List returns all records ordered by name.
	List(ctx context.Context) ([]model.Setting, error)
	Close() error
}

// Open connects the driver selected by cfg.
func Open(cfg config.Store) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLite(cfg.Path)
	case config.DriverRedis:
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	case config.DriverMemcache:
		return NewMemcache(cfg.MemcacheServers...)
	case config.DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
