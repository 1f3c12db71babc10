// Package storage selects and opens the account and audit store.
package storage

import (
	"fmt"

	"github.com/tjfontaine/movegate/internal/core/ports"
	"github.com/tjfontaine/movegate/internal/storage/memory"
	"github.com/tjfontaine/movegate/internal/storage/sqldb"
)

// Store is implemented by every backend.
type Store interface {
	ports.UserStore
	ports.AuditStore
}

// Config selects a backend.
type Config struct {
	Type string // memory, sqlite, postgres
	DSN  string // path for sqlite, connection string for postgres
}

// Open returns the store described by cfg. An empty type selects memory.
func Open(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return sqldb.NewSQLite(cfg.DSN)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres storage requires a dsn")
		}
		return sqldb.New(sqldb.Config{Driver: "postgres", DSN: cfg.DSN})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
