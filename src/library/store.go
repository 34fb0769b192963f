package library

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a book id does not exist.
var ErrNotFound = errors.New("book not found")

// Store is the persistence boundary for the personal library. List returns
// records newest first (added_at descending, id descending on ties). Update
// applies a sparse patch atomically and returns the updated record.
type Store interface {
	Add(ctx context.Context, b Book) (int64, error)
	Get(ctx context.Context, id int64) (Book, error)
	List(ctx context.Context) ([]Book, error)
	Update(ctx context.Context, id int64, p Patch) (Book, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Close() error
}

// Config selects and parameterizes a store backend.
type Config struct {
	// Driver is "sqlite", "postgres", or "memory".
	Driver string `yaml:"driver"`

	// Path is the database file for the sqlite driver.
	Path string `yaml:"path"`

	// DSN is the connection string for the postgres driver.
	DSN string `yaml:"dsn"`
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "library.db"
		}
		return NewSQLiteStore(path)
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("postgres driver requires a dsn")
		}
		return NewPostgresStore(ctx, cfg.DSN)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown library driver %q", cfg.Driver)
	}
}
