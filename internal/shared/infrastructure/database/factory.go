package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Connection is an open database handle. Concrete connections also expose the
// driver-native handle (Pool() for Postgres, DB() for SQLite) for repositories.
type Connection interface {
	Driver() Driver
	Ping(ctx context.Context) error
	Close() error
}

// Config holds database configuration.
type Config struct {
	// Driver selects the backend; empty or "auto" detects it from URL.
	Driver Driver
	// URL is the Postgres connection string.
	URL string
	// SQLitePath is the database file used by the SQLite backend.
	SQLitePath string
	// MaxConns caps the Postgres pool size.
	MaxConns int
}

// Opener creates a Connection for one backend.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var openers = map[Driver]Opener{}

// Register makes a backend available to Open. Backends call it from init.
func Register(driver Driver, open Opener) {
	openers[driver] = open
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" || driver == "auto" {
		driver = DetectDriver(cfg.URL)
	}

	open, ok := openers[driver]
	if !ok {
		return nil, fmt.Errorf("database driver %q is not registered", driver)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath returns ~/.amora/amora.db.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".amora", "amora.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
