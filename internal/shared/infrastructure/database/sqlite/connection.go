package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/amora-chat/amora/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverSQLite, Open)
}

const pragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Connection wraps a database/sql handle on the modernc driver.
type Connection struct {
	db *sql.DB
}

// Open opens the SQLite file at cfg.SQLitePath, or an in-memory database for ":memory:".
func Open(ctx context.Context, cfg database.Config) (database.Connection, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = database.DefaultSQLitePath()
	}

	dsn := path
	if path != ":memory:" {
		if err := database.EnsureDirectory(path); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite has a single writer; one connection serialises writes and keeps
	// ":memory:" databases from being split across connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &Connection{db: db}, nil
}

// DB returns the underlying handle.
func (c *Connection) DB() *sql.DB {
	return c.db
}

func (c *Connection) Driver() database.Driver {
	return database.DriverSQLite
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Connection) Close() error {
	return c.db.Close()
}
