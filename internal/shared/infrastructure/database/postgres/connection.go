package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amora-chat/amora/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverPostgres, Open)
}

// Connection wraps a pgx pool.
type Connection struct {
	pool *pgxpool.Pool
}

// Open creates a pool from cfg.URL and verifies it answers.
func Open(ctx context.Context, cfg database.Config) (database.Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required for PostgreSQL")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Connection{pool: pool}, nil
}

// Pool returns the underlying pool.
func (c *Connection) Pool() *pgxpool.Pool {
	return c.pool
}

func (c *Connection) Driver() database.Driver {
	return database.DriverPostgres
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}
