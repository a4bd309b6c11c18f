package app

import (
	"context"
	"database/sql"
	"fmt"

	billingDomain "github.com/amora-chat/amora/internal/billing/domain"
	billingPersistence "github.com/amora-chat/amora/internal/billing/infrastructure/persistence"
	sharedApplication "github.com/amora-chat/amora/internal/shared/application"
	"github.com/amora-chat/amora/internal/shared/infrastructure/database"
	"github.com/amora-chat/amora/internal/shared/infrastructure/migrations"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/amora-chat/amora/internal/shared/infrastructure/persistence"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// SubscriptionRepository creates a subscription repository for the configured driver.
func (f *RepositoryFactory) SubscriptionRepository() (billingDomain.SubscriptionRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewPostgresSubscriptionRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewSQLiteSubscriptionRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// OrderRepository creates an order repository for the configured driver.
func (f *RepositoryFactory) OrderRepository() (billingDomain.OrderRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewPostgresOrderRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewSQLiteOrderRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// ProfileRepository creates a profile repository for the configured driver.
func (f *RepositoryFactory) ProfileRepository() (billingDomain.ProfileRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewPostgresProfileRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewSQLiteProfileRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// OutboxRepository creates an outbox repository for the configured driver.
func (f *RepositoryFactory) OutboxRepository() (outbox.Repository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return outbox.NewPostgresRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return outbox.NewSQLiteRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// UnitOfWork creates the transaction boundary for the configured driver.
func (f *RepositoryFactory) UnitOfWork() (sharedApplication.UnitOfWork, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return sharedPersistence.NewPostgresUnitOfWork(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return sharedPersistence.NewSQLiteUnitOfWork(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// Migrate applies the embedded schema for the configured driver.
func (f *RepositoryFactory) Migrate(ctx context.Context) ([]string, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return migrations.RunPostgres(ctx, pool)

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return migrations.RunSQLite(ctx, db)

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

func (f *RepositoryFactory) getPostgresPool() (*pgxpool.Pool, error) {
	pgConn, ok := f.conn.(interface{ Pool() *pgxpool.Pool })
	if !ok {
		return nil, fmt.Errorf("postgres connection does not expose Pool()")
	}
	return pgConn.Pool(), nil
}

func (f *RepositoryFactory) getSQLiteDB() (*sql.DB, error) {
	sqliteConn, ok := f.conn.(interface{ DB() *sql.DB })
	if !ok {
		return nil, fmt.Errorf("sqlite connection does not expose DB()")
	}
	return sqliteConn.DB(), nil
}

// Driver returns the database driver type.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}
