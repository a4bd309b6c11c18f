package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedPersistence "github.com/amora-chat/amora/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// SQLiteOrderRepository implements OrderRepository with SQLite.
type SQLiteOrderRepository struct {
	dbConn *sql.DB
}

// NewSQLiteOrderRepository creates a new repository.
func NewSQLiteOrderRepository(dbConn *sql.DB) *SQLiteOrderRepository {
	return &SQLiteOrderRepository{dbConn: dbConn}
}

func (r *SQLiteOrderRepository) FindByPlatformID(ctx context.Context, platform domain.Platform, platformOrderID string) (*domain.Order, error) {
	row := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE platform = ? AND platform_order_id = ?`,
		string(platform), platformOrderID)
	order, err := scanSQLiteOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return order, err
}

func (r *SQLiteOrderRepository) InsertIfAbsent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.dbConn)
	inserted, err := scanSQLiteOrder(exec.QueryRowContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform, platform_order_id) DO NOTHING
		RETURNING `+orderColumns,
		order.ID.String(), order.UserID.String(), string(order.Platform), order.PlatformOrderID,
		order.PlatformProductID, order.Amount, string(order.Status),
		sharedPersistence.FormatSQLiteTime(order.CreatedAt),
	))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.FindByPlatformID(ctx, order.Platform, order.PlatformOrderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func scanSQLiteOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                     domain.Order
		id, userID, createdAt string
		platform, status      string
	)
	if err := row.Scan(&id, &userID, &platform, &o.PlatformOrderID, &o.PlatformProductID, &o.Amount, &status, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if o.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("order id: %w", err)
	}
	if o.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("order user id: %w", err)
	}
	if o.CreatedAt, err = sharedPersistence.ParseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	o.Platform = domain.Platform(platform)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

var _ domain.OrderRepository = (*SQLiteOrderRepository)(nil)
