package persistence

import (
	"context"
	"errors"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedPersistence "github.com/amora-chat/amora/internal/shared/infrastructure/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id, user_id, platform, platform_order_id, platform_product_id, amount, status, created_at`

// PostgresOrderRepository implements OrderRepository with PostgreSQL.
type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderRepository creates a new repository.
func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

func (r *PostgresOrderRepository) FindByPlatformID(ctx context.Context, platform domain.Platform, platformOrderID string) (*domain.Order, error) {
	row := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE platform = $1 AND platform_order_id = $2`,
		string(platform), platformOrderID)
	order, err := scanPgOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return order, err
}

// InsertIfAbsent relies on the (platform, platform_order_id) unique constraint,
// so concurrent duplicates resolve to exactly one inserted row.
func (r *PostgresOrderRepository) InsertIfAbsent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	inserted, err := scanPgOrder(exec.QueryRow(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (platform, platform_order_id) DO NOTHING
		RETURNING `+orderColumns,
		order.ID, order.UserID, string(order.Platform), order.PlatformOrderID, order.PlatformProductID,
		order.Amount, string(order.Status), order.CreatedAt,
	))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.FindByPlatformID(ctx, order.Platform, order.PlatformOrderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func scanPgOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o        domain.Order
		platform string
		status   string
	)
	if err := row.Scan(&o.ID, &o.UserID, &platform, &o.PlatformOrderID, &o.PlatformProductID, &o.Amount, &status, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Platform = domain.Platform(platform)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

var _ domain.OrderRepository = (*PostgresOrderRepository)(nil)
