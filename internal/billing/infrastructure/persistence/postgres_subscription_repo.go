package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedPersistence "github.com/amora-chat/amora/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSubscriptionColumns = `
	id, user_id, platform, platform_customer_id, platform_subscription_id, platform_product_id,
	customer_email, customer_name, status, product_type,
	current_period_start, current_period_end, canceled_at, created_at, updated_at`

// PostgresSubscriptionRepository implements SubscriptionRepository with PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool, now: time.Now}
}

// FindByPlatformID returns the subscription with the given provider id, or nil.
func (r *PostgresSubscriptionRepository) FindByPlatformID(ctx context.Context, platform domain.Platform, platformSubscriptionID string) (*domain.Subscription, error) {
	row := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+pgSubscriptionColumns+` FROM subscriptions WHERE platform = $1 AND platform_subscription_id = $2`,
		string(platform), platformSubscriptionID)
	sub, err := scanPgSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// Upsert inserts the subscription or merges the provided fields into the
// stored row. The existing row is locked for the duration of the merge.
func (r *PostgresSubscriptionRepository) Upsert(ctx context.Context, u domain.SubscriptionUpsert) (*domain.UpsertResult, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	var result *domain.UpsertResult
	err := sharedPersistence.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := r.now()

		if u.UserID != uuid.Nil {
			fresh, err := domain.NewSubscription(u, now)
			if err != nil {
				return err
			}
			inserted, err := scanPgSubscription(tx.QueryRow(ctx, `
				INSERT INTO subscriptions (`+pgSubscriptionColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				ON CONFLICT (platform, platform_subscription_id) DO NOTHING
				RETURNING `+pgSubscriptionColumns,
				pgSubscriptionArgs(fresh)...))
			if err == nil {
				result = &domain.UpsertResult{Subscription: inserted, IsNew: true}
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
		}

		existing, err := scanPgSubscription(tx.QueryRow(ctx,
			`SELECT `+pgSubscriptionColumns+` FROM subscriptions
			 WHERE platform = $1 AND platform_subscription_id = $2
			 FOR UPDATE`,
			string(u.Platform), u.PlatformSubscriptionID))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s subscription %s", domain.ErrUnresolvableCorrelation, u.Platform, u.PlatformSubscriptionID)
		}
		if err != nil {
			return err
		}

		stale := existing.IsStale(u)
		isRenewal := existing.Apply(u, now)
		_, err = tx.Exec(ctx, `
			UPDATE subscriptions SET
				platform_customer_id = $2, platform_product_id = $3, customer_email = $4,
				customer_name = $5, status = $6, product_type = $7,
				current_period_start = $8, current_period_end = $9, canceled_at = $10, updated_at = $11
			WHERE id = $1`,
			existing.ID, existing.PlatformCustomerID, existing.PlatformProductID, existing.CustomerEmail,
			nullString(existing.CustomerName), string(existing.Status), nullString(string(existing.ProductType)),
			existing.CurrentPeriodStart, existing.CurrentPeriodEnd, existing.CanceledAt, existing.UpdatedAt,
		)
		if err != nil {
			return err
		}
		result = &domain.UpsertResult{Subscription: existing, IsRenewal: isRenewal, IsStale: stale}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByUserID returns a user's subscriptions, newest first.
func (r *PostgresSubscriptionRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx,
		`SELECT `+pgSubscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanPgSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func pgSubscriptionArgs(s *domain.Subscription) []any {
	return []any{
		s.ID, s.UserID, string(s.Platform), s.PlatformCustomerID, s.PlatformSubscriptionID, s.PlatformProductID,
		s.CustomerEmail, nullString(s.CustomerName), string(s.Status), nullString(string(s.ProductType)),
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CanceledAt, s.CreatedAt, s.UpdatedAt,
	}
}

func scanPgSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		s            domain.Subscription
		platform     string
		status       string
		customerName *string
		productType  *string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &platform, &s.PlatformCustomerID, &s.PlatformSubscriptionID, &s.PlatformProductID,
		&s.CustomerEmail, &customerName, &status, &productType,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Platform = domain.Platform(platform)
	s.Status = domain.SubscriptionStatus(status)
	if customerName != nil {
		s.CustomerName = *customerName
	}
	if productType != nil {
		s.ProductType = domain.ProductType(*productType)
	}
	return &s, nil
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
