package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedPersistence "github.com/amora-chat/amora/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

const sqliteSubscriptionColumns = `
	id, user_id, platform, platform_customer_id, platform_subscription_id, platform_product_id,
	customer_email, customer_name, status, product_type,
	current_period_start, current_period_end, canceled_at, created_at, updated_at`

// SQLiteSubscriptionRepository implements SubscriptionRepository with SQLite.
// SQLite serializes writers, so the read-merge-write in Upsert needs no row lock.
type SQLiteSubscriptionRepository struct {
	dbConn *sql.DB
	now    func() time.Time
}

// NewSQLiteSubscriptionRepository creates a new repository.
func NewSQLiteSubscriptionRepository(dbConn *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{dbConn: dbConn, now: time.Now}
}

func (r *SQLiteSubscriptionRepository) FindByPlatformID(ctx context.Context, platform domain.Platform, platformSubscriptionID string) (*domain.Subscription, error) {
	row := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx,
		`SELECT `+sqliteSubscriptionColumns+` FROM subscriptions WHERE platform = ? AND platform_subscription_id = ?`,
		string(platform), platformSubscriptionID)
	sub, err := scanSQLiteSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (r *SQLiteSubscriptionRepository) Upsert(ctx context.Context, u domain.SubscriptionUpsert) (*domain.UpsertResult, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	var result *domain.UpsertResult
	err := sharedPersistence.InSQLiteTx(ctx, r.dbConn, func(tx *sql.Tx) error {
		now := r.now()

		if u.UserID != uuid.Nil {
			fresh, err := domain.NewSubscription(u, now)
			if err != nil {
				return err
			}
			inserted, err := scanSQLiteSubscription(tx.QueryRowContext(ctx, `
				INSERT INTO subscriptions (`+sqliteSubscriptionColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (platform, platform_subscription_id) DO NOTHING
				RETURNING `+sqliteSubscriptionColumns,
				sqliteSubscriptionArgs(fresh)...))
			if err == nil {
				result = &domain.UpsertResult{Subscription: inserted, IsNew: true}
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		existing, err := scanSQLiteSubscription(tx.QueryRowContext(ctx,
			`SELECT `+sqliteSubscriptionColumns+` FROM subscriptions WHERE platform = ? AND platform_subscription_id = ?`,
			string(u.Platform), u.PlatformSubscriptionID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s subscription %s", domain.ErrUnresolvableCorrelation, u.Platform, u.PlatformSubscriptionID)
		}
		if err != nil {
			return err
		}

		stale := existing.IsStale(u)
		isRenewal := existing.Apply(u, now)
		_, err = tx.ExecContext(ctx, `
			UPDATE subscriptions SET
				platform_customer_id = ?, platform_product_id = ?, customer_email = ?,
				customer_name = ?, status = ?, product_type = ?,
				current_period_start = ?, current_period_end = ?, canceled_at = ?, updated_at = ?
			WHERE id = ?`,
			existing.PlatformCustomerID, existing.PlatformProductID, existing.CustomerEmail,
			sqlNullString(existing.CustomerName), string(existing.Status), sqlNullString(string(existing.ProductType)),
			sharedPersistence.FormatSQLiteTimePtr(existing.CurrentPeriodStart),
			sharedPersistence.FormatSQLiteTimePtr(existing.CurrentPeriodEnd),
			sharedPersistence.FormatSQLiteTimePtr(existing.CanceledAt),
			sharedPersistence.FormatSQLiteTime(existing.UpdatedAt),
			existing.ID.String(),
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

func (r *SQLiteSubscriptionRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryContext(ctx,
		`SELECT `+sqliteSubscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func sqliteSubscriptionArgs(s *domain.Subscription) []any {
	return []any{
		s.ID.String(), s.UserID.String(), string(s.Platform), s.PlatformCustomerID, s.PlatformSubscriptionID, s.PlatformProductID,
		s.CustomerEmail, sqlNullString(s.CustomerName), string(s.Status), sqlNullString(string(s.ProductType)),
		sharedPersistence.FormatSQLiteTimePtr(s.CurrentPeriodStart),
		sharedPersistence.FormatSQLiteTimePtr(s.CurrentPeriodEnd),
		sharedPersistence.FormatSQLiteTimePtr(s.CanceledAt),
		sharedPersistence.FormatSQLiteTime(s.CreatedAt),
		sharedPersistence.FormatSQLiteTime(s.UpdatedAt),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		s                    domain.Subscription
		id, userID           string
		platform, status     string
		customerName         sql.NullString
		productType          sql.NullString
		periodStart          sql.NullString
		periodEnd            sql.NullString
		canceledAt           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&id, &userID, &platform, &s.PlatformCustomerID, &s.PlatformSubscriptionID, &s.PlatformProductID,
		&s.CustomerEmail, &customerName, &status, &productType,
		&periodStart, &periodEnd, &canceledAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("subscription id: %w", err)
	}
	if s.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("subscription user id: %w", err)
	}
	s.Platform = domain.Platform(platform)
	s.Status = domain.SubscriptionStatus(status)
	s.CustomerName = customerName.String
	s.ProductType = domain.ProductType(productType.String)

	if s.CurrentPeriodStart, err = sharedPersistence.ParseSQLiteTimePtr(periodStart); err != nil {
		return nil, err
	}
	if s.CurrentPeriodEnd, err = sharedPersistence.ParseSQLiteTimePtr(periodEnd); err != nil {
		return nil, err
	}
	if s.CanceledAt, err = sharedPersistence.ParseSQLiteTimePtr(canceledAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = sharedPersistence.ParseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = sharedPersistence.ParseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ domain.SubscriptionRepository = (*SQLiteSubscriptionRepository)(nil)
