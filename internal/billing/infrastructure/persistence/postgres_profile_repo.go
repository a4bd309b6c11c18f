package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedPersistence "github.com/amora-chat/amora/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProfileRepository implements ProfileRepository with PostgreSQL.
// Every credit mutation is a single conditional statement plus an audit row.
type PostgresProfileRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresProfileRepository creates a new repository.
func NewPostgresProfileRepository(pool *pgxpool.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

func (r *PostgresProfileRepository) AddCredits(ctx context.Context, userID uuid.UUID, delta int64, reason string) (int64, error) {
	if delta <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance int64
	err := sharedPersistence.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO profiles (user_id, credits, is_premium, created_at, updated_at)
			VALUES ($1, $2, FALSE, NOW(), NOW())
			ON CONFLICT (user_id) DO UPDATE
				SET credits = profiles.credits + EXCLUDED.credits, updated_at = NOW()
			RETURNING credits`, userID, delta).Scan(&balance); err != nil {
			return err
		}
		return pgAppendEntry(ctx, tx, userID, delta, balance, reason)
	})
	return balance, err
}

func (r *PostgresProfileRepository) DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance int64
	err := sharedPersistence.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE profiles SET credits = credits - $2, updated_at = NOW()
			WHERE user_id = $1 AND credits >= $2
			RETURNING credits`, userID, amount).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user %s needs %d", domain.ErrInsufficientCredits, userID, amount)
		}
		if err != nil {
			return err
		}
		return pgAppendEntry(ctx, tx, userID, -amount, balance, reason)
	})
	return balance, err
}

func (r *PostgresProfileRepository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT credits FROM profiles WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (r *PostgresProfileRepository) SetEntitlement(ctx context.Context, userID uuid.UUID, isPremium bool) error {
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, `
		INSERT INTO profiles (user_id, credits, is_premium, created_at, updated_at)
		VALUES ($1, 0, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET is_premium = EXCLUDED.is_premium, updated_at = NOW()`,
		userID, isPremium)
	return err
}

func (r *PostgresProfileRepository) RecomputeEntitlement(ctx context.Context, userID uuid.UUID) (bool, error) {
	var premium bool
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO profiles (user_id, credits, is_premium, created_at, updated_at)
		VALUES ($1, 0, EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1 AND status = $2), NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET is_premium = EXCLUDED.is_premium, updated_at = NOW()
		RETURNING is_premium`,
		userID, string(domain.StatusActive)).Scan(&premium)
	return premium, err
}

func (r *PostgresProfileRepository) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	var premium bool
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT is_premium FROM profiles WHERE user_id = $1`, userID).Scan(&premium)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return premium, err
}

func (r *PostgresProfileRepository) CreditHistory(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditEntry, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, user_id, delta, balance_after, reason, created_at
		FROM credit_entries WHERE user_id = $1
		ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CreditEntry
	for rows.Next() {
		var e domain.CreditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.BalanceAfter, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func pgAppendEntry(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta, balance int64, reason string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_entries (user_id, delta, balance_after, reason, created_at)
		VALUES ($1, $2, $3, $4, NOW())`, userID, delta, balance, reason)
	return err
}

var _ domain.ProfileRepository = (*PostgresProfileRepository)(nil)
