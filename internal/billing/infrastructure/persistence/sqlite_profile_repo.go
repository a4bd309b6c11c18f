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

// SQLiteProfileRepository implements ProfileRepository with SQLite.
type SQLiteProfileRepository struct {
	dbConn *sql.DB
	now    func() time.Time
}

// NewSQLiteProfileRepository creates a new repository.
func NewSQLiteProfileRepository(dbConn *sql.DB) *SQLiteProfileRepository {
	return &SQLiteProfileRepository{dbConn: dbConn, now: time.Now}
}

func (r *SQLiteProfileRepository) AddCredits(ctx context.Context, userID uuid.UUID, delta int64, reason string) (int64, error) {
	if delta <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance int64
	err := sharedPersistence.InSQLiteTx(ctx, r.dbConn, func(tx *sql.Tx) error {
		now := sharedPersistence.FormatSQLiteTime(r.now())
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO profiles (user_id, credits, is_premium, created_at, updated_at)
			VALUES (?, ?, 0, ?, ?)
			ON CONFLICT (user_id) DO UPDATE
				SET credits = profiles.credits + excluded.credits, updated_at = excluded.updated_at
			RETURNING credits`, userID.String(), delta, now, now).Scan(&balance); err != nil {
			return err
		}
		return sqliteAppendEntry(ctx, tx, userID, delta, balance, reason, now)
	})
	return balance, err
}

func (r *SQLiteProfileRepository) DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance int64
	err := sharedPersistence.InSQLiteTx(ctx, r.dbConn, func(tx *sql.Tx) error {
		now := sharedPersistence.FormatSQLiteTime(r.now())
		err := tx.QueryRowContext(ctx, `
			UPDATE profiles SET credits = credits - ?, updated_at = ?
			WHERE user_id = ? AND credits >= ?
			RETURNING credits`, amount, now, userID.String(), amount).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %s needs %d", domain.ErrInsufficientCredits, userID, amount)
		}
		if err != nil {
			return err
		}
		return sqliteAppendEntry(ctx, tx, userID, -amount, balance, reason, now)
	})
	return balance, err
}

func (r *SQLiteProfileRepository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx,
		`SELECT credits FROM profiles WHERE user_id = ?`, userID.String()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (r *SQLiteProfileRepository) SetEntitlement(ctx context.Context, userID uuid.UUID, isPremium bool) error {
	now := sharedPersistence.FormatSQLiteTime(r.now())
	_, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).ExecContext(ctx, `
		INSERT INTO profiles (user_id, credits, is_premium, created_at, updated_at)
		VALUES (?, 0, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET is_premium = excluded.is_premium, updated_at = excluded.updated_at`,
		userID.String(), isPremium, now, now)
	return err
}

func (r *SQLiteProfileRepository) RecomputeEntitlement(ctx context.Context, userID uuid.UUID) (bool, error) {
	now := sharedPersistence.FormatSQLiteTime(r.now())
	var premium bool
	err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx, `
		INSERT INTO profiles (user_id, credits, is_premium, created_at, updated_at)
		VALUES (?1, 0, EXISTS (SELECT 1 FROM subscriptions WHERE user_id = ?1 AND status = ?2), ?3, ?3)
		ON CONFLICT (user_id) DO UPDATE SET is_premium = excluded.is_premium, updated_at = excluded.updated_at
		RETURNING is_premium`,
		userID.String(), string(domain.StatusActive), now).Scan(&premium)
	return premium, err
}

func (r *SQLiteProfileRepository) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	var premium bool
	err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx,
		`SELECT is_premium FROM profiles WHERE user_id = ?`, userID.String()).Scan(&premium)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return premium, err
}

func (r *SQLiteProfileRepository) CreditHistory(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditEntry, error) {
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryContext(ctx, `
		SELECT id, delta, balance_after, reason, created_at
		FROM credit_entries WHERE user_id = ?
		ORDER BY id DESC LIMIT ?`, userID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CreditEntry
	for rows.Next() {
		e := domain.CreditEntry{UserID: userID}
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Delta, &e.BalanceAfter, &e.Reason, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = sharedPersistence.ParseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func sqliteAppendEntry(ctx context.Context, tx *sql.Tx, userID uuid.UUID, delta, balance int64, reason, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_entries (user_id, delta, balance_after, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`, userID.String(), delta, balance, reason, now)
	return err
}

var _ domain.ProfileRepository = (*SQLiteProfileRepository)(nil)
