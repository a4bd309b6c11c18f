package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sharedPersistence "github.com/amora-chat/amora/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// SQLiteRepository implements Repository on SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	return r.SaveBatch(ctx, []*Message{msg})
}

func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return sharedPersistence.InSQLiteTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, msg := range msgs {
			metadata := sql.NullString{String: string(msg.Metadata), Valid: len(msg.Metadata) > 0}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				msg.EventID.String(), msg.AggregateType, msg.AggregateID.String(), msg.EventType, msg.RoutingKey,
				string(msg.Payload), metadata, sharedPersistence.FormatSQLiteTime(msg.CreatedAt),
			)
			if err != nil {
				return err
			}
			if msg.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata,
		       created_at, retry_count, next_retry_at, last_error
		FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?`, sharedPersistence.FormatSQLiteTime(r.now()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			msg                   Message
			eventID, aggregateID  string
			payload, createdAt    string
			metadata, nextRetryAt sql.NullString
			lastError             sql.NullString
		)
		if err := rows.Scan(&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.EventType, &msg.RoutingKey,
			&payload, &metadata, &createdAt, &msg.RetryCount, &nextRetryAt, &lastError); err != nil {
			return nil, err
		}
		msg.EventID, _ = uuid.Parse(eventID)
		msg.AggregateID, _ = uuid.Parse(aggregateID)
		msg.Payload = json.RawMessage(payload)
		if metadata.Valid {
			msg.Metadata = json.RawMessage(metadata.String)
		}
		msg.CreatedAt, _ = sharedPersistence.ParseSQLiteTime(createdAt)
		msg.NextRetryAt, _ = sharedPersistence.ParseSQLiteTimePtr(nextRetryAt)
		if lastError.Valid {
			msg.LastError = &lastError.String
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := sharedPersistence.SQLiteExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE outbox SET published_at = ?, next_retry_at = NULL WHERE id = ?`,
		sharedPersistence.FormatSQLiteTime(r.now()), id)
	return err
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := sharedPersistence.SQLiteExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?`,
		errMsg, sharedPersistence.FormatSQLiteTime(nextRetryAt), id)
	return err
}

func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := sharedPersistence.SQLiteExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ? WHERE id = ?`,
		sharedPersistence.FormatSQLiteTime(r.now()), reason, id)
	return err
}

func (r *SQLiteRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := r.now().AddDate(0, 0, -olderThanDays)
	res, err := sharedPersistence.SQLiteExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		sharedPersistence.FormatSQLiteTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Repository = (*SQLiteRepository)(nil)
