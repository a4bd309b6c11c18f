package persistence

import (
	"database/sql"
	"time"
)

// SQLiteTimeLayout is fixed-width UTC so stored timestamps sort lexically.
const SQLiteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatSQLiteTime renders t for a TEXT column.
func FormatSQLiteTime(t time.Time) string {
	return t.UTC().Format(SQLiteTimeLayout)
}

// FormatSQLiteTimePtr renders an optional timestamp, mapping nil to NULL.
func FormatSQLiteTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatSQLiteTime(*t), Valid: true}
}

// ParseSQLiteTime parses a value written by FormatSQLiteTime. RFC 3339 input is also accepted.
func ParseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(SQLiteTimeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC(), err
}

// ParseSQLiteTimePtr parses a nullable timestamp column.
func ParseSQLiteTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := ParseSQLiteTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
