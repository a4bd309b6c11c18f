package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteTime_RoundTripAndOrdering(t *testing.T) {
	early := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	late := early.Add(1500 * time.Millisecond)

	a, b := FormatSQLiteTime(early), FormatSQLiteTime(late)
	assert.Less(t, a, b)
	assert.Len(t, a, len(b))

	parsed, err := ParseSQLiteTime(a)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(early))
}

func TestSQLiteTimePtr(t *testing.T) {
	assert.False(t, FormatSQLiteTimePtr(nil).Valid)

	got, err := ParseSQLiteTimePtr(sql.NullString{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseSQLiteTimePtr(sql.NullString{String: "2026-03-01T08:00:00Z", Valid: true})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 8, got.Hour())
}
