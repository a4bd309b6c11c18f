package providers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Decode unmarshals a provider payload and checks its validate tags.
// Every failure wraps domain.ErrMalformedEvent.
func Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	return Validate(v)
}

// Validate checks validate tags on an already decoded payload.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	return nil
}

// Malformed reports a payload problem found after decoding.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedEvent, fmt.Sprintf(format, args...))
}

// Ignored reports an event the billing pipeline does not act on.
func Ignored(eventType string) error {
	return fmt.Errorf("%w: %s", domain.ErrEventIgnored, eventType)
}

// FirstUserID returns the first candidate that parses as a UUID, or uuid.Nil.
// Anonymous store ids and other opaque strings are skipped.
func FirstUserID(candidates ...string) uuid.UUID {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if id, err := uuid.Parse(c); err == nil && id != uuid.Nil {
			return id
		}
	}
	return uuid.Nil
}

// UnixSeconds converts a provider timestamp; zero means absent.
func UnixSeconds(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// UnixMillis converts a millisecond timestamp; zero means absent.
func UnixMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
