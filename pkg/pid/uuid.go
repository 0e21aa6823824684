package pid

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// UUID is the persistent identifier of a Pid.
//
// UUIDs are stored in:
//   - Database: pids.id (primary key)
//   - DynamoDB: the "pid#<uuid>" item key
//   - Events: the Kafka record key, so events for one identifier stay ordered
type UUID struct {
	value uuid.UUID
}

// NewUUID generates a new random UUID (v4).
func NewUUID() UUID {
	return UUID{value: uuid.New()}
}

// MustParseUUID parses a UUID from string, panicking on error.
// This is useful for test fixtures and constants where the UUID is known valid.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("invalid UUID: %s: %v", s, err))
	}
	return u
}

// ParseUUID parses a UUID from string (e.g., "550e8400-e29b-41d4-a716-446655440000").
// Accepts standard UUID formats (with or without hyphens).
func ParseUUID(s string) (UUID, error) {
	if s == "" {
		return UUID{}, fmt.Errorf("UUID cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("invalid UUID format: %w", err)
	}
	return UUID{value: u}, nil
}

// String returns the canonical UUID string in lowercase with hyphens.
func (u UUID) String() string {
	return u.value.String()
}

// IsZero returns true if this is the zero/nil UUID.
func (u UUID) IsZero() bool {
	return u.value == uuid.Nil
}

// Equal returns true if two UUIDs are equal.
func (u UUID) Equal(other UUID) bool {
	return u.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (u UUID) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(u.String())
}

// UnmarshalJSON implements json.Unmarshaler. Empty strings and null decode to
// the zero UUID.
func (u *UUID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*u = UUID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("UUID must be a string: %w", err)
	}
	if s == "" {
		*u = UUID{}
		return nil
	}
	parsed, err := ParseUUID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Scan implements sql.Scanner for database reading.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = UUID{}
		return nil
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			*u = UUID{}
			return nil
		}
		parsed, err := ParseUUID(v)
		if err != nil {
			return fmt.Errorf("cannot scan string into UUID: %w", err)
		}
		*u = parsed
		return nil
	case []byte:
		if len(v) == 0 {
			*u = UUID{}
			return nil
		}
		// PostgreSQL binary protocol hands over the raw 16 bytes.
		if len(v) == 16 {
			parsed, err := uuid.FromBytes(v)
			if err != nil {
				return fmt.Errorf("cannot scan bytes into UUID: %w", err)
			}
			*u = UUID{value: parsed}
			return nil
		}
		parsed, err := ParseUUID(string(v))
		if err != nil {
			return fmt.Errorf("cannot scan bytes into UUID: %w", err)
		}
		*u = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
}

// Value implements driver.Valuer for database writing.
// Returns nil for zero UUID, string for valid UUID.
func (u UUID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.String(), nil
}
