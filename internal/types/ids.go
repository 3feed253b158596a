package types

import (
	"time"

	"github.com/google/uuid"
)

// ProfileID represents a UUIDv7 profile identifier.
// String alias enables type safety while maintaining JSON string
// serialization. UUIDv7 time-ordering ensures sequential IDs cluster in
// B-tree indexes.
type ProfileID string

// NewProfileID generates a UUIDv7 profile identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewProfileID() ProfileID {
	return ProfileID(uuid.Must(uuid.NewV7()).String())
}

// ParseProfileID validates and converts a string to ProfileID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseProfileID(s string) (ProfileID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ProfileID(s), nil
}

// ProfileIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func ProfileIDTime(id ProfileID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
