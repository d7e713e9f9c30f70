package crypto

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered id for new records. Stores assign these
// at insert, so ids sort in creation order alongside the updated_at
// pagination cursor.
func NewUUIDv7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
