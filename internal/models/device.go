package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is a physical client bound to exactly one user. Possession of the
// device's private key, proven by challenge-response, is what authorizes a
// connection as that user.
type Device struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	PublicKey []byte    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
