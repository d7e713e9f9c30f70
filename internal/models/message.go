package models

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Message is one recipient's durable copy of a chat event. A send to a thread
// with k addressed members persists k Message rows, each holding that member's
// own ciphertext; there is no shared record. The server never decrypts Payload.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ThreadID  uuid.UUID `json:"thread_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageProfile is the wire shape of a message, payload hex-encoded.
type MessageProfile struct {
	ID        string `json:"id"`
	ThreadID  string `json:"threadId"`
	SenderID  string `json:"senderId"`
	Payload   string `json:"payload"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Profile converts a Message to its wire shape.
func (m *Message) Profile() MessageProfile {
	return MessageProfile{
		ID:        m.ID.String(),
		ThreadID:  m.ThreadID.String(),
		SenderID:  m.SenderID.String(),
		Payload:   hex.EncodeToString(m.Payload),
		CreatedAt: m.CreatedAt.UnixMilli(),
		UpdatedAt: m.UpdatedAt.UnixMilli(),
	}
}
