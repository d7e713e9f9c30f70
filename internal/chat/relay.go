package chat

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/huskiesio/api/internal/metrics"
	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/registry"
	"github.com/huskiesio/api/internal/store"
)

// EventMessageReceived is the push command delivered to each live connection
// of an addressed recipient.
const EventMessageReceived = "chat message received"

// ReceivedEvent is the push payload for EventMessageReceived.
type ReceivedEvent struct {
	ThreadID  string `json:"threadId"`
	SenderID  string `json:"senderId"`
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Relay resolves the recipients of an addressed payload map, pushes each
// recipient's ciphertext to their live connections and persists one durable
// copy per addressed member.
type Relay struct {
	db     store.DataStore
	reg    *registry.Registry
	logger zerolog.Logger
}

// NewRelay creates a message relay.
func NewRelay(db store.DataStore, reg *registry.Registry, logger zerolog.Logger) *Relay {
	return &Relay{db: db, reg: reg, logger: logger}
}

// Send fans one chat event out to the thread. payloads maps member id to that
// member's ciphertext; members without an entry are skipped entirely. For each
// addressed member the push to live connections happens before the durable
// write, and a member with no live connections still gets a persisted copy.
// Returns the number of Message records persisted, which equals the number of
// addressed members.
func (r *Relay) Send(ctx context.Context, senderID uuid.UUID, thread *models.Thread, payloads map[uuid.UUID][]byte) (int, error) {
	persisted := 0
	for _, member := range thread.MemberIDs {
		payload, ok := payloads[member]
		if !ok {
			continue
		}

		event := ReceivedEvent{
			ThreadID:  thread.ID.String(),
			SenderID:  senderID.String(),
			Payload:   hex.EncodeToString(payload),
			Timestamp: time.Now().UnixMilli(),
		}
		for _, conn := range r.reg.Get(member) {
			if err := conn.Push(EventMessageReceived, event); err != nil {
				metrics.PushesSent.WithLabelValues("dropped").Inc()
				r.logger.Warn().Err(err).
					Str("user_id", member.String()).
					Str("connection_id", conn.ID()).
					Msg("dropped push to live connection")
				continue
			}
			metrics.PushesSent.WithLabelValues("delivered").Inc()
		}

		msg := &models.Message{
			ThreadID: thread.ID,
			SenderID: senderID,
			Payload:  payload,
		}
		if err := r.db.CreateMessage(ctx, msg); err != nil {
			return persisted, err
		}
		metrics.MessagesPersisted.Inc()
		persisted++
	}
	return persisted, nil
}
