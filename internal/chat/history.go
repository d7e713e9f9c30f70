package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/store"
)

// MaxPageSize caps how many messages one history call may request.
const MaxPageSize = 100

var (
	ErrPageSizeExceeded = errors.New("requested page exceeds the maximum size")
	ErrMessageNotFound  = errors.New("cursor message does not exist")
)

// History resolves a cursor message into a bounded page of the messages
// that precede it in the same thread.
type History struct {
	db store.DataStore
}

// NewHistory creates a history paginator.
func NewHistory(db store.DataStore) *History {
	return &History{db: db}
}

// Page returns up to n messages from the cursor's thread whose update
// timestamp is strictly before the cursor's, oldest-first: the n messages
// immediately preceding the cursor.
func (h *History) Page(ctx context.Context, messageID uuid.UUID, n int) ([]models.Message, error) {
	if n > MaxPageSize {
		return nil, ErrPageSizeExceeded
	}
	cursor, err := h.db.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if cursor == nil {
		return nil, ErrMessageNotFound
	}
	thread, err := h.db.GetThreadByID(ctx, cursor.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}
	return h.db.ListThreadMessagesBefore(ctx, thread.ID, cursor.UpdatedAt, n)
}
