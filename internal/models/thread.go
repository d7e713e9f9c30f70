package models

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a named conversation. The member list is the sole source of
// read/write authorization for the thread and its messages, and the only
// field mutated after creation.
type Thread struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// HasMember reports whether the given user is in the member list.
func (t *Thread) HasMember(userID uuid.UUID) bool {
	for _, id := range t.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ThreadProfile is the wire shape of a thread.
type ThreadProfile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"memberIds"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

// Profile converts a Thread to its wire shape.
func (t *Thread) Profile() ThreadProfile {
	members := make([]string, len(t.MemberIDs))
	for i, id := range t.MemberIDs {
		members[i] = id.String()
	}
	return ThreadProfile{
		ID:          t.ID.String(),
		Name:        t.Name,
		Description: t.Description,
		MemberIDs:   members,
		CreatedAt:   t.CreatedAt.UnixMilli(),
		UpdatedAt:   t.UpdatedAt.UnixMilli(),
	}
}
