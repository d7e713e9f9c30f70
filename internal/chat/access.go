// Package chat implements the message-relay core: thread access control,
// the fanout-and-persist relay, and cursor-based history pagination.
package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/store"
)

var (
	ErrThreadNotFound = errors.New("thread does not exist")
	ErrNotAMember     = errors.New("user is not a member of the thread")
)

// Access enforces that only members may touch a thread and owns
// membership mutation.
type Access struct {
	db store.DataStore
}

// NewAccess creates a thread access controller.
func NewAccess(db store.DataStore) *Access {
	return &Access{db: db}
}

// Resolve fetches the thread and verifies the user is a member. The member
// list is the only source of authorization for the thread and its messages.
func (a *Access) Resolve(ctx context.Context, userID, threadID uuid.UUID) (*models.Thread, error) {
	thread, err := a.db.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}
	if !thread.HasMember(userID) {
		return nil, ErrNotAMember
	}
	return thread, nil
}

// AddMember adds a user to the thread. Adding an existing member is a
// no-op that still succeeds.
func (a *Access) AddMember(ctx context.Context, thread *models.Thread, userID uuid.UUID) error {
	if thread.HasMember(userID) {
		return nil
	}
	thread.MemberIDs = append(thread.MemberIDs, userID)
	return a.db.UpdateThreadMembers(ctx, thread.ID, thread.MemberIDs)
}

// RemoveMember removes a user from the thread. Removing an absent member
// is a no-op that still succeeds.
func (a *Access) RemoveMember(ctx context.Context, thread *models.Thread, userID uuid.UUID) error {
	if !thread.HasMember(userID) {
		return nil
	}
	members := thread.MemberIDs[:0]
	for _, id := range thread.MemberIDs {
		if id != userID {
			members = append(members, id)
		}
	}
	thread.MemberIDs = members
	return a.db.UpdateThreadMembers(ctx, thread.ID, thread.MemberIDs)
}
