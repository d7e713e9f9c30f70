package chat

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/registry"
	"github.com/huskiesio/api/internal/store"
)

type fakeConn struct {
	id     string
	failed bool
	pushes []ReceivedEvent
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Push(command string, payload any) error {
	if c.failed {
		return errors.New("send buffer full")
	}
	if command != EventMessageReceived {
		return errors.New("unexpected command " + command)
	}
	c.pushes = append(c.pushes, payload.(ReceivedEvent))
	return nil
}

func newUser(t *testing.T, db store.DataStore, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func newThread(t *testing.T, db store.DataStore, members ...uuid.UUID) *models.Thread {
	t.Helper()
	thread := &models.Thread{Name: "general", MemberIDs: members}
	require.NoError(t, db.CreateThread(context.Background(), thread))
	return thread
}

func TestRelaySendPersistsOnlyAddressedMembers(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()
	reg := registry.New()

	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")
	carol := newUser(t, db, "carol")
	thread := newThread(t, db, alice.ID, bob.ID, carol.ID)

	aliceConn := &fakeConn{id: "alice-phone"}
	bobConn := &fakeConn{id: "bob-phone"}
	reg.Add(alice.ID, aliceConn)
	reg.Add(bob.ID, bobConn)

	relay := NewRelay(db, reg, zerolog.Nop())
	persisted, err := relay.Send(ctx, alice.ID, thread, map[uuid.UUID][]byte{
		alice.ID: []byte("for alice"),
		carol.ID: []byte("for carol"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, persisted)

	count, err := db.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Bob was not addressed: no push, no record.
	assert.Empty(t, bobConn.pushes)

	require.Len(t, aliceConn.pushes, 1)
	event := aliceConn.pushes[0]
	assert.Equal(t, thread.ID.String(), event.ThreadID)
	assert.Equal(t, alice.ID.String(), event.SenderID)
	assert.Equal(t, hex.EncodeToString([]byte("for alice")), event.Payload)
	assert.NotZero(t, event.Timestamp)
}

func TestRelaySendOfflineRecipientStillPersisted(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()
	reg := registry.New()

	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")
	thread := newThread(t, db, alice.ID, bob.ID)

	relay := NewRelay(db, reg, zerolog.Nop())
	persisted, err := relay.Send(ctx, alice.ID, thread, map[uuid.UUID][]byte{
		bob.ID: []byte("for bob"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, persisted)

	count, err := db.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRelaySendFansOutToEveryConnection(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()
	reg := registry.New()

	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")
	thread := newThread(t, db, alice.ID, bob.ID)

	phone := &fakeConn{id: "bob-phone"}
	laptop := &fakeConn{id: "bob-laptop"}
	reg.Add(bob.ID, phone)
	reg.Add(bob.ID, laptop)

	relay := NewRelay(db, reg, zerolog.Nop())
	persisted, err := relay.Send(ctx, alice.ID, thread, map[uuid.UUID][]byte{
		bob.ID: []byte("for bob"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, persisted)
	assert.Len(t, phone.pushes, 1)
	assert.Len(t, laptop.pushes, 1)
}

func TestRelaySendPushFailureStillPersists(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()
	reg := registry.New()

	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")
	thread := newThread(t, db, alice.ID, bob.ID)

	reg.Add(bob.ID, &fakeConn{id: "bob-phone", failed: true})

	relay := NewRelay(db, reg, zerolog.Nop())
	persisted, err := relay.Send(ctx, alice.ID, thread, map[uuid.UUID][]byte{
		bob.ID: []byte("for bob"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, persisted)

	count, err := db.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRelaySendIgnoresPayloadsForNonMembers(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()
	reg := registry.New()

	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")
	eve := newUser(t, db, "eve")
	thread := newThread(t, db, alice.ID, bob.ID)

	relay := NewRelay(db, reg, zerolog.Nop())
	persisted, err := relay.Send(ctx, alice.ID, thread, map[uuid.UUID][]byte{
		bob.ID: []byte("for bob"),
		eve.ID: []byte("for eve"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, persisted)
}

func TestAccessResolve(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()

	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")
	thread := newThread(t, db, alice.ID)

	access := NewAccess(db)

	resolved, err := access.Resolve(ctx, alice.ID, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, resolved.ID)

	_, err = access.Resolve(ctx, bob.ID, thread.ID)
	assert.ErrorIs(t, err, ErrNotAMember)

	_, err = access.Resolve(ctx, alice.ID, uuid.New())
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestAccessMembershipIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()

	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")
	thread := newThread(t, db, alice.ID)

	access := NewAccess(db)

	require.NoError(t, access.AddMember(ctx, thread, bob.ID))
	require.NoError(t, access.AddMember(ctx, thread, bob.ID))

	stored, err := db.GetThreadByID(ctx, thread.ID)
	require.NoError(t, err)
	assert.Len(t, stored.MemberIDs, 2)

	require.NoError(t, access.RemoveMember(ctx, thread, bob.ID))
	require.NoError(t, access.RemoveMember(ctx, thread, bob.ID))

	stored, err = db.GetThreadByID(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice.ID}, stored.MemberIDs)
}

func TestHistoryPage(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()

	alice := newUser(t, db, "alice")
	thread := newThread(t, db, alice.ID)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var cursor *models.Message
	for i := 0; i < 10; i++ {
		msg := &models.Message{
			ThreadID:  thread.ID,
			SenderID:  alice.ID,
			Payload:   []byte{byte(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.CreateMessage(ctx, msg))
		if i == 7 {
			cursor = msg
		}
	}

	history := NewHistory(db)

	page, err := history.Page(ctx, cursor.ID, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	// The three messages immediately preceding the cursor, oldest-first.
	assert.Equal(t, []byte{4}, page[0].Payload)
	assert.Equal(t, []byte{5}, page[1].Payload)
	assert.Equal(t, []byte{6}, page[2].Payload)

	// Asking past the beginning returns what exists.
	page, err = history.Page(ctx, cursor.ID, 100)
	require.NoError(t, err)
	assert.Len(t, page, 7)
}

func TestHistoryPageErrors(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()

	alice := newUser(t, db, "alice")
	thread := newThread(t, db, alice.ID)

	msg := &models.Message{ThreadID: thread.ID, SenderID: alice.ID, Payload: []byte("hi")}
	require.NoError(t, db.CreateMessage(ctx, msg))

	history := NewHistory(db)

	_, err := history.Page(ctx, msg.ID, MaxPageSize+1)
	assert.ErrorIs(t, err, ErrPageSizeExceeded)

	_, err = history.Page(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	orphan := &models.Message{ThreadID: uuid.New(), SenderID: alice.ID, Payload: []byte("hi")}
	require.NoError(t, db.CreateMessage(ctx, orphan))
	_, err = history.Page(ctx, orphan.ID, 10)
	assert.ErrorIs(t, err, ErrThreadNotFound)
}
