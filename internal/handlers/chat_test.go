package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/socket"
)

// member registers a user end-to-end and signs them in on the given
// session, returning their id.
func member(t *testing.T, e *env, sess *fakeSession, email, username string) uuid.UUID {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	deviceID := signUp(t, e, email, priv)
	signIn(t, e, sess, username, deviceID, priv)
	userID, ok := sess.AuthorizedUser()
	require.True(t, ok)
	return userID
}

func createThread(t *testing.T, e *env, sess *fakeSession, members ...uuid.UUID) string {
	t.Helper()
	ids := make([]string, len(members))
	for i, id := range members {
		ids[i] = id.String()
	}
	threadID, err := e.h.ChatThreadCreate(context.Background(), sess, raw(t, threadCreateParams{
		Members: ids,
		Name:    "general",
	}))
	require.NoError(t, err)
	return threadID.(string)
}

func TestChatSendFansOutAndPersists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alicePhone := newFakeSession("alice-phone")
	aliceLaptop := newFakeSession("alice-laptop")
	bobPhone := newFakeSession("bob-phone")

	aliceID := member(t, e, alicePhone, "alice@mtu.edu", "alice")
	bobID := member(t, e, bobPhone, "bob@mtu.edu", "bob")

	// Alice's second device: same account, its own registry entry.
	require.Len(t, e.reg.Get(aliceID), 1)
	e.reg.Add(aliceID, aliceLaptop)

	threadID := createThread(t, e, alicePhone, aliceID, bobID)

	result, err := e.h.ChatSend(ctx, alicePhone, raw(t, chatSendParams{
		ThreadID: threadID,
		Payload: map[string]string{
			bobID.String(): hex.EncodeToString([]byte("for bob")),
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Only Bob was addressed: one record, pushes to his connections only.
	count, err := e.db.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, bobPhone.pushes, 1)
	assert.Empty(t, alicePhone.pushes)
	assert.Empty(t, aliceLaptop.pushes)

	// Addressing both of them pushes to every live connection of each.
	_, err = e.h.ChatSend(ctx, alicePhone, raw(t, chatSendParams{
		ThreadID: threadID,
		Payload: map[string]string{
			aliceID.String(): hex.EncodeToString([]byte("for alice")),
			bobID.String():   hex.EncodeToString([]byte("for bob"))},
	}))
	require.NoError(t, err)
	assert.Len(t, alicePhone.pushes, 1)
	assert.Len(t, aliceLaptop.pushes, 1)
	assert.Len(t, bobPhone.pushes, 2)
}

func TestChatSendRejectsNonMembers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	aliceSess := newFakeSession("alice")
	eveSess := newFakeSession("eve")
	aliceID := member(t, e, aliceSess, "alice@mtu.edu", "alice")
	member(t, e, eveSess, "eve@mtu.edu", "eve")

	threadID := createThread(t, e, aliceSess, aliceID)

	_, err := e.h.ChatSend(ctx, eveSess, raw(t, chatSendParams{
		ThreadID: threadID,
		Payload:  map[string]string{aliceID.String(): "00"},
	}))
	assert.Equal(t, socket.CodeNotAMember, wireCode(t, err))
}

func TestChatSendRejectsBadHexBeforeAnyWrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sess := newFakeSession("alice")
	aliceID := member(t, e, sess, "alice@mtu.edu", "alice")
	threadID := createThread(t, e, sess, aliceID)

	_, err := e.h.ChatSend(ctx, sess, raw(t, chatSendParams{
		ThreadID: threadID,
		Payload:  map[string]string{aliceID.String(): "not hex"},
	}))
	assert.Equal(t, socket.CodeBadRequest, wireCode(t, err))

	count, err := e.db.CountMessages(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChatThreadKeys(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	aliceSess := newFakeSession("alice")
	bobSess := newFakeSession("bob")
	aliceID := member(t, e, aliceSess, "alice@mtu.edu", "alice")
	bobID := member(t, e, bobSess, "bob@mtu.edu", "bob")

	threadID := createThread(t, e, aliceSess, aliceID, bobID)

	result, err := e.h.ChatThreadKeys(ctx, aliceSess, raw(t, threadID))
	require.NoError(t, err)
	keys := result.(map[string]string)
	require.Len(t, keys, 2)

	alice, err := e.db.GetUserByID(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(alice.PublicKey), keys[aliceID.String()])
}

func TestChatThreadLookup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	aliceSess := newFakeSession("alice")
	eveSess := newFakeSession("eve")
	aliceID := member(t, e, aliceSess, "alice@mtu.edu", "alice")
	member(t, e, eveSess, "eve@mtu.edu", "eve")

	threadID := createThread(t, e, aliceSess, aliceID)

	result, err := e.h.ChatThread(ctx, aliceSess, raw(t, threadID))
	require.NoError(t, err)
	profile := result.(models.ThreadProfile)
	assert.Equal(t, "general", profile.Name)

	// An absent thread is null, not an error.
	result, err = e.h.ChatThread(ctx, aliceSess, raw(t, uuid.New().String()))
	require.NoError(t, err)
	assert.Nil(t, result)

	// An existing thread the caller is not in is an error.
	_, err = e.h.ChatThread(ctx, eveSess, raw(t, threadID))
	assert.Equal(t, socket.CodeNotAMember, wireCode(t, err))
}

func TestChatThreadMembershipMutation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	aliceSess := newFakeSession("alice")
	bobSess := newFakeSession("bob")
	aliceID := member(t, e, aliceSess, "alice@mtu.edu", "alice")
	bobID := member(t, e, bobSess, "bob@mtu.edu", "bob")

	threadID := createThread(t, e, aliceSess, aliceID)

	// Adding twice is one membership.
	for i := 0; i < 2; i++ {
		result, err := e.h.ChatThreadMemberAdd(ctx, aliceSess, raw(t, memberParams{
			ThreadID: threadID, UserID: bobID.String(),
		}))
		require.NoError(t, err)
		assert.Equal(t, true, result)
	}
	thread, err := e.db.GetThreadByID(ctx, uuid.MustParse(threadID))
	require.NoError(t, err)
	assert.Len(t, thread.MemberIDs, 2)

	// Bob is now a member and can list the thread.
	result, err := e.h.ChatThreadMy(ctx, bobSess, nil)
	require.NoError(t, err)
	assert.Len(t, result.([]models.ThreadProfile), 1)

	// Removing twice succeeds both times.
	for i := 0; i < 2; i++ {
		result, err := e.h.ChatThreadMemberRemove(ctx, aliceSess, raw(t, memberParams{
			ThreadID: threadID, UserID: bobID.String(),
		}))
		require.NoError(t, err)
		assert.Equal(t, true, result)
	}
	thread, err = e.db.GetThreadByID(ctx, uuid.MustParse(threadID))
	require.NoError(t, err)
	assert.Len(t, thread.MemberIDs, 1)
}

func TestChatHistoryThroughHandler(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sess := newFakeSession("alice")
	aliceID := member(t, e, sess, "alice@mtu.edu", "alice")
	threadID := createThread(t, e, sess, aliceID)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var cursorID uuid.UUID
	for i := 0; i < 6; i++ {
		msg := &models.Message{
			ThreadID:  uuid.MustParse(threadID),
			SenderID:  aliceID,
			Payload:   []byte{byte(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, e.db.CreateMessage(ctx, msg))
		if i == 5 {
			cursorID = msg.ID
		}
	}

	result, err := e.h.ChatHistory(ctx, sess, raw(t, historyParams{
		MessageID: cursorID.String(), RelativeHistory: 3,
	}))
	require.NoError(t, err)
	page := result.([]models.MessageProfile)
	require.Len(t, page, 3)
	assert.Equal(t, "02", page[0].Payload)
	assert.Equal(t, "04", page[2].Payload)

	_, err = e.h.ChatHistory(ctx, sess, raw(t, historyParams{
		MessageID: cursorID.String(), RelativeHistory: 101,
	}))
	assert.Equal(t, socket.CodePageSizeExceeded, wireCode(t, err))

	_, err = e.h.ChatHistory(ctx, sess, raw(t, historyParams{
		MessageID: uuid.New().String(), RelativeHistory: 10,
	}))
	assert.Equal(t, socket.CodeMessageNotFound, wireCode(t, err))
}

func TestUserSearchThroughHandler(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sess := newFakeSession("alice")
	aliceID := member(t, e, sess, "alice@mtu.edu", "alice")

	result, err := e.h.UserSearchUsername(ctx, sess, raw(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, aliceID.String(), result.(models.UserProfile).ID)

	result, err = e.h.UserSearchUsername(ctx, sess, raw(t, "nobody"))
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = e.h.UserSearchID(ctx, sess, raw(t, aliceID.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", result.(models.UserProfile).Username)

	result, err = e.h.UserSearchQuery(ctx, sess, raw(t, "ali"))
	require.NoError(t, err)
	assert.Len(t, result.([]models.UserProfile), 1)
}

func TestUserAvatarRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sess := newFakeSession("alice")
	member(t, e, sess, "alice@mtu.edu", "alice")

	result, err := e.h.UserAvatarGet(ctx, sess, nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	avatar := hex.EncodeToString([]byte("png bytes"))
	_, err = e.h.UserAvatarSet(ctx, sess, raw(t, avatar))
	require.NoError(t, err)

	result, err = e.h.UserAvatarGet(ctx, sess, nil)
	require.NoError(t, err)
	assert.Equal(t, avatar, result)
}
