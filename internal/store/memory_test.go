package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskiesio/api/internal/models"
)

func TestMemoryStoreUserLookups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	user := &models.User{FirstName: "Ada", LastName: "Lovelace", Username: "alovelace"}
	require.NoError(t, s.CreateUser(ctx, user))
	require.NotEqual(t, user.ID.String(), "00000000-0000-0000-0000-000000000000")

	byID, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "alovelace", byID.Username)

	byName, err := s.GetUserByUsername(ctx, "alovelace")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	absent, err := s.GetUserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestMemoryStoreSearchCap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 30; i++ {
		user := &models.User{Username: fmt.Sprintf("husky%02d", i)}
		require.NoError(t, s.CreateUser(ctx, user))
	}

	users, err := s.SearchUsers(ctx, "husky", 20)
	require.NoError(t, err)
	assert.Len(t, users, 20)
	assert.Equal(t, "husky00", users[0].Username)
}

func TestMemoryStorePaginationWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	thread := &models.Thread{Name: "general"}
	require.NoError(t, s.CreateThread(ctx, thread))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		msg := &models.Message{
			ThreadID:  thread.ID,
			Payload:   []byte{byte(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.CreateMessage(ctx, msg))
	}

	// Cursor at t+7: the 3 immediately preceding are t+4, t+5, t+6, ascending.
	page, err := s.ListThreadMessagesBefore(ctx, thread.ID, base.Add(7*time.Second), 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, []byte{4}, page[0].Payload)
	assert.Equal(t, []byte{5}, page[1].Payload)
	assert.Equal(t, []byte{6}, page[2].Payload)
	for i := 1; i < len(page); i++ {
		assert.True(t, page[i-1].UpdatedAt.Before(page[i].UpdatedAt))
	}
}

func TestMemoryCacheRegistrationTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	reg := &models.Registration{ID: "reg-1", Username: "ada", Code: "AB12CD"}
	require.NoError(t, c.PutRegistration(ctx, reg, 50*time.Millisecond))

	got, err := c.GetRegistration(ctx, "reg-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AB12CD", got.Code)

	time.Sleep(60 * time.Millisecond)
	gone, err := c.GetRegistration(ctx, "reg-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryCacheAllow(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	for i := 0; i < 3; i++ {
		ok, err := c.Allow(ctx, "signin:ada", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := c.Allow(ctx, "signin:ada", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEscapeLikeNeutralizesWildcards(t *testing.T) {
	assert.Equal(t, `ada`, escapeLike(`ada`))
	assert.Equal(t, `\%`, escapeLike(`%`))
	assert.Equal(t, `a\_b`, escapeLike(`a_b`))
	assert.Equal(t, `a\\\%b`, escapeLike(`a\%b`))
}
