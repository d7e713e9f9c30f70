// Package handlers implements the command surface of the chat server:
// registration, challenge-response sign-in, user lookups and the thread
// operations built on the relay.
package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/huskiesio/api/internal/avatars"
	"github.com/huskiesio/api/internal/chat"
	"github.com/huskiesio/api/internal/config"
	"github.com/huskiesio/api/internal/mailer"
	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/registry"
	"github.com/huskiesio/api/internal/socket"
	"github.com/huskiesio/api/internal/store"
)

// Session is the per-connection state the handlers read and write. The
// socket package's sessions implement it; tests use fakes.
type Session interface {
	ID() string
	SetChallenge(userID, deviceID uuid.UUID, challenge []byte)
	Challenge() (challenge []byte, deviceID uuid.UUID, ok bool)
	Authorize(userID uuid.UUID, signature []byte)
	AuthorizedUser() (uuid.UUID, bool)
	OnClose(fn func())
	Push(command string, payload any) error
}

// Handler holds every dependency the command handlers share.
type Handler struct {
	db       store.DataStore
	cache    store.CacheStore
	registry *registry.Registry
	relay    *chat.Relay
	access   *chat.Access
	history  *chat.History
	mailer   mailer.Mailer
	avatars  avatars.Store
	cfg      *config.Config
	logger   zerolog.Logger
}

// New wires a handler set against its stores and services.
func New(db store.DataStore, cache store.CacheStore, reg *registry.Registry, m mailer.Mailer, av avatars.Store, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		db:       db,
		cache:    cache,
		registry: reg,
		relay:    chat.NewRelay(db, reg, logger),
		access:   chat.NewAccess(db),
		history:  chat.NewHistory(db),
		mailer:   m,
		avatars:  av,
		cfg:      cfg,
		logger:   logger,
	}
}

// Register wires every command onto the mux.
func Register(mux *socket.Mux, h *Handler) {
	wrap := func(fn func(context.Context, Session, json.RawMessage) (any, error)) socket.HandlerFunc {
		return func(ctx context.Context, sess *socket.Session, payload json.RawMessage) (any, error) {
			return fn(ctx, sess, payload)
		}
	}

	mux.Handle("signUp start", wrap(h.SignUpStart))
	mux.Handle("signUp finish", wrap(h.SignUpFinish))
	mux.Handle("signIn start", wrap(h.SignInStart))
	mux.Handle("signIn finish", wrap(h.SignInFinish))

	mux.Handle("user me", wrap(h.UserMe))
	mux.Handle("user me avatar get", wrap(h.UserAvatarGet))
	mux.Handle("user me avatar set", wrap(h.UserAvatarSet))
	mux.Handle("user search username", wrap(h.UserSearchUsername))
	mux.Handle("user search id", wrap(h.UserSearchID))
	mux.Handle("user search query", wrap(h.UserSearchQuery))

	mux.Handle("chat thread keys", wrap(h.ChatThreadKeys))
	mux.Handle("chat send", wrap(h.ChatSend))
	mux.Handle("chat thread create", wrap(h.ChatThreadCreate))
	mux.Handle("chat thread", wrap(h.ChatThread))
	mux.Handle("chat thread member add", wrap(h.ChatThreadMemberAdd))
	mux.Handle("chat thread member remove", wrap(h.ChatThreadMemberRemove))
	mux.Handle("chat thread my", wrap(h.ChatThreadMy))
	mux.Handle("chat history", wrap(h.ChatHistory))
}

// guard is the single authorization checkpoint: every command past the
// sign-up and sign-in pair goes through it.
func (h *Handler) guard(sess Session) (uuid.UUID, error) {
	userID, ok := sess.AuthorizedUser()
	if !ok {
		return uuid.Nil, socket.NewError(socket.CodeNotAuthorized, "you must sign in first")
	}
	return userID, nil
}

// currentUser guards the session and loads the authorized user's record.
func (h *Handler) currentUser(ctx context.Context, sess Session) (*models.User, error) {
	userID, err := h.guard(sess)
	if err != nil {
		return nil, err
	}
	user, err := h.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, socket.NewError(socket.CodeNotAuthorized, "signed-in user no longer exists")
	}
	return user, nil
}

// memberThread guards the session and resolves the thread, requiring the
// caller to be a member.
func (h *Handler) memberThread(ctx context.Context, sess Session, threadID string) (uuid.UUID, *models.Thread, error) {
	userID, err := h.guard(sess)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id, err := uuid.Parse(threadID)
	if err != nil {
		return uuid.Nil, nil, socket.NewError(socket.CodeBadRequest, "threadId is not a valid id")
	}
	thread, err := h.access.Resolve(ctx, userID, id)
	if err != nil {
		return uuid.Nil, nil, wireError(err)
	}
	return userID, thread, nil
}

// wireError maps the chat package's sentinel errors onto structured command
// failures; anything unrecognized passes through to be masked as internal.
func wireError(err error) error {
	switch {
	case errors.Is(err, chat.ErrThreadNotFound):
		return socket.NewError(socket.CodeThreadNotFound, "thread does not exist")
	case errors.Is(err, chat.ErrNotAMember):
		return socket.NewError(socket.CodeNotAMember, "you do not belong to this thread")
	case errors.Is(err, chat.ErrMessageNotFound):
		return socket.NewError(socket.CodeMessageNotFound, "message does not exist")
	case errors.Is(err, chat.ErrPageSizeExceeded):
		return socket.NewError(socket.CodePageSizeExceeded, "you can only fetch 100 messages at a time")
	}
	return err
}
