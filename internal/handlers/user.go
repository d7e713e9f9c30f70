package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/socket"
)

const searchLimit = 20

// UserMe returns the authorized user's own profile.
func (h *Handler) UserMe(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	user, err := h.currentUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

// UserAvatarGet returns the caller's avatar hex-encoded, or null when none
// has been set.
func (h *Handler) UserAvatarGet(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	user, err := h.currentUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	data, err := h.avatars.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return hex.EncodeToString(data), nil
}

// UserAvatarSet replaces the caller's avatar. The payload is the image
// hex-encoded.
func (h *Handler) UserAvatarSet(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	user, err := h.currentUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	var encoded string
	if err := json.Unmarshal(payload, &encoded); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "avatar payload must be a hex string")
	}
	data, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "avatar payload is not valid hex")
	}
	if err := h.avatars.Put(ctx, user.ID, data); err != nil {
		return nil, err
	}
	return true, nil
}

// UserSearchUsername looks one user up by exact username. An unknown
// username returns null, not an error.
func (h *Handler) UserSearchUsername(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	if _, err := h.guard(sess); err != nil {
		return nil, err
	}
	var username string
	if err := json.Unmarshal(payload, &username); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "payload must be a username string")
	}
	user, err := h.db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user.Profile(), nil
}

// UserSearchID looks one user up by id. An unknown id returns null.
func (h *Handler) UserSearchID(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	if _, err := h.guard(sess); err != nil {
		return nil, err
	}
	var raw string
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "payload must be a user id string")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "payload is not a valid id")
	}
	user, err := h.db.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user.Profile(), nil
}

// UserSearchQuery returns up to twenty users whose username matches the
// query.
func (h *Handler) UserSearchQuery(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	if _, err := h.guard(sess); err != nil {
		return nil, err
	}
	var query string
	if err := json.Unmarshal(payload, &query); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "payload must be a query string")
	}
	users, err := h.db.SearchUsers(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	profiles := make([]models.UserProfile, len(users))
	for i := range users {
		profiles[i] = users[i].Profile()
	}
	return profiles, nil
}
