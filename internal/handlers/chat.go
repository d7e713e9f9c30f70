package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/socket"
)

// ChatThreadKeys returns each thread member's long-term public key,
// hex-encoded and keyed by member id, so the sender can encrypt one payload
// per recipient.
func (h *Handler) ChatThreadKeys(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	var threadID string
	if err := json.Unmarshal(payload, &threadID); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "payload must be a thread id string")
	}
	_, thread, err := h.memberThread(ctx, sess, threadID)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string, len(thread.MemberIDs))
	for _, memberID := range thread.MemberIDs {
		member, err := h.db.GetUserByID(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if member == nil || len(member.PublicKey) == 0 {
			continue
		}
		keys[member.ID.String()] = hex.EncodeToString(member.PublicKey)
	}
	return keys, nil
}

type chatSendParams struct {
	ThreadID string            `json:"threadId"`
	Payload  map[string]string `json:"payload"`
}

// ChatSend relays one chat event to the thread. The payload maps member id
// to that member's ciphertext, hex-encoded; every value is validated before
// any push or write happens.
func (h *Handler) ChatSend(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	var params chatSendParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed chat send payload")
	}
	userID, thread, err := h.memberThread(ctx, sess, params.ThreadID)
	if err != nil {
		return nil, err
	}

	payloads := make(map[uuid.UUID][]byte, len(params.Payload))
	for rawID, encoded := range params.Payload {
		memberID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, socket.NewError(socket.CodeBadRequest, "payload key is not a valid member id")
		}
		data, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, socket.NewError(socket.CodeBadRequest, "payload for member is not valid hex")
		}
		payloads[memberID] = data
	}

	if _, err := h.relay.Send(ctx, userID, thread, payloads); err != nil {
		return nil, err
	}
	return true, nil
}

type threadCreateParams struct {
	Members     []string `json:"members"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
}

// ChatThreadCreate creates a thread with exactly the supplied member list.
// The creator is not added implicitly; callers that want membership include
// themselves.
func (h *Handler) ChatThreadCreate(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	if _, err := h.guard(sess); err != nil {
		return nil, err
	}
	var params threadCreateParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed thread create payload")
	}

	memberIDs := make([]uuid.UUID, 0, len(params.Members))
	for _, raw := range params.Members {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, socket.NewError(socket.CodeBadRequest, "member list contains an invalid id")
		}
		memberIDs = append(memberIDs, id)
	}

	thread := &models.Thread{
		Name:        params.Name,
		Description: params.Description,
		MemberIDs:   memberIDs,
	}
	if err := h.db.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread.ID.String(), nil
}

// ChatThread returns the thread's profile. An absent thread returns null;
// an existing thread the caller is not in fails.
func (h *Handler) ChatThread(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	userID, err := h.guard(sess)
	if err != nil {
		return nil, err
	}
	var raw string
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "payload must be a thread id string")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "payload is not a valid id")
	}

	thread, err := h.db.GetThreadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, nil
	}
	if !thread.HasMember(userID) {
		return nil, socket.NewError(socket.CodeNotAMember, "you do not belong to this thread")
	}
	return thread.Profile(), nil
}

type memberParams struct {
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`
}

// ChatThreadMemberAdd adds a user to the thread. Adding an existing member
// succeeds without change.
func (h *Handler) ChatThreadMemberAdd(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	var params memberParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed member add payload")
	}
	_, thread, err := h.memberThread(ctx, sess, params.ThreadID)
	if err != nil {
		return nil, err
	}
	memberID, err := uuid.Parse(params.UserID)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "userId is not a valid id")
	}
	if err := h.access.AddMember(ctx, thread, memberID); err != nil {
		return nil, err
	}
	return true, nil
}

// ChatThreadMemberRemove removes a user from the thread. Removing an absent
// member succeeds without change.
func (h *Handler) ChatThreadMemberRemove(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	var params memberParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed member remove payload")
	}
	_, thread, err := h.memberThread(ctx, sess, params.ThreadID)
	if err != nil {
		return nil, err
	}
	memberID, err := uuid.Parse(params.UserID)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "userId is not a valid id")
	}
	if err := h.access.RemoveMember(ctx, thread, memberID); err != nil {
		return nil, err
	}
	return true, nil
}

// ChatThreadMy lists every thread the caller is a member of.
func (h *Handler) ChatThreadMy(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	userID, err := h.guard(sess)
	if err != nil {
		return nil, err
	}
	threads, err := h.db.GetThreadsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	profiles := make([]models.ThreadProfile, len(threads))
	for i := range threads {
		profiles[i] = threads[i].Profile()
	}
	return profiles, nil
}

type historyParams struct {
	MessageID       string `json:"messageId"`
	RelativeHistory int    `json:"relativeHistory"`
}

// ChatHistory pages backwards from a cursor message: up to relativeHistory
// messages immediately preceding it in the same thread, oldest-first.
func (h *Handler) ChatHistory(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	if _, err := h.guard(sess); err != nil {
		return nil, err
	}
	var params historyParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed history payload")
	}
	messageID, err := uuid.Parse(params.MessageID)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "messageId is not a valid id")
	}

	page, err := h.history.Page(ctx, messageID, params.RelativeHistory)
	if err != nil {
		return nil, wireError(err)
	}
	profiles := make([]models.MessageProfile, len(page))
	for i := range page {
		profiles[i] = page[i].Profile()
	}
	return profiles, nil
}
