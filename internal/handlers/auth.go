package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/huskiesio/api/internal/crypto"
	"github.com/huskiesio/api/internal/metrics"
	"github.com/huskiesio/api/internal/models"
	"github.com/huskiesio/api/internal/socket"
)

type signUpStartParams struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	UserPublicKey   string `json:"userPublicKey"`
	DevicePublicKey string `json:"devicePublicKey"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	DeviceName      string `json:"deviceName"`
}

// SignUpStart stages a registration: it derives the username from the campus
// email, hashes the password, issues a verification code and mails it. The
// staged record lives only in the cache, bounded by the code-entry window.
// Returns the registration token the finish step must present.
func (h *Handler) SignUpStart(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	var params signUpStartParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed signUp start payload")
	}

	at := strings.LastIndex(params.Email, "@")
	if at == -1 {
		return nil, socket.NewError(socket.CodeBadRequest, "you must specify a valid email address")
	}
	if params.Email[at+1:] != h.cfg.EmailDomain {
		return nil, socket.NewError(socket.CodeBadRequest, "you must use an @"+h.cfg.EmailDomain+" email address")
	}
	username := params.Email[:at]

	existing, err := h.db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, socket.NewError(socket.CodeUsernameTaken, "a user already exists for this account")
	}

	userKey, err := hex.DecodeString(params.UserPublicKey)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "userPublicKey is not valid hex")
	}
	deviceKey, err := hex.DecodeString(params.DevicePublicKey)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "devicePublicKey is not valid hex")
	}

	code, err := crypto.NewVerificationCode()
	if err != nil {
		return nil, err
	}
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(params.Password, salt)
	if err != nil {
		return nil, err
	}

	reg := &models.Registration{
		ID:              crypto.NewUUIDv7().String(),
		Username:        username,
		Email:           params.Email,
		FirstName:       params.FirstName,
		LastName:        params.LastName,
		DeviceName:      params.DeviceName,
		Code:            code,
		UserPublicKey:   userKey,
		DevicePublicKey: deviceKey,
		PasswordHash:    hash,
		Salt:            salt,
		CreatedAt:       time.Now(),
	}
	if err := h.cache.PutRegistration(ctx, reg, h.cfg.RegistrationTTL); err != nil {
		return nil, err
	}

	if err := h.mailer.SendVerificationCode(ctx, params.Email, params.FirstName, code); err != nil {
		return nil, err
	}
	metrics.RegistrationsStarted.Inc()

	h.logger.Info().Str("username", username).Msg("registration started")
	return reg.ID, nil
}

type signUpFinishParams struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

// SignUpFinish redeems a staged registration: on a matching code it creates
// the user and their first device, then deletes the staged record. Returns
// the new device id, which the client needs for sign-in.
func (h *Handler) SignUpFinish(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	var params signUpFinishParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed signUp finish payload")
	}

	reg, err := h.cache.GetRegistration(ctx, params.Token)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, socket.NewError(socket.CodeRegistrationNotFound, "registration not found; call 'signUp start' first")
	}
	if reg.Code != params.Code {
		return nil, socket.NewError(socket.CodeCodeInvalid, "registration code not valid; try again")
	}

	user := &models.User{
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Username:     reg.Username,
		PasswordHash: reg.PasswordHash,
		Salt:         reg.Salt,
		PublicKey:    reg.UserPublicKey,
	}
	if err := h.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	device := &models.Device{
		UserID:    user.ID,
		Name:      reg.DeviceName,
		PublicKey: reg.DevicePublicKey,
	}
	if err := h.db.CreateDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := h.cache.DeleteRegistration(ctx, reg.ID); err != nil {
		h.logger.Warn().Err(err).Str("registration_id", reg.ID).Msg("failed to delete redeemed registration")
	}
	metrics.UsersRegistered.Inc()

	h.logger.Info().Str("username", user.Username).Str("user_id", user.ID.String()).Msg("user registered")
	return device.ID.String(), nil
}

type signInStartParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

// SignInStart checks the password, binds a fresh nonce to the connection
// and returns it hex-encoded for the device to sign. Username and password
// failures share one error so the response shape leaks nothing.
func (h *Handler) SignInStart(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	var params signInStartParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed signIn start payload")
	}

	allowed, err := h.cache.Allow(ctx, "signin:"+params.Username, h.cfg.SignInLimit, h.cfg.SignInWindow)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, socket.NewError(socket.CodeRateLimited, "too many sign-in attempts; try again later")
	}

	badCredentials := socket.NewError(socket.CodeInvalidCredentials, "incorrect username or password")

	user, err := h.db.GetUserByUsername(ctx, params.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, badCredentials
	}
	if !crypto.VerifyPassword(params.Password, user.Salt, user.PasswordHash) {
		return nil, badCredentials
	}

	deviceID, err := uuid.Parse(params.DeviceID)
	if err != nil {
		return nil, socket.NewError(socket.CodeDeviceNotFound, "device for id does not exist")
	}
	device, err := h.db.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil || device.UserID != user.ID {
		return nil, socket.NewError(socket.CodeDeviceNotFound, "device for id does not exist")
	}

	challenge, err := crypto.NewChallenge()
	if err != nil {
		return nil, err
	}
	sess.SetChallenge(user.ID, device.ID, challenge)

	return hex.EncodeToString(challenge), nil
}

type signInFinishParams struct {
	Signature string `json:"signature"`
}

// SignInFinish verifies the signed nonce against the device's public key.
// On success the session becomes authorized and joins the connection
// registry; the registry entry is removed when the connection closes.
func (h *Handler) SignInFinish(ctx context.Context, sess Session, payload json.RawMessage) (any, error) {
	var params signInFinishParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "malformed signIn finish payload")
	}

	challenge, deviceID, ok := sess.Challenge()
	if !ok {
		return nil, socket.NewError(socket.CodeBadRequest, "no sign-in in progress; call 'signIn start' first")
	}

	device, err := h.db.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, socket.NewError(socket.CodeDeviceNotFound, "device not found")
	}
	if len(device.PublicKey) == 0 {
		return nil, socket.NewError(socket.CodeMissingPublicKey, "public key does not exist for device")
	}

	signature, err := hex.DecodeString(params.Signature)
	if err != nil {
		return nil, socket.NewError(socket.CodeBadRequest, "signature is not valid hex")
	}

	pub, err := crypto.ParsePublicKeyDER(device.PublicKey)
	if err != nil {
		return nil, socket.NewError(socket.CodeMissingPublicKey, "device public key is unusable")
	}
	recovered, err := crypto.Verify(pub, signature)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("failure").Inc()
		return nil, socket.NewError(socket.CodeSignatureInvalid, "failed to verify device signature")
	}
	if !bytes.Equal(recovered, challenge) {
		metrics.SignInsTotal.WithLabelValues("failure").Inc()
		return nil, socket.NewError(socket.CodeChallengeMismatch, "signature does not match the issued challenge")
	}

	sess.Authorize(device.UserID, signature)
	userID := device.UserID
	h.registry.Add(userID, sess)
	sess.OnClose(func() {
		h.registry.Remove(userID, sess)
	})
	metrics.SignInsTotal.WithLabelValues("success").Inc()

	h.logger.Info().
		Str("user_id", userID.String()).
		Str("device_id", device.ID.String()).
		Str("session_id", sess.ID()).
		Msg("session authorized")
	return true, nil
}
