package socket

import "encoding/json"

// Frame types.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypePush     = "push"
)

// Frame is the wire envelope for every message on a command socket.
// Requests carry a client-chosen id echoed on the response; pushes are
// server-initiated and carry no id.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error codes surfaced to callers as structured command failures.
const (
	CodeNotAuthorized        = "NOT_AUTHORIZED"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeDeviceNotFound       = "DEVICE_NOT_FOUND"
	CodeMissingPublicKey     = "MISSING_PUBLIC_KEY"
	CodeSignatureInvalid     = "SIGNATURE_INVALID"
	CodeChallengeMismatch    = "CHALLENGE_MISMATCH"
	CodeThreadNotFound       = "THREAD_NOT_FOUND"
	CodeNotAMember           = "NOT_A_MEMBER"
	CodeMessageNotFound      = "MESSAGE_NOT_FOUND"
	CodePageSizeExceeded     = "PAGE_SIZE_EXCEEDED"
	CodeBadRequest           = "BAD_REQUEST"
	CodeUsernameTaken        = "USERNAME_TAKEN"
	CodeRegistrationNotFound = "REGISTRATION_NOT_FOUND"
	CodeCodeInvalid          = "CODE_INVALID"
	CodeRateLimited          = "RATE_LIMITED"
	CodeUnknownCommand       = "UNKNOWN_COMMAND"
	CodeInternal             = "INTERNAL"
)

// Error is a structured command failure. Handlers return it to reject a
// request; anything else that goes wrong is masked as CodeInternal so no
// internal detail leaks to the caller.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError creates a structured command failure.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}
