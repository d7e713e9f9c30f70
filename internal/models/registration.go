package models

import "time"

// Registration is a staged signup: it exists only between "signUp start" and
// "signUp finish" and is deleted the moment the finish step succeeds. It lives
// in the cache store with a TTL bounding the verification-code entry window.
type Registration struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	DeviceName      string    `json:"device_name"`
	Code            string    `json:"code"`
	UserPublicKey   []byte    `json:"user_public_key"`
	DevicePublicKey []byte    `json:"device_public_key"`
	PasswordHash    []byte    `json:"password_hash"`
	Salt            []byte    `json:"salt"`
	CreatedAt       time.Time `json:"created_at"`
}
