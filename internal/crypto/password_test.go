package crypto

import (
	"strings"
	"testing"
)

func TestPasswordRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatal(err)
	}
	hash, err := HashPassword("husky-chat-4ever", salt)
	if err != nil {
		t.Fatal(err)
	}

	if !VerifyPassword("husky-chat-4ever", salt, hash) {
		t.Fatal("correct password should verify")
	}
	if VerifyPassword("husky-chat-4ever", salt, hash) {
		t.Fatal("wrong password should not verify")
	}
}

func TestPasswordSaltMatters(t *testing.T) {
	saltA, _ := NewSalt()
	saltB, _ := NewSalt()

	hashA, _ := HashPassword("same password", saltA)
	if VerifyPassword("same password", saltB, hashA) {
		t.Fatal("hash verified against the wrong salt")
	}
}

func TestVerificationCodeFormat(t *testing.T) {
	code, err := NewVerificationCode()
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-character code, got %q", code)
	}
	if code != strings.ToUpper(code) {
		t.Fatalf("expected uppercase code, got %q", code)
	}
}
