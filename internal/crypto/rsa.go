package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidPublicKey = errors.New("invalid RSA public key")
	ErrInvalidSignature = errors.New("invalid signature")
)

// ChallengeSize is the byte length of a sign-in challenge nonce.
const ChallengeSize = 32

// NewChallenge generates a fresh random challenge nonce.
func NewChallenge() ([]byte, error) {
	nonce := make([]byte, ChallengeSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// ParsePublicKey parses a hex-encoded DER public key (PKIX or PKCS#1).
func ParsePublicKey(pubkeyHex string) (*rsa.PublicKey, error) {
	der, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex encoding", ErrInvalidPublicKey)
	}
	return ParsePublicKeyDER(der)
}

// ParsePublicKeyDER parses a DER-encoded public key (PKIX or PKCS#1).
func ParsePublicKeyDER(der []byte) (*rsa.PublicKey, error) {
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPublicKey)
		}
		return rsaKey, nil
	}
	rsaKey, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: not PKIX or PKCS#1 DER", ErrInvalidPublicKey)
	}
	return rsaKey, nil
}

// Verify checks a PKCS#1 v1.5 signature and recovers the signed plaintext.
// The signature must have been produced over the raw message (no digest),
// so the message comes back out of the padding verbatim.
func Verify(pub *rsa.PublicKey, signature []byte) ([]byte, error) {
	k := pub.Size()
	if len(signature) != k {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, k, len(signature))
	}

	c := new(big.Int).SetBytes(signature)
	if c.Cmp(pub.N) >= 0 {
		return nil, ErrInvalidSignature
	}

	// m = c^e mod n, then strip EMSA-PKCS1-v1_5 type 1 padding:
	// 0x00 || 0x01 || PS (0xff, at least 8) || 0x00 || M
	m := new(big.Int).Exp(c, big.NewInt(int64(pub.E)), pub.N)
	em := m.FillBytes(make([]byte, k))

	if em[0] != 0x00 || em[1] != 0x01 {
		return nil, ErrInvalidSignature
	}
	i := 2
	for i < k && em[i] == 0xff {
		i++
	}
	if i-2 < 8 || i >= k || em[i] != 0x00 {
		return nil, ErrInvalidSignature
	}
	return em[i+1:], nil
}
