package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("token secret is not configured")
)

const (
	signatureSize = 16
	maxOwnerIDLen = 128
)

// TokenSigner encapsulates HMAC issuance/validation of owner tokens so handlers stay small.
// A token is base64(expiry || owner id) "." base64(truncated HMAC-SHA256).
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner returns a signer that issues compact HMAC tokens.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a token identifying ownerID.
func (s *TokenSigner) Issue(ownerID string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	if ownerID == "" || len(ownerID) > maxOwnerIDLen {
		return "", fmt.Errorf("owner id must be 1-%d bytes", maxOwnerIDLen)
	}

	payload := make([]byte, 4+len(ownerID))
	expires := uint32(s.now().Add(s.ttl).Unix())
	binary.BigEndian.PutUint32(payload[:4], expires)
	copy(payload[4:], ownerID)

	payloadEnc := base64.RawURLEncoding.EncodeToString(payload)
	sigEnc := base64.RawURLEncoding.EncodeToString(s.sign(payload)[:signatureSize])
	return fmt.Sprintf("%s.%s", payloadEnc, sigEnc), nil
}

// Validate checks signature integrity and TTL of the token and returns the owner id it carries.
func (s *TokenSigner) Validate(token string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(payload) <= 4 {
		return "", ErrInvalidToken
	}

	sigProvided, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(sigProvided) != signatureSize {
		return "", ErrInvalidToken
	}

	if !hmac.Equal(sigProvided, s.sign(payload)[:signatureSize]) {
		return "", ErrInvalidToken
	}

	expires := binary.BigEndian.Uint32(payload[:4])
	if s.now().Unix() > int64(expires) {
		return "", ErrInvalidToken
	}

	return string(payload[4:]), nil
}

func (s *TokenSigner) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte("owner|"))
	mac.Write(payload)
	return mac.Sum(nil)
}
