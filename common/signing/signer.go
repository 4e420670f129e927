// Package signing produces and checks HMAC-SHA256 tags over opaque payloads.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrBadSignature is returned when a sealed value fails verification.
var ErrBadSignature = errors.New("signature mismatch")

type Signer struct {
	secretKey []byte
}

func NewSigner(secretKey []byte) *Signer {
	key := make([]byte, len(secretKey))
	copy(key, secretKey)
	return &Signer{secretKey: key}
}

// Sign returns the raw HMAC-SHA256 of data.
func (s *Signer) Sign(data []byte) []byte {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write(data)
	return h.Sum(nil)
}

// Verify reports whether signature is the tag of data.
func (s *Signer) Verify(data, signature []byte) bool {
	return hmac.Equal(s.Sign(data), signature)
}

// Seal encodes payload as "base64url(payload).base64url(tag)".
func (s *Signer) Seal(payload []byte) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(s.Sign(payload))
}

// Open reverses Seal, returning ErrBadSignature for anything it did not produce.
func (s *Signer) Open(sealed string) ([]byte, error) {
	body, tag, ok := strings.Cut(sealed, ".")
	if !ok || body == "" || tag == "" {
		return nil, ErrBadSignature
	}
	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(body)
	if err != nil {
		return nil, ErrBadSignature
	}
	sig, err := enc.DecodeString(tag)
	if err != nil {
		return nil, ErrBadSignature
	}
	if !s.Verify(payload, sig) {
		return nil, ErrBadSignature
	}
	return payload, nil
}
