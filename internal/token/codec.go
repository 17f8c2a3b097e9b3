// Package token implements the stateless acknowledgment token scheme.
// A token is the participant's assignment context, encrypted and
// authenticated, so a confirmation page can be rendered from the token
// alone with no server-side lookup.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ngenest/SecretSanta/internal/models"
)

// ErrInvalidToken covers every decode failure: truncated input, bad
// encoding, failed authentication, unparseable payload. Collapsing
// them keeps the caller from leaking which check failed.
var ErrInvalidToken = errors.New("token is not valid")

// Codec encrypts and decrypts acknowledgment tokens with AES-256-GCM.
// The key is derived once from the configured secret; tokens are
// base64url(nonce || ciphertext+tag).
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a fixed-length key from secret and builds the AEAD.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode seals the payload into an opaque URL-safe token.
func (c *Codec) Encode(payload models.TokenPayload) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate token nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a token produced by Encode. Any tampering, truncation
// or garbage input fails with ErrInvalidToken.
func (c *Codec) Decode(tok string) (models.TokenPayload, error) {
	var payload models.TokenPayload

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return payload, ErrInvalidToken
	}
	if len(raw) < c.aead.NonceSize() {
		return payload, ErrInvalidToken
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return payload, ErrInvalidToken
	}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return payload, ErrInvalidToken
	}
	return payload, nil
}
