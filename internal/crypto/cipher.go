// Package crypto provides authenticated encryption for chat message bodies.
// Message content is sealed before it reaches the recent-message cache or the
// database, so neither store ever sees plaintext.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required length of the raw encryption key in bytes.
const KeySize = chacha20poly1305.KeySize

var (
	// ErrFormat is returned when a token is not validly encoded ciphertext.
	ErrFormat = errors.New("ciphertext is not a valid token")

	// ErrIntegrity is returned when a token fails authentication, meaning it
	// was tampered with or encrypted under a different key.
	ErrIntegrity = errors.New("ciphertext failed integrity check")
)

// Cipher seals and opens message bodies with XChaCha20-Poly1305. It is
// stateless and safe for concurrent use.
type Cipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
		Overhead() int
	}
}

// New builds a Cipher from a base64url-encoded 32-byte key. The key is
// validated here once; callers must treat an error as fatal at startup.
func New(encodedKey string) (*Cipher, error) {
	if encodedKey == "" {
		return nil, errors.New("encryption key is not set")
	}
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encodedKey, "="))
	if err != nil {
		return nil, fmt.Errorf("encryption key must be base64url: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must decode to %d bytes (got %d)", KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("build aead: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// GenerateKey returns a fresh random key in the encoding New accepts.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate encryption key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}

// Encrypt seals plaintext into a base64url token. The nonce is generated per
// call and prefixed to the sealed bytes.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. It returns ErrFormat for input
// that is not a well-formed token and ErrIntegrity when authentication fails.
func (c *Cipher) Decrypt(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", fmt.Errorf("%w: token too short", ErrFormat)
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}
