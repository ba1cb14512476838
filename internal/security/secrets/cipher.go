package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// MinKeyLength is the minimum accepted encryption key length. A shorter key
// must abort startup: silently substituting a generated key would make every
// previously stored secret unrecoverable after a restart.
const MinKeyLength = 32

var (
	// ErrWeakKey is returned when the configured key is absent or too short.
	ErrWeakKey = errors.New("encryption key missing or shorter than 32 bytes")

	// ErrCiphertext is returned when a stored blob cannot be decrypted,
	// usually meaning it was written under a different key.
	ErrCiphertext = errors.New("malformed or undecryptable ciphertext")
)

// Cipher encrypts and decrypts credential secrets with AES-256-GCM. The key
// is process-wide, loaded once from configuration at startup.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from the configured key. The first 32 bytes of
// the key material are used as the AES-256 key.
func NewCipher(key string) (*Cipher, error) {
	if len(key) < MinKeyLength {
		return nil, ErrWeakKey
	}

	block, err := aes.NewCipher([]byte(key)[:MinKeyLength])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce and returns
// base64(nonce || ciphertext), suitable for a text column.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertext
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrCiphertext
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCiphertext
	}
	return string(plaintext), nil
}

// Mask returns a preview safe to show in listings: the first and last four
// characters of the secret, or a fixed mask when it is too short to split.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
