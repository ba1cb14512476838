package secrets

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	c, err := NewCipher(strings.Repeat("a", 32))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	for _, plaintext := range []string{"secret123", "", "clave-con-ñ-y-emoji-☀"} {
		enc, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", plaintext, err)
		}
		if enc == plaintext && plaintext != "" {
			t.Errorf("ciphertext equals plaintext for %q", plaintext)
		}
		dec, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if dec != plaintext {
			t.Errorf("roundtrip: got %q, want %q", dec, plaintext)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c, _ := NewCipher(strings.Repeat("a", 32))

	one, _ := c.Encrypt("same input")
	two, _ := c.Encrypt("same input")
	if one == two {
		t.Error("two encryptions of the same plaintext must differ (fresh nonce)")
	}
}

func TestWeakKeyRejected(t *testing.T) {
	for _, key := range []string{"", "short", strings.Repeat("a", 31)} {
		if _, err := NewCipher(key); !errors.Is(err, ErrWeakKey) {
			t.Errorf("NewCipher(%d bytes): expected ErrWeakKey, got %v", len(key), err)
		}
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	c1, _ := NewCipher(strings.Repeat("a", 32))
	c2, _ := NewCipher(strings.Repeat("b", 32))

	enc, err := c1.Encrypt("secret123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := c2.Decrypt(enc); !errors.Is(err, ErrCiphertext) {
		t.Errorf("expected ErrCiphertext under wrong key, got %v", err)
	}
}

func TestDecryptGarbage(t *testing.T) {
	c, _ := NewCipher(strings.Repeat("a", 32))

	for _, blob := range []string{"not base64 at all!", "YWJj", ""} {
		if _, err := c.Decrypt(blob); !errors.Is(err, ErrCiphertext) {
			t.Errorf("Decrypt(%q): expected ErrCiphertext, got %v", blob, err)
		}
	}
}

func TestMask(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "***"},
		{"abc", "***"},
		{"12345678", "***"},
		{"123456789", "1234...6789"},
		{"abcdef1234567890", "abcd...7890"},
	}
	for _, tc := range cases {
		if got := Mask(tc.in); got != tc.want {
			t.Errorf("Mask(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
