// Package envelope provides the AES-GCM primitives used to encrypt reports
// and the nonce-prefixed byte layout they travel in.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Key is an imported symmetric key handle. It is only ever held in memory.
type Key struct {
	aead cipher.AEAD
	rand io.Reader
}

// jwk is the subset of a JSON Web Key needed for an "oct" AES key.
type jwk struct {
	Kty string `json:"kty"`
	K   string `json:"k"`
	Alg string `json:"alg,omitempty"`
}

// ImportKey builds a key from a base64 "k" value. Both the URL-safe alphabet
// used by JWKs and the standard alphabet are accepted, with or without padding.
func ImportKey(base64Key string) (*Key, error) {
	raw, err := decodeKeyMaterial(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyImport, err)
	}
	return newKey(raw)
}

// ImportJWK builds a key from a serialized JSON Web Key of type "oct".
func ImportJWK(data []byte) (*Key, error) {
	var k jwk
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("%w: parse jwk: %v", ErrKeyImport, err)
	}
	if k.Kty != "oct" {
		return nil, fmt.Errorf("%w: unsupported key type %q", ErrKeyImport, k.Kty)
	}
	return ImportKey(k.K)
}

// GenerateKey returns a fresh 256-bit key encoded as a JWK "k" value.
func GenerateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func newKey(raw []byte) (*Key, error) {
	switch len(raw) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: key must be 16, 24 or 32 bytes, got %d", ErrKeyImport, len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyImport, err)
	}

	// NewGCM uses the 12-byte standard nonce the wire format depends on.
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyImport, err)
	}
	return &Key{aead: aead, rand: rand.Reader}, nil
}

func decodeKeyMaterial(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty key")
	}
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}
