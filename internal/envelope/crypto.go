package envelope

import (
	"fmt"
	"io"
)

// NonceSize is the fixed nonce width at the front of every envelope.
const NonceSize = 12

// Encrypt seals plaintext under key with a freshly generated nonce.
// The returned ciphertext carries the GCM tag at its end.
func Encrypt(plaintext []byte, key *Key) (ciphertext, nonce []byte, err error) {
	if key == nil || key.aead == nil {
		return nil, nil, fmt.Errorf("%w: no key", ErrEncryption)
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(key.rand, nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: read nonce: %v", ErrEncryption, err)
	}

	ciphertext = key.aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt. A wrong key or any modified
// byte is rejected by the tag check.
func Decrypt(ciphertext []byte, key *Key, nonce []byte) ([]byte, error) {
	if key == nil || key.aead == nil {
		return nil, fmt.Errorf("%w: no key", ErrDecryption)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrDecryption, NonceSize)
	}

	plaintext, err := key.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// Pack prefixes the nonce to the ciphertext. The nonce width is fixed so no
// length field is written.
func Pack(nonce, ciphertext []byte) []byte {
	out := make([]byte, 0, len(nonce)+len(ciphertext))
	out = append(out, nonce...)
	return append(out, ciphertext...)
}

// Unpack splits an envelope into its nonce and ciphertext.
func Unpack(envelope []byte) (nonce, ciphertext []byte, err error) {
	if len(envelope) < NonceSize {
		return nil, nil, fmt.Errorf("%w: %d bytes is shorter than the nonce", ErrMalformedEnvelope, len(envelope))
	}
	return envelope[:NonceSize], envelope[NonceSize:], nil
}

// Seal encrypts plaintext and packs the result into a single envelope.
func Seal(plaintext []byte, key *Key) ([]byte, error) {
	ciphertext, nonce, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	return Pack(nonce, ciphertext), nil
}

// Open unpacks and decrypts an envelope produced by Seal.
func Open(envelope []byte, key *Key) ([]byte, error) {
	nonce, ciphertext, err := Unpack(envelope)
	if err != nil {
		return nil, err
	}
	return Decrypt(ciphertext, key, nonce)
}
