package envelope

import "errors"

var (
	// ErrKeyImport indicates the supplied key material could not be turned into a key.
	ErrKeyImport = errors.New("key import failed")
	// ErrEncryption indicates the platform cipher failed to encrypt.
	ErrEncryption = errors.New("encryption failed")
	// ErrDecryption indicates a wrong key or tampered data.
	ErrDecryption = errors.New("decryption failed (wrong key or tampered data)")
	// ErrMalformedEnvelope indicates an envelope too short to hold a nonce.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)
