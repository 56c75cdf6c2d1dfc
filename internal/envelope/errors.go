package envelope

import "errors"

// Sentinel errors returned by the encryption engine. Messages never contain
// key material or plaintext.
var (
	// ErrInvalidKey indicates the key is absent, not 32 bytes, or not valid hex.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrMalformedEnvelope indicates the stored envelope cannot be parsed.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrAuthentication indicates the GCM tag did not verify: wrong key or tampered data.
	ErrAuthentication = errors.New("envelope authentication failed")

	// ErrEmptyPlaintext is returned by Encrypt for zero-length input, which
	// cannot be represented with a non-empty ciphertext field.
	ErrEmptyPlaintext = errors.New("plaintext is empty")
)
