// Package envelope implements the vault's encryption engine: stateless
// AES-256-GCM encryption of secret values into a self-describing,
// colon-delimited hex envelope of the form "nonce:tag:ciphertext".
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the required key length in bytes (AES-256).
	KeySize = 32

	// NonceSize is the per-encryption nonce length in bytes.
	NonceSize = 16

	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16

	separator = ":"
)

// Envelope is the decoded form of a persisted ciphertext string.
type Envelope struct {
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// String encodes the envelope in its wire format: lowercase hex fields joined by colons.
func (e Envelope) String() string {
	return hex.EncodeToString(e.Nonce) + separator +
		hex.EncodeToString(e.Tag) + separator +
		hex.EncodeToString(e.Ciphertext)
}

// Parse decodes a wire-format envelope. It returns ErrMalformedEnvelope unless
// the input has exactly three non-empty lowercase hex fields with a 16-byte
// nonce and a 16-byte tag. Uppercase hex is rejected so that every accepted
// envelope re-encodes to the same string.
func Parse(s string) (Envelope, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 3 {
		return Envelope{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedEnvelope, len(parts))
	}

	fields := make([][]byte, 3)
	for i, part := range parts {
		if part == "" {
			return Envelope{}, fmt.Errorf("%w: field %d is empty", ErrMalformedEnvelope, i)
		}
		if part != strings.ToLower(part) {
			return Envelope{}, fmt.Errorf("%w: field %d is not lowercase hex", ErrMalformedEnvelope, i)
		}
		b, err := hex.DecodeString(part)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: field %d is not hex", ErrMalformedEnvelope, i)
		}
		fields[i] = b
	}

	if len(fields[0]) != NonceSize {
		return Envelope{}, fmt.Errorf("%w: nonce is %d bytes", ErrMalformedEnvelope, len(fields[0]))
	}
	if len(fields[1]) != TagSize {
		return Envelope{}, fmt.Errorf("%w: tag is %d bytes", ErrMalformedEnvelope, len(fields[1]))
	}

	return Envelope{Nonce: fields[0], Tag: fields[1], Ciphertext: fields[2]}, nil
}

// Encrypt seals plaintext under key with AES-256-GCM and returns the envelope
// string. A fresh random nonce is generated on every call.
func Encrypt(plaintext, key []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", ErrEmptyPlaintext
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal produces ciphertext || tag.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return Envelope{
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}.String(), nil
}

// Decrypt opens an envelope produced by Encrypt. Tag verification happens
// before any plaintext is released; on failure ErrAuthentication is returned
// and no bytes are.
func Decrypt(envelope string, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	env, err := Parse(envelope)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := gcm.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
