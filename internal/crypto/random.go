// Package crypto provides the primitives the account core depends on:
// CSPRNG byte generation and the salted credential hash.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

// ErrRandomGeneration is returned when random number generation fails.
var ErrRandomGeneration = errors.New("failed to generate random bytes")

// RandomBytes generates n cryptographically secure random bytes.
// It uses crypto/rand which reads from the system's CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		return nil, ErrRandomGeneration
	}
	return b, nil
}

// RandomHex generates n random bytes and returns them hex-encoded
// (2n characters).
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
