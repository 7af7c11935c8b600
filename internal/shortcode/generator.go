// Package shortcode generates short codes and resolves them to unique,
// unclaimed values against an existence oracle.
package shortcode

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set used for all generated codes.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// DefaultLength is the default length of generated codes.
	DefaultLength = 6
	// DefaultMaxAttempts is the default number of random candidates tried
	// before falling back to hash-based generation.
	DefaultMaxAttempts = 5
)

// ErrInvalidLength is returned when a non-positive code length is requested.
var ErrInvalidLength = errors.New("code length must be positive")

// Random returns a code of the given length drawn from a cryptographically
// secure random source. Codes must not be predictable: a guessable code
// leaks someone else's shortened URL.
func Random(length int) (string, error) {
	const op = "shortcode.Random"

	if length <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	code, err := gonanoid.Generate(Alphabet, length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate code: %w", op, err)
	}

	return code, nil
}

// Deterministic derives a code from a SHA-256 hash of the seed material
// combined with a random nonce. The nonce keeps repeated calls for the same
// seed from colliding with themselves.
func Deterministic(seed string, length int) (string, error) {
	const op = "shortcode.Deterministic"

	if length <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%s: failed to generate nonce: %w", op, err)
	}

	sum := sha256.Sum256(append([]byte(seed), nonce...))

	code := make([]byte, 0, length)
	block := sum
	for len(code) < length {
		for _, b := range block {
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == length {
				break
			}
		}
		// Lengths beyond one digest are fed from rehashing the previous block.
		block = sha256.Sum256(block[:])
	}

	return string(code), nil
}
