package shortcode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrCodeSpaceExhausted is returned when no unique code could be found or
// constructed after all attempts. Repeated collisions at this rate indicate a
// near-saturated code space or a broken oracle, so the failure is surfaced
// rather than retried.
var ErrCodeSpaceExhausted = errors.New("could not generate a unique short code")

// ExistenceOracle reports whether a code is already claimed. The answer is a
// latency optimization only: the store's uniqueness constraint remains the
// authority at commit time.
type ExistenceOracle interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Resolver finds codes that the oracle does not know yet.
type Resolver struct {
	oracle      ExistenceOracle
	length      int
	maxAttempts int
}

func NewResolver(oracle ExistenceOracle, length, maxAttempts int) *Resolver {
	if length <= 0 {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Resolver{
		oracle:      oracle,
		length:      length,
		maxAttempts: maxAttempts,
	}
}

// UniqueCode generates random candidates until one is unclaimed or the
// attempt budget runs out, then falls back once to hash-based generation
// seeded with the seed material and the current time. Oracle failures
// propagate unchanged.
func (r *Resolver) UniqueCode(ctx context.Context, seed string) (string, error) {
	const op = "shortcode.Resolver.UniqueCode"

	for i := 0; i < r.maxAttempts; i++ {
		code, err := Random(r.length)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		exists, err := r.oracle.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check code existence: %w", op, err)
		}
		if !exists {
			return code, nil
		}
	}

	code, err := Deterministic(seed+strconv.FormatInt(time.Now().UnixNano(), 10), r.length)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	exists, err := r.oracle.CodeExists(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%s: failed to check code existence: %w", op, err)
	}
	if exists {
		return "", fmt.Errorf("%s: %w", op, ErrCodeSpaceExhausted)
	}

	return code, nil
}
