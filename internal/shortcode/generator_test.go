package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandom(t *testing.T) {
	t.Run("invalid length", func(t *testing.T) {
		for _, length := range []int{0, -1, -100} {
			code, err := Random(length)

			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLength)
			assert.Empty(t, code)
		}
	})

	t.Run("code matches alphabet and length", func(t *testing.T) {
		for _, length := range []int{1, 6, 21, 64} {
			code, err := Random(length)

			assert.NoError(t, err)
			assert.Len(t, code, length)

			for _, c := range code {
				assert.True(t, strings.ContainsRune(Alphabet, c), "unexpected character %q", c)
			}
		}
	})

	t.Run("codes differ across calls", func(t *testing.T) {
		seen := make(map[string]struct{})

		for i := 0; i < 100; i++ {
			code, err := Random(DefaultLength)

			assert.NoError(t, err)
			seen[code] = struct{}{}
		}

		assert.Len(t, seen, 100)
	})
}

func TestDeterministic(t *testing.T) {
	t.Run("invalid length", func(t *testing.T) {
		code, err := Deterministic("https://example.com", 0)

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidLength)
		assert.Empty(t, code)
	})

	t.Run("code matches alphabet and length", func(t *testing.T) {
		for _, length := range []int{1, 6, 32, 100} {
			code, err := Deterministic("https://example.com", length)

			assert.NoError(t, err)
			assert.Len(t, code, length)

			for _, c := range code {
				assert.True(t, strings.ContainsRune(Alphabet, c), "unexpected character %q", c)
			}
		}
	})

	t.Run("same seed does not collide with itself", func(t *testing.T) {
		seen := make(map[string]struct{})

		for i := 0; i < 100; i++ {
			code, err := Deterministic("https://example.com", 21)

			assert.NoError(t, err)
			seen[code] = struct{}{}
		}

		assert.Len(t, seen, 100)
	})
}
