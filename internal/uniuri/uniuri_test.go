package uniuri_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paneelbeheer/paneelbeheer/internal/uniuri"
)

func TestNew(t *testing.T) {
	seen := map[string]bool{}

	for range 100 {
		s := uniuri.New()
		assert.Len(t, s, uniuri.StdLen)
		assert.False(t, seen[s], "generated a duplicate: %s", s)
		seen[s] = true

		for _, c := range s {
			assert.Contains(t, string(uniuri.StdChars), string(c))
		}
	}
}

func TestNewLen(t *testing.T) {
	for _, n := range []int{0, 1, 8, 64, 1024} {
		assert.Len(t, uniuri.NewLen(n), n)
	}
}

func TestNewLenChars_PanicsOnBadCharset(t *testing.T) {
	assert.Panics(t, func() {
		uniuri.NewLenChars(10, []byte("x"))
	})
}

func TestNewAccessCode(t *testing.T) {
	code := uniuri.NewAccessCode()

	parts := strings.Split(code, "-")
	assert.Len(t, parts, 3)

	for _, p := range parts {
		assert.Len(t, p, 4)

		for _, c := range p {
			assert.Contains(t, string(uniuri.CodeChars), string(c))
			assert.NotContains(t, "01OIL", string(c))
		}
	}
}
