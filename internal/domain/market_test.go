package domain

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", TruncateTitle("short", "id", 10))
	assert.Equal(t, "id-1", TruncateTitle("", "id-1", 10))
	assert.Equal(t, "abcdefg...", TruncateTitle("abcdefghijklmnop", "id", 10))
	assert.Equal(t, "ab", TruncateTitle("abcdef", "id", 2))
}

func TestTruncateTitle_CutsOnRuneBoundary(t *testing.T) {
	title := "¿Ganará España el Mundial 2030? 🏆🏆🏆🏆"

	for maxLen := 4; maxLen < utf8.RuneCountInString(title); maxLen++ {
		got := TruncateTitle(title, "id", maxLen)
		assert.True(t, utf8.ValidString(got), "maxLen %d: %q", maxLen, got)
		assert.Equal(t, maxLen, utf8.RuneCountInString(got), "maxLen %d", maxLen)
	}
	assert.Equal(t, "¿Ga...", TruncateTitle(title, "id", 6))
}
