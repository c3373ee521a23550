package room

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeLengthAndAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Len(t, code, codeLength)
		for _, r := range string(code) {
			assert.Contains(t, codeAlphabet, string(r))
		}
	}
}

func TestCodeAlphabetExcludesAmbiguousCharacters(t *testing.T) {
	for _, c := range []string{"0", "O", "1", "I"} {
		assert.False(t, strings.Contains(codeAlphabet, c), "alphabet must not contain %q", c)
	}
}

func TestCanonicalCodeUppercasesAndTrims(t *testing.T) {
	assert.Equal(t, GameCode("AB3XZK"), canonicalCode("  ab3xzk  "))
}
