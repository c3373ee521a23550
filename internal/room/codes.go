package room

import (
	"crypto/rand"
	"strings"
)

// codeAlphabet excludes 0/O/1/I so a code read aloud or handwritten is
// never ambiguous. 31 symbols (L is left out too), 6 characters: ~887
// million combinations.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const codeLength = 6

// generateCode draws a random GameCode from codeAlphabet using
// crypto/rand. No library in the retrieval pack owns "generate a short
// human-typable token"; this is a small, self-contained use of the standard
// library's CSPRNG rather than a domain concern worth a dependency.
func generateCode() (GameCode, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(codeLength)
	for _, v := range buf {
		b.WriteByte(codeAlphabet[int(v)%len(codeAlphabet)])
	}
	return GameCode(b.String()), nil
}

// canonicalCode upper-cases a caller-supplied code so lookups are
// case-insensitive on the wire.
func canonicalCode(code string) GameCode {
	return GameCode(strings.ToUpper(strings.TrimSpace(code)))
}
