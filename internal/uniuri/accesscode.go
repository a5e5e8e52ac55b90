package uniuri

import "strings"

// CodeChars is the charset for toegangscodes. Ambiguous characters
// (0/O, 1/I/L) are left out so codes survive being read out loud.
var CodeChars = []byte("ABCDEFGHJKMNPQRSTUVWXYZ23456789")

const (
	codeGroupLen = 4
	codeGroups   = 3
)

// NewAccessCode returns a toegangscode of the form XXXX-XXXX-XXXX.
func NewAccessCode() string {
	raw := NewLenCharsBytes(codeGroupLen*codeGroups, CodeChars)

	var b strings.Builder

	b.Grow(len(raw) + codeGroups - 1)

	for i, c := range raw {
		if i > 0 && i%codeGroupLen == 0 {
			b.WriteByte('-')
		}

		b.WriteByte(c)
	}

	return b.String()
}
