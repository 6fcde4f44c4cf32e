// internal/room/code.go
package room

import (
	"crypto/rand"
	"strings"
)

// codeAlphabet is A-Z and 0-9 minus the ambiguous characters 0, O, I, 1, L.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed length of a room code.
const CodeLength = 4

// GenerateCode returns a random room code. Uniqueness is the registry's
// problem; collisions are retried there.
func GenerateCode() string {
	b := make([]byte, CodeLength)
	rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}

// NormalizeCode upper-cases and trims a client-supplied room code. Applied on
// every boundary so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
