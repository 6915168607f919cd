package services

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	codeLength = 6

	// Excludes glyphs that are easy to confuse when handwritten or read
	// aloud (0/O, 1/I)
	codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateCode generates a random pairing code of the given length.
// Codes are pairing tokens, not secrets; when the system random source
// fails the generator degrades to deriving characters from a UUID instead
// of failing outright.
func GenerateCode(length int) string {
	if length <= 0 {
		length = codeLength
	}
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return codeFromUUID(length)
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// codeFromUUID maps UUID bytes onto the code alphabet
func codeFromUUID(length int) string {
	id := uuid.New()
	code := make([]byte, length)
	for i := range code {
		code[i] = codeChars[int(id[i%len(id)])%len(codeChars)]
	}
	return string(code)
}
