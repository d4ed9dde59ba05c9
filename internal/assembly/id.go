package assembly

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// NewPageID mints an opaque 128-bit page identifier expressed as a
// URL-safe string (§6.6). The id is immutable once assigned.
func NewPageID() string {
	return uuid.New().String()
}

const slugLength = 8
const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewSlug mints a lowercase alphanumeric publish slug. The default length is
// 8 characters; paid tiers may request a custom length (§6.6), mutable
// after assignment (re-publishing may reassign it).
func NewSlug(length int) (string, error) {
	if length <= 0 {
		length = slugLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(length)
	for _, c := range buf {
		b.WriteByte(slugAlphabet[int(c)%len(slugAlphabet)])
	}
	return b.String(), nil
}
