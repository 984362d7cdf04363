package license

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// keyAlphabet excludes ambiguous characters (0/O, 1/I) so keys survive
// being read over the phone or typed from a printout.
const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	keyPrefix     = "SPC"
	keyGroups     = 4
	keyGroupWidth = 4
)

var keyPattern = regexp.MustCompile(`^SPC(-[A-HJ-NP-Z2-9]{4}){4}$`)

// GenerateKey returns a new opaque license key of the form
// SPC-XXXX-XXXX-XXXX-XXXX. Keys carry no tier or expiry semantics; all
// meaning lives in the stored record. Randomness comes from crypto/rand.
func GenerateKey() (string, error) {
	raw := make([]byte, keyGroups*keyGroupWidth)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate license key: %w", err)
	}

	var b strings.Builder
	b.WriteString(keyPrefix)
	for i, c := range raw {
		if i%keyGroupWidth == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyAlphabet[int(c)%len(keyAlphabet)])
	}
	return b.String(), nil
}

// ValidKeyFormat reports whether s is syntactically a license key. It says
// nothing about whether the key exists.
func ValidKeyFormat(s string) bool {
	return keyPattern.MatchString(s)
}
