// Package apikey generates and validates GPU optimizer API keys.
//
// Keys are opaque bearer credentials of the form gopt_<23 url-safe
// characters>, 28 characters total. The random portion carries
// roughly 137 bits of entropy, which makes collisions across a
// customer base of any realistic size a non-event.
package apikey

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

const (
	// Prefix marks every key issued by this service.
	Prefix = "gopt_"

	// randomLen is the number of url-safe characters after the prefix.
	randomLen = 23

	// TotalLen is the full key length including the prefix.
	TotalLen = len(Prefix) + randomLen
)

var (
	keyPattern = regexp.MustCompile(`^gopt_[A-Za-z0-9_-]{23}$`)

	// urlSafeAlphabet matches base64.RawURLEncoding's character set.
	urlSafeAlphabet = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_")
)

// New returns a freshly generated API key. It fails only when the
// platform's CSPRNG is unavailable.
func New() (string, error) {
	buf := make([]byte, randomLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("apikey: read random: %w", err)
	}

	out := make([]byte, 0, TotalLen)
	out = append(out, Prefix...)
	for _, b := range buf {
		out = append(out, urlSafeAlphabet[int(b)%len(urlSafeAlphabet)])
	}
	return string(out), nil
}

// IsValid reports whether the value is structurally a well-formed key.
// It says nothing about whether the key exists or is active.
func IsValid(key string) bool {
	return keyPattern.MatchString(key)
}
