package identity

import "regexp"

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	// Injection characters, consecutive dots, and addresses starting
	// or ending with a dot are rejected even when the base pattern
	// matches.
	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[<>"';\\]`),
		regexp.MustCompile(`\.{2,}`),
		regexp.MustCompile(`^\.|\.$`),
	}
)

// ValidEmail reports whether email is syntactically acceptable and
// free of suspicious patterns. Matching is case-sensitive and no
// normalization is applied; the stored address is exactly what the
// caller sent.
func ValidEmail(email string) bool {
	if email == "" || len(email) > 255 {
		return false
	}
	if !emailPattern.MatchString(email) {
		return false
	}
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(email) {
			return false
		}
	}
	return true
}
