package utils

import (
	"regexp"
	"unicode/utf16"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z]+$`)

	// The excluded class is the ECMAScript whitespace set plus '@'; Go's \s
	// only knows ASCII whitespace.
	emailPart = `[^\t\n\v\f\r \x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}@]+`
	emailRe   = regexp.MustCompile(`^` + emailPart + `@` + emailPart + `\.` + emailPart + `$`)
)

// MinPasswordLength counts UTF-16 code units, matching what browser clients
// report as the length of the same string.
const MinPasswordLength = 8

// ValidUsername reports whether s is one or more ASCII letters.
func ValidUsername(s string) bool { return usernameRe.MatchString(s) }

// ValidEmail reports whether s has a non-empty local part, a single '@' and
// a domain containing a dot with text on both sides.  No whitespace anywhere.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// StrongPassword reports whether s has at least MinPasswordLength
// characters, a lowercase ASCII letter, an uppercase ASCII letter, an ASCII
// digit and a character that is none of those.  Line terminators are never
// allowed.
func StrongPassword(s string) bool {
	var lower, upper, digit, special bool
	units := 0
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029':
			return false
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
		if len(utf16.Encode([]rune{r})) == 2 {
			units += 2
		} else {
			units++
		}
	}
	return units >= MinPasswordLength && lower && upper && digit && special
}
