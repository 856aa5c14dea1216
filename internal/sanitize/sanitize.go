// Package sanitize normalizes and validates untrusted input before it
// reaches the auth layer or is persisted inside a session.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxStringLen bounds any free-text field after sanitization.
	MaxStringLen = 1000
	// MaxEmailLen follows RFC 5321 total address length.
	MaxEmailLen = 254

	minPasswordLen = 8
	maxPasswordLen = 128

	specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

var (
	jsProtocolRe = regexp.MustCompile(`(?i)javascript:`)
	eventAttrRe  = regexp.MustCompile(`(?i)on\w+=`)
	emailRe      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// Exact matches only, compared case-insensitively.
	commonPasswords = map[string]struct{}{
		"password":    {},
		"123456":      {},
		"123456789":   {},
		"qwerty":      {},
		"abc123":      {},
		"password123": {},
		"admin":       {},
		"letmein":     {},
		"welcome":     {},
		"monkey":      {},
	}
)

// String strips markup-significant characters and script-injection
// patterns from free text. It is total: any input yields a usable string.
func String(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	s = jsProtocolRe.ReplaceAllString(s, "")
	s = eventAttrRe.ReplaceAllString(s, "")
	return truncate(s, MaxStringLen)
}

// Email lowercases and trims an address. Shape is not checked here;
// callers validate with ValidEmail afterwards.
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return truncate(s, MaxEmailLen)
}

// ValidEmail reports whether an already-sanitized address has a basic
// local@domain.tld shape.
func ValidEmail(s string) bool {
	if s == "" || len(s) > MaxEmailLen {
		return false
	}
	return emailRe.MatchString(s)
}

// PasswordCheck carries every violated strength rule, in rule order.
type PasswordCheck struct {
	Valid  bool
	Errors []string
}

// CheckPassword applies all strength rules and reports every violation.
// Callers must not assume only the first failed rule is present.
func CheckPassword(password string) PasswordCheck {
	var errs []string

	// Length bounds count characters, not bytes; a multibyte password must
	// not slip under the minimum.
	length := utf8.RuneCountInString(password)
	if length < minPasswordLen {
		errs = append(errs, "password must be at least 8 characters long")
	}
	if length > maxPasswordLen {
		errs = append(errs, "password must be at most 128 characters long")
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(specialChars, r) {
			hasSpecial = true
		}
	}
	if !hasUpper {
		errs = append(errs, "password must contain an uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "password must contain a lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "password must contain a digit")
	}
	if !hasSpecial {
		errs = append(errs, "password must contain a special character")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		errs = append(errs, "password is too common")
	}

	return PasswordCheck{Valid: len(errs) == 0, Errors: errs}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
