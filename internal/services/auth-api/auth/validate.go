package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	authn "github.com/NordCoder/pixelpages/internal/auth"
)

const maxFullNameLen = 100

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validateEmail accepts a bare addr-spec with a dotted domain.
func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return invalid("email", "is not a valid address")
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	if at < 1 || !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func validatePassword(field, p string) error {
	if p == "" {
		return invalid(field, "is required")
	}
	if len(p) > authn.MaxPasswordBytes {
		return invalid(field, "must be at most 72 bytes")
	}
	return nil
}

func normalizeFullName(name *string) (*string, error) {
	if name == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*name)
	if s == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(s) > maxFullNameLen {
		return nil, invalid("full_name", "must be at most 100 characters")
	}
	return &s, nil
}
