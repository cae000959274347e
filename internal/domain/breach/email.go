package breach

import (
	"fmt"
	"strings"

	"github.com/Strob0t/BreachCache/internal/domain"
)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExtractDomain returns the part after the first '@' of a normalized email.
func ExtractDomain(email string) (string, error) {
	at := strings.IndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return "", fmt.Errorf("%w: invalid email format, missing '@' or domain", domain.ErrValidation)
	}
	return email[at+1:], nil
}

// ParseEmail normalizes email and extracts its domain.
func ParseEmail(email string) (normalized, dom string, err error) {
	normalized = NormalizeEmail(email)
	if normalized == "" {
		return "", "", fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	dom, err = ExtractDomain(normalized)
	if err != nil {
		return "", "", err
	}
	return normalized, dom, nil
}
