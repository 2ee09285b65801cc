package validate

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid_phone")

var mobilePattern = regexp.MustCompile(`^\+?569\s?[0-9]{8}$`)

// Phone is a Chilean mobile number in canonical form: +569XXXXXXXX.
type Phone string

func ParsePhone(raw string) (Phone, error) {
	n := NormalizePhone(raw)
	if !IsValidMobilePhone(n) {
		return "", ErrInvalidPhone
	}
	return Phone(n), nil
}

func (p Phone) String() string { return string(p) }

func IsValidMobilePhone(phone string) bool {
	return mobilePattern.MatchString(strings.TrimSpace(phone))
}

// NormalizePhone rewrites the accepted spellings of a mobile number
// ("9 1234 5678", "56912345678", "+569 12345678") to +569XXXXXXXX. Input
// that cannot be read as a mobile number is returned unchanged so the
// caller's validation reports it.
func NormalizePhone(raw string) string {
	if raw == "" {
		return ""
	}
	digits := strings.Join(strings.Fields(raw), "")
	digits = strings.TrimPrefix(digits, "+")
	if !strings.HasPrefix(digits, "56") && strings.HasPrefix(digits, "9") && len(digits) == 9 {
		digits = "56" + digits
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return raw
		}
	}
	if !strings.HasPrefix(digits, "569") || len(digits) != 11 {
		return raw
	}
	return "+" + digits
}
