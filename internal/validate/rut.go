// Package validate holds the Chilean identity and contact rules applied to
// applicants before anything is scored or stored.
package validate

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidRUT = errors.New("invalid_rut")

// RUT is a canonical national id: body digits followed by the check digit,
// without separators, e.g. "123456785".
type RUT string

func ParseRUT(raw string) (RUT, error) {
	n := NormalizeRUT(raw)
	if !IsValidRUT(n) {
		return "", ErrInvalidRUT
	}
	return RUT(n), nil
}

func (r RUT) String() string { return string(r) }

func (r RUT) Body() string {
	if len(r) < 2 {
		return ""
	}
	return string(r[:len(r)-1])
}

func (r RUT) CheckDigit() string {
	if len(r) < 1 {
		return ""
	}
	return string(r[len(r)-1:])
}

// Formatted renders the id the way it is printed on documents: 12.345.678-5.
func (r RUT) Formatted() string {
	body := r.Body()
	if body == "" {
		return string(r)
	}
	var b strings.Builder
	lead := len(body) % 3
	if lead > 0 {
		b.WriteString(body[:lead])
	}
	for i := lead; i < len(body); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteString(r.CheckDigit())
	return b.String()
}

// NormalizeRUT strips dots, dashes and whitespace and upper-cases the check digit.
func NormalizeRUT(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case '.', '-', ' ', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func IsValidRUT(raw string) bool {
	v := NormalizeRUT(raw)
	if len(v) < 2 {
		return false
	}
	body, dv := v[:len(v)-1], v[len(v)-1:]
	for _, r := range body {
		if r < '0' || r > '9' {
			return false
		}
	}
	if dv != "K" && (dv[0] < '0' || dv[0] > '9') {
		return false
	}
	return CheckDigit(body) == dv
}

// CheckDigit computes the modulus-11 verifier for the numeric body of a RUT,
// weighting digits right to left with the cycle 2..7.
func CheckDigit(body string) string {
	sum := 0
	mul := 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * mul
		if mul < 7 {
			mul++
		} else {
			mul = 2
		}
	}
	switch expected := 11 - sum%11; expected {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return strconv.Itoa(expected)
	}
}
