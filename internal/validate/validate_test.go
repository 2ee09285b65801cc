package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidRUT(t *testing.T) {
	valid := []string{
		"12.345.678-5",
		"123456785",
		"12345678-5",
		" 12 345 678-5 ",
		"7.654.321-6",
		"10.000.013-K",
		"10000013-k",
		"10.000.004-0",
		"1-9",
	}
	for _, v := range valid {
		assert.True(t, IsValidRUT(v), v)
	}

	invalid := []string{"", "5", "12.345.678-4", "12a45678-5", "12345678-X", "K-1", "----"}
	for _, v := range invalid {
		assert.False(t, IsValidRUT(v), v)
	}
}

func TestRUTCanonicalFormAgrees(t *testing.T) {
	raw := "12.345.678-5"
	assert.Equal(t, IsValidRUT(raw), IsValidRUT(NormalizeRUT(raw)))
	assert.Equal(t, "123456785", NormalizeRUT(raw))
}

func TestRUTCheckDigitMutationFails(t *testing.T) {
	for _, rut := range []string{"123456785", "76543216", "10000013K", "100000040"} {
		require.True(t, IsValidRUT(rut), rut)
		body := rut[:len(rut)-1]
		for _, dv := range "0123456789K" {
			if string(dv) == rut[len(rut)-1:] {
				continue
			}
			assert.False(t, IsValidRUT(body+string(dv)), "%s%c", body, dv)
		}
	}
}

func TestParseRUT(t *testing.T) {
	r, err := ParseRUT("12.345.678-5")
	require.NoError(t, err)
	assert.Equal(t, RUT("123456785"), r)
	assert.Equal(t, "12345678", r.Body())
	assert.Equal(t, "5", r.CheckDigit())
	assert.Equal(t, "12.345.678-5", r.Formatted())

	r, err = ParseRUT("7654321-6")
	require.NoError(t, err)
	assert.Equal(t, "7.654.321-6", r.Formatted())

	_, err = ParseRUT("12.345.678-0")
	assert.ErrorIs(t, err, ErrInvalidRUT)
}

func TestIsValidMobilePhone(t *testing.T) {
	for _, v := range []string{"+56912345678", "56912345678", "+569 12345678", "569 12345678"} {
		assert.True(t, IsValidMobilePhone(v), v)
	}
	for _, v := range []string{"", "+5691234567", "+569123456789", "+56212345678", "912345678", "+569-12345678"} {
		assert.False(t, IsValidMobilePhone(v), v)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+56912345678":   "+56912345678",
		"+569 1234 5678": "+56912345678",
		"56912345678":    "+56912345678",
		"9 1234 5678":    "+56912345678",
		"912345678":      "+56912345678",
		"12345":          "12345",
		"+56 2 2123 456": "+56 2 2123 456",
		"abc":            "abc",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestParsePhone(t *testing.T) {
	p, err := ParsePhone("9 8765 4321")
	require.NoError(t, err)
	assert.Equal(t, Phone("+56987654321"), p)

	_, err = ParsePhone("22123456")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}
