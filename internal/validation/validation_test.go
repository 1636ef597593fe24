package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"0x1111111111111111111111111111111111111111", true},
		{"0xAbCdEf1234567890aBcDeF1234567890abcdef12", true},
		{"0x123", false},
		{"1111111111111111111111111111111111111111", false},
		{"0xZZ11111111111111111111111111111111111111", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidAddress(tt.addr), "addr %q", tt.addr)
	}
}

func TestSanitizeAddress(t *testing.T) {
	assert.Equal(t,
		"0xabcdef1234567890abcdef1234567890abcdef12",
		SanitizeAddress("  0xAbCdEf1234567890aBcDeF1234567890abcdef12 "))

	// Bare 40-hex gets a 0x prefix
	assert.Equal(t,
		"0x1111111111111111111111111111111111111111",
		SanitizeAddress("1111111111111111111111111111111111111111"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "he", SanitizeString("hello", 2))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 100))
}

func TestValidate(t *testing.T) {
	errs := Validate(
		Required("creator", ""),
		ValidAddress("creator", "0x123"),
		PositiveAmount("entry_fee", 0),
	)
	assert.Len(t, errs, 3)
	assert.Equal(t, "creator", errs[0].Field)

	errs = Validate(
		Required("creator", "0x1111111111111111111111111111111111111111"),
		ValidAddress("creator", "0x1111111111111111111111111111111111111111"),
		PositiveAmount("entry_fee", 500),
	)
	assert.Empty(t, errs)
}

func TestValidAddressAllowsEmpty(t *testing.T) {
	assert.Nil(t, ValidAddress("arbiter", "")())
}
