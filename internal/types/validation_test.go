package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTaxID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already plain", "52998224725", "52998224725"},
		{"masked", "529.982.247-25", "52998224725"},
		{"with spaces", " 529 982 247 25 ", "52998224725"},
		{"empty", "", ""},
		{"letters stripped", "abc123", "123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTaxID(tt.in))
		})
	}
}

func TestFormatTaxID(t *testing.T) {
	assert.Equal(t, "529.982.247-25", FormatTaxID("52998224725"))
	// Not 11 digits: returned unchanged.
	assert.Equal(t, "1234", FormatTaxID("1234"))
}

func TestValidTaxID(t *testing.T) {
	tests := []struct {
		name   string
		digits string
		want   bool
	}{
		{"valid", "52998224725", true},
		{"valid repeated blocks", "11144477735", true},
		{"valid check digit zero", "12345678909", true},
		{"wrong second check digit", "52998224726", false},
		{"wrong first check digit", "52998224735", false},
		{"all zeros", "00000000000", false},
		{"all ones", "11111111111", false},
		{"all nines", "99999999999", false},
		{"too short", "5299822472", false},
		{"too long", "529982247251", false},
		{"non-digit", "5299822472a", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTaxID(tt.digits))
		})
	}
}

func TestSplitPhone(t *testing.T) {
	area, number, ok := SplitPhone("11987654321")
	assert.True(t, ok)
	assert.Equal(t, "11", area)
	assert.Equal(t, "987654321", number)

	// Landline-length numbers (10 digits) do not decompose.
	_, _, ok = SplitPhone("1187654321")
	assert.False(t, ok)

	_, _, ok = SplitPhone("")
	assert.False(t, ok)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "11987654321", NormalizePhone("(11) 98765-4321"))
	assert.Equal(t, "11987654321", NormalizePhone("+11 9 8765 4321"))
}
