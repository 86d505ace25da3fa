package exotel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"already e164", "+919876543210", "+919876543210"},
		{"country code no plus", "919876543210", "+919876543210"},
		{"trunk prefix", "09876543210", "+919876543210"},
		{"bare subscriber number", "9876543210", "+919876543210"},
		{"with spaces", "+91 98765 43210", "+919876543210"},
		{"with dashes", "91-9876543210", "+919876543210"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhoneNumber(tt.input))
		})
	}
}

func TestSameNumber(t *testing.T) {
	variants := []string{"+919876543210", "919876543210", "09876543210", "9876543210"}
	for _, a := range variants {
		for _, b := range variants {
			assert.True(t, SameNumber(a, b), "%s and %s should match", a, b)
		}
	}

	assert.False(t, SameNumber("+919876543210", "+919876543211"))
	assert.False(t, SameNumber("9876543210", "8876543210"))
}
