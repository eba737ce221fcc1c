package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTickers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"only spaces", "   ", nil},
		{"comma only", ",", nil},
		{"single value", "VTI", []string{"VTI"}},
		{"lowercase is upper-cased", "vti, spy", []string{"VTI", "SPY"}},
		{"varied spacing", "VTI,  SCHD , VXUS", []string{"VTI", "SCHD", "VXUS"}},
		{"trailing comma", "VTI,", []string{"VTI"}},
		{"duplicates keep first", "VTI,spy,vti,SPY", []string{"VTI", "SPY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseTickers(tt.input))
		})
	}
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "VTI", NormalizeTicker("  vti "))
	assert.Equal(t, "", NormalizeTicker("   "))
}
