package utils

import (
	"errors"
	"testing"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"reliance", "RELIANCE"},
		{"  tcs  ", "TCS"},
		{"$INFY", "INFY"},
		{"infosys", "INFY"},
		{"RIL", "RELIANCE"},
		{"HDFCBANK.NS", "HDFCBANK"},
		{"500325.BO", "500325"},
		{"l&t", "LT"},
		{"UNKNOWN123", "UNKNOWN123"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeTicker(tt.input); got != tt.want {
				t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateTicker(t *testing.T) {
	for _, ok := range []string{"tcs", "M&M", "BAJAJ-AUTO", "500325"} {
		if _, err := ValidateTicker(ok); err != nil {
			t.Errorf("ValidateTicker(%q): unexpected error %v", ok, err)
		}
	}
	for _, bad := range []string{"", "   ", "../etc", "A B", "TCS/consolidated", "ABCDEFGHIJKLMNOPQRSTUVWXYZ"} {
		if _, err := ValidateTicker(bad); !errors.Is(err, ErrInvalidTicker) {
			t.Errorf("ValidateTicker(%q): got %v, want ErrInvalidTicker", bad, err)
		}
	}
}
