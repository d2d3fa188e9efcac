package errors

import (
	"math"
	"testing"
)

func TestValidateDimension(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		wantErr bool
	}{
		{"square", 256, 256, false},
		{"wide", 512, 128, false},
		{"one pixel", 1, 1, false},

		{"zero width", 0, 256, true},
		{"zero height", 256, 0, true},
		{"negative", -1, 64, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDimension(tt.w, tt.h)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDimension(%d, %d) error = %v, wantErr %v", tt.w, tt.h, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidDimension) {
				t.Errorf("expected INVALID_DIMENSION, got %v", GetCode(err))
			}
		})
	}
}

func TestValidateProbability(t *testing.T) {
	tests := []struct {
		v       float64
		wantErr bool
	}{
		{0, false},
		{0.5, false},
		{1, false},
		{-0.1, true},
		{1.1, true},
		{math.NaN(), true},
	}

	for _, tt := range tests {
		err := ValidateProbability("amount", tt.v)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateProbability(%v) error = %v, wantErr %v", tt.v, err, tt.wantErr)
		}
	}
}

func TestValidateNonNegative(t *testing.T) {
	if err := ValidateNonNegative("std", 0); err != nil {
		t.Errorf("zero should pass: %v", err)
	}
	if err := ValidateNonNegative("std", 25); err != nil {
		t.Errorf("positive should pass: %v", err)
	}
	if err := ValidateNonNegative("std", -1); err == nil {
		t.Error("negative should fail")
	}
	if err := ValidateNonNegative("std", math.Inf(1)); err == nil {
		t.Error("infinity should fail")
	}
}

func TestValidateOutputDir(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "outputs/run1", false},
		{"absolute", "/tmp/grainscale", false},

		{"empty", "", true},
		{"blank", "   ", true},
		{"null byte", "out\x00dir", true},
		{"newline", "out\ndir", true},
		{"too long", string(make([]byte, 600)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputDir(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputDir(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTag(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"", false},
		{"Te-gl_0018", false},
		{"cat", false},
		{"../etc", true},
		{"a/b", true},
		{"a\\b", true},
		{"a\x01b", true},
	}

	for _, tt := range tests {
		err := ValidateTag(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTag(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
