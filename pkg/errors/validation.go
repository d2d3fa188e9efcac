package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateDimension checks that a resize target is strictly positive.
func ValidateDimension(width, height int) error {
	if width <= 0 || height <= 0 {
		return New(ErrCodeInvalidDimension, "target dimensions must be positive, got %dx%d", width, height)
	}
	return nil
}

// ValidateProbability checks that v is a finite value in [0, 1].
func ValidateProbability(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return New(ErrCodeInvalidInput, "%s must be in [0, 1], got %v", name, v)
	}
	return nil
}

// ValidateNonNegative checks that v is finite and not negative.
func ValidateNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return New(ErrCodeInvalidInput, "%s must be a non-negative number, got %v", name, v)
	}
	return nil
}

// ValidateOutputDir validates an output directory path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidateOutputDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidPath, "output directory cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateTag validates a subfolder tag used in the {tag}_{size} convention.
// Tags are plain names; separators would let a tag escape the input directory.
func ValidateTag(tag string) error {
	if tag == "" {
		return nil
	}
	if strings.ContainsAny(tag, "/\\") || strings.Contains(tag, "..") {
		return New(ErrCodeInvalidInput, "tag cannot contain path separators: %q", tag)
	}
	for _, r := range tag {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "tag contains invalid control characters")
		}
	}
	return nil
}
