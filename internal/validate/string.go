// Package validate provides input validation for user-supplied booking
// fields before they reach the service layer.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort = errors.New("string is too short")
	ErrStringTooLong  = errors.New("string is too long")
	ErrEmpty          = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength  int  // Minimum length in runes (0 = no minimum)
	MaxLength  int  // Maximum length in runes (0 = no maximum)
	AllowEmpty bool // Whether empty strings are allowed
}

// String validates a string against the given constraints. Input is trimmed
// before validation; the trimmed value is returned.
func String(s string, constraints StringConstraints) (string, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Length limits are rune counts, not byte counts.
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	return s, nil
}

// Constraints for the free-text booking fields.
var (
	TitleConstraints = StringConstraints{
		MinLength: 1,
		MaxLength: 200,
	}
	DescriptionConstraints = StringConstraints{
		MaxLength:  2000,
		AllowEmpty: true,
	}
	LocationConstraints = StringConstraints{
		MaxLength:  300,
		AllowEmpty: true,
	}
	SpecialInstructionsConstraints = StringConstraints{
		MaxLength:  2000,
		AllowEmpty: true,
	}
)
