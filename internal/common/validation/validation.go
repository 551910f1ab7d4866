// internal/common/validation/validation.go

// Package validation holds the field checks shared by queue-event
// parsing and contact-data sanity checks.
package validation

import (
	"fmt"
	"regexp"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ().\-]{6,19}$`)
)

// RequiredString extracts a mandatory non-empty string variable from a
// decoded queue payload.
func RequiredString(variables map[string]interface{}, name string) (string, error) {
	value, ok := variables[name].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return value, nil
}

// OptionalInt64 reads a numeric variable. Queue payloads arrive as
// JSON, so numbers decode to float64; a missing or non-numeric value
// yields zero.
func OptionalInt64(variables map[string]interface{}, name string) int64 {
	if value, ok := variables[name].(float64); ok {
		return int64(value)
	}
	return 0
}

// IsValidEmail reports whether the address looks deliverable.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPhone accepts international numbers with common separators.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
