package validation

import (
	"fmt"
	"strings"
	"unicode"

	"tribeboard/internal/errs"
)

const (
	minNameLength = 2
	maxNameLength = 64
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateFamilyName checks a family display name.
func ValidateFamilyName(name string) error {
	return validateName("family name", name)
}

// ValidateDisplayName checks a member display name. Same engine as family
// names; the field label differs for error reporting.
func ValidateDisplayName(name string) error {
	return validateName("display name", name)
}

func validateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fieldError(field, "is required")
	}
	if len(name) < minNameLength {
		return fieldError(field, fmt.Sprintf("must be at least %d characters", minNameLength))
	}
	if len(name) > maxNameLength {
		return fieldError(field, fmt.Sprintf("must be at most %d characters", maxNameLength))
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fieldError(field, "contains control characters")
		}
	}
	return nil
}

func fieldError(field, message string) error {
	return errs.Wrap(errs.CodeValidationFailed, field+" "+message,
		ValidationError{Field: field, Message: message})
}
