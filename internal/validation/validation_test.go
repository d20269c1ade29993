package validation

import (
	"errors"
	"strings"
	"testing"

	"tribeboard/internal/errs"
)

func TestValidateFamilyName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid name",
			input:   "The Mawere Family",
			wantErr: false,
		},
		{
			name:    "short but allowed",
			input:   "Us",
			wantErr: false,
		},
		{
			name:    "empty name",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "single character",
			input:   "A",
			wantErr: true,
		},
		{
			name:    "too long",
			input:   strings.Repeat("x", 65),
			wantErr: true,
		},
		{
			name:    "exactly max length",
			input:   strings.Repeat("x", 64),
			wantErr: false,
		},
		{
			name:    "control characters",
			input:   "Fam\x00ily",
			wantErr: true,
		},
		{
			name:    "name with apostrophe",
			input:   "O'Brien Household",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFamilyName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFamilyName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorsAreClassified(t *testing.T) {
	err := ValidateFamilyName("")
	if errs.CodeOf(err) != errs.CodeValidationFailed {
		t.Errorf("CodeOf = %v, want %v", errs.CodeOf(err), errs.CodeValidationFailed)
	}
	if errs.RecoveryOf(err) != errs.RecoveryUserIntervention {
		t.Errorf("RecoveryOf = %v, want %v", errs.RecoveryOf(err), errs.RecoveryUserIntervention)
	}

	var fieldErr ValidationError
	if !errors.As(err, &fieldErr) {
		t.Fatal("expected a ValidationError in the chain")
	}
	if fieldErr.Field != "family name" {
		t.Errorf("Field = %q, want %q", fieldErr.Field, "family name")
	}
}

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName("Tatenda"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ValidateDisplayName("")
	var fieldErr ValidationError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "display name" {
		t.Errorf("expected display name field error, got %v", err)
	}
}
