// Package errs defines the error taxonomy shared by the code generator,
// the cloud sync client, the sync manager and the creation orchestrator.
// Every error carries a code and a recovery strategy so callers branch on
// the strategy instead of matching error identity.
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes engine errors.
type Code string

const (
	// CodeValidationFailed indicates user input failed validation.
	CodeValidationFailed Code = "VALIDATION_FAILED"

	// CodeConstraintViolation indicates the local store rejected a write
	// (duplicate code, second active owner, duplicate membership).
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"

	// CodeNetworkUnavailable indicates no network path to the remote store.
	CodeNetworkUnavailable Code = "NETWORK_UNAVAILABLE"

	// CodeServiceUnavailable indicates the remote store is down or degraded.
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"

	// CodeRateLimited indicates the remote store asked us to back off.
	CodeRateLimited Code = "RATE_LIMITED"

	// CodeZoneBusy indicates the remote record zone is temporarily busy.
	CodeZoneBusy Code = "ZONE_BUSY"

	// CodeQuotaExceeded indicates the remote account is out of quota.
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"

	// CodeUnknownItem indicates the remote store has no such record.
	CodeUnknownItem Code = "UNKNOWN_ITEM"

	// CodeCollisionDetected indicates a generated code is already taken.
	CodeCollisionDetected Code = "CODE_COLLISION"

	// CodeMaxRetriesExceeded indicates an internal retry loop exhausted
	// its budget. Callers must not retry again.
	CodeMaxRetriesExceeded Code = "MAX_RETRIES_EXCEEDED"

	// CodeUniquenessUnknown indicates neither uniqueness check could run,
	// so a generated code cannot be trusted.
	CodeUniquenessUnknown Code = "UNIQUENESS_UNKNOWN"
)

// Recovery is the strategy a caller should apply to an error.
type Recovery string

const (
	RecoveryAutomaticRetry   Recovery = "automatic_retry"
	RecoveryFallbackToLocal  Recovery = "fallback_to_local"
	RecoveryUserIntervention Recovery = "user_intervention"
	RecoveryNone             Recovery = "no_recovery"
)

// recoveries maps each code to its fixed recovery strategy.
var recoveries = map[Code]Recovery{
	CodeValidationFailed:    RecoveryUserIntervention,
	CodeConstraintViolation: RecoveryUserIntervention,
	CodeNetworkUnavailable:  RecoveryAutomaticRetry,
	CodeServiceUnavailable:  RecoveryAutomaticRetry,
	CodeRateLimited:         RecoveryAutomaticRetry,
	CodeZoneBusy:            RecoveryAutomaticRetry,
	CodeQuotaExceeded:       RecoveryFallbackToLocal,
	CodeUnknownItem:         RecoveryFallbackToLocal,
	CodeCollisionDetected:   RecoveryAutomaticRetry,
	CodeMaxRetriesExceeded:  RecoveryNone,
	CodeUniquenessUnknown:   RecoveryNone,
}

// Error is a classified engine error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New creates a classified error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a classified error around a cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Recovery returns the error's recovery strategy.
func (e *Error) Recovery() Recovery {
	if r, ok := recoveries[e.Code]; ok {
		return r
	}
	return RecoveryNone
}

// CodeOf extracts the code from an error, unwrapping as needed. Unclassified
// errors report an empty code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RecoveryOf extracts the recovery strategy from an error. Unclassified
// errors get no recovery.
func RecoveryOf(err error) Recovery {
	var e *Error
	if errors.As(err, &e) {
		return e.Recovery()
	}
	return RecoveryNone
}

// Retryable reports whether the error should drive automatic retry with
// backoff.
func Retryable(err error) bool {
	return RecoveryOf(err) == RecoveryAutomaticRetry
}

// Is lets errors.Is match two classified errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}
