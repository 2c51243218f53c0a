// Package apperr defines the error kinds shared by the server and the client:
// sentinel facts about resources and the three user-facing failure kinds
// (validation, store, auth).
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Stores and transports return these, optionally wrapped, so
// callers can branch with errors.Is.
var (
	// ErrNotFound reports a missing user, profile or code.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation (for example a taken email).
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized reports a missing, expired or revoked session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden reports an authenticated caller touching another user's data.
	ErrForbidden = errors.New("forbidden")
	// ErrIncomplete reports an attempt to finish onboarding with required fields missing.
	ErrIncomplete = errors.New("onboarding incomplete")
	// ErrSubmissionPending reports a second advance while one is still in flight.
	ErrSubmissionPending = errors.New("submission already pending")
	// ErrOnboardingDone reports an advance after the terminal state was reached.
	ErrOnboardingDone = errors.New("onboarding already completed")
	// ErrStepMismatch reports answers submitted for a step that is not the current one.
	ErrStepMismatch = errors.New("answers do not belong to the current step")
)

// ValidationError is a local, field-level failure. It never leaves the device
// on the client and blocks the step transition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

// Error returns the human readable message.
func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StoreError is a transport or auth failure while talking to persistence.
type StoreError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// AuthError is a failure in a sign-in, sign-up or reset flow.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRetryable reports whether err is a StoreError the user may retry as is.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Retryable
}
