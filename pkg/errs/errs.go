// Package errs defines the error taxonomy shared by the messaging core.
// Every failure surfaced by the thread, delivery, credit, codec and send
// packages is one of these values (possibly wrapped), so the API layer can
// map errors to specific HTTP statuses without string matching.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound reports a missing thread or message.
	ErrNotFound = errors.New("not found")
	// ErrForbidden reports an actor lacking permission for the attempted
	// operation or transition.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition reports a state machine rule violation.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrThreadNotOpen reports a send attempted on a thread that is not
	// accepted.
	ErrThreadNotOpen = errors.New("thread not open for messaging")
	// ErrNotEligible reports a contact request to a provider that has
	// disabled inbound contact.
	ErrNotEligible = errors.New("provider not accepting new requests")
	// ErrCorruptPayload reports a stored payload that parses neither as the
	// typed form nor as the legacy marker string.
	ErrCorruptPayload = errors.New("corrupt payload")

	// Credit gate denials.
	ErrNoSubscription       = errors.New("no subscription")
	ErrSubscriptionInactive = errors.New("subscription inactive")
	ErrNoCredits            = errors.New("no credits remaining")
)

// ValidationError names the payload field that failed codec validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the given field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
