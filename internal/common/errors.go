package common

import (
	"errors"
	"fmt"
)

var (
	// ErrCollaboratorUnavailable marks cache, index or LLM failures that callers recover from locally
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrNotFitted is returned by encoders used before training
	ErrNotFitted = errors.New("encoder must be fitted before encoding")
)

// InputError rejects input that cannot be processed at all
type InputError struct {
	Detail string
	Cause  error
}

func (e *InputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Detail, e.Cause)
	}
	return "invalid input: " + e.Detail
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// NewInputError creates an InputError with an optional cause
func NewInputError(detail string, cause error) *InputError {
	return &InputError{Detail: detail, Cause: cause}
}

// IsInputError reports whether err is or wraps an InputError
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// Unavailable wraps a collaborator failure
func Unavailable(collaborator string, err error) error {
	return fmt.Errorf("%s: %w: %w", collaborator, ErrCollaboratorUnavailable, err)
}
