package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of AI-related error
type ErrorType string

const (
	// ErrTypeProvider indicates the backend rejected the request
	ErrTypeProvider ErrorType = "provider"

	// ErrTypeConfiguration indicates configuration errors
	ErrTypeConfiguration ErrorType = "configuration"

	// ErrTypeNetwork indicates network-related errors
	ErrTypeNetwork ErrorType = "network"

	// ErrTypeTimeout indicates timeout errors
	ErrTypeTimeout ErrorType = "timeout"

	// ErrTypeModelUnavailable indicates the requested model is not installed
	ErrTypeModelUnavailable ErrorType = "model_unavailable"

	// ErrTypeInternal indicates encoding or decoding failures
	ErrTypeInternal ErrorType = "internal"
)

// ProviderError represents errors specific to AI providers
type ProviderError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Provider   string    `json:"provider,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Cause      error     `json:"-"`
	Retryable  bool      `json:"retryable"`
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	var parts []string

	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}

	parts = append(parts, fmt.Sprintf("type=%s", e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%s", e.Cause.Error()))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error type
func (e *ProviderError) Is(target error) bool {
	if pe, ok := target.(*ProviderError); ok {
		return e.Type == pe.Type
	}
	return false
}

// NewProviderError creates a new provider error
func NewProviderError(errType ErrorType, message, provider string) *ProviderError {
	return &ProviderError{
		Type:      errType,
		Message:   message,
		Provider:  provider,
		Retryable: isRetryableError(errType),
	}
}

// NewProviderErrorWithCause creates a provider error with an underlying cause
func NewProviderErrorWithCause(errType ErrorType, message, provider string, cause error) *ProviderError {
	pe := NewProviderError(errType, message, provider)
	pe.Cause = cause
	return pe
}

// NewStatusError creates a provider error for a non-200 response
func NewStatusError(provider string, status int, message string) *ProviderError {
	pe := NewProviderError(ErrTypeProvider, message, provider)
	pe.StatusCode = status
	if status == 404 {
		pe.Type = ErrTypeModelUnavailable
	}
	pe.Retryable = status >= 500
	return pe
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(provider, field, message string) *ProviderError {
	return NewProviderError(ErrTypeConfiguration, fmt.Sprintf("field %s: %s", field, message), provider)
}

func isRetryableError(errType ErrorType) bool {
	switch errType {
	case ErrTypeTimeout, ErrTypeNetwork:
		return true
	default:
		return false
	}
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Type == ErrTypeConfiguration
}
