package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestProviderErrorFormatting(t *testing.T) {
	err := NewProviderErrorWithCause(ErrTypeNetwork, "request failed", "ollama", errors.New("connection refused"))

	msg := err.Error()
	for _, part := range []string{"provider=ollama", "type=network", "request failed", "cause=connection refused"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error %q missing %q", msg, part)
		}
	}
	if !IsRetryableError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("network errors should be retryable through wrapping")
	}
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		errType   ErrorType
		retryable bool
	}{
		{404, ErrTypeModelUnavailable, false},
		{400, ErrTypeProvider, false},
		{503, ErrTypeProvider, true},
	}

	for _, tt := range tests {
		err := NewStatusError("ollama", tt.status, "failed")
		if err.Type != tt.errType || err.Retryable != tt.retryable || err.StatusCode != tt.status {
			t.Errorf("status %d: got %+v", tt.status, err)
		}
	}
}

func TestErrorsIsMatchesType(t *testing.T) {
	err := fmt.Errorf("setup: %w", NewConfigurationError("ollama", "base_url", "required"))
	if !errors.Is(err, &ProviderError{Type: ErrTypeConfiguration}) {
		t.Error("errors.Is should match on error type")
	}
	if !IsConfigurationError(err) {
		t.Error("IsConfigurationError should see through wrapping")
	}
	if IsRetryableError(err) {
		t.Error("configuration errors are not retryable")
	}
}

func TestCollect(t *testing.T) {
	ch := make(chan StreamChunk, 4)
	ch <- StreamChunk{Content: "Check "}
	ch <- StreamChunk{Content: "the network", Done: true}
	ch <- StreamChunk{Content: " ignored"}
	close(ch)

	got, err := Collect(context.Background(), ch)
	if err != nil || got != "Check the network" {
		t.Errorf("Collect = %q, %v", got, err)
	}

	failing := make(chan StreamChunk, 2)
	failing <- StreamChunk{Content: "partial"}
	failing <- StreamChunk{Error: errors.New("stream broke")}
	close(failing)
	if _, err := Collect(context.Background(), failing); err == nil {
		t.Error("expected stream error")
	}
}
