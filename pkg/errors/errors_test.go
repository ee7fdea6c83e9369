package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestNewCLIError creates and validates a CLI error
func TestNewCLIError(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewCLIError(ErrorTypeWrite, "Test error", cause)

	if err.Type != ErrorTypeWrite {
		t.Errorf("Expected type %s, got %s", ErrorTypeWrite, err.Type)
	}
	if err.Cause != cause {
		t.Error("Cause not set correctly")
	}
	if err.Error() != "Test error: underlying error" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

// TestValidationError keeps the user-facing message intact
func TestValidationError(t *testing.T) {
	err := ValidationError("content", "Please enter some text")

	if err.Type != ErrorTypeValidation {
		t.Errorf("Expected type %s, got %s", ErrorTypeValidation, err.Type)
	}
	if err.Error() != "Please enter some text" {
		t.Errorf("Expected alert text, got %q", err.Error())
	}
	if err.Field != "content" {
		t.Errorf("Expected field content, got %s", err.Field)
	}
}

func TestFlowErrorConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *CLIError
		want ErrorType
	}{
		{"upload", UploadError(cause), ErrorTypeUpload},
		{"write", WriteError("publish post", cause), ErrorTypeWrite},
		{"read", ReadError("Error loading feed. Please try again.", cause), ErrorTypeRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.want {
				t.Errorf("Expected type %s, got %s", tt.want, tt.err.Type)
			}
			if !errors.Is(tt.err, cause) {
				t.Error("cause should be reachable through Unwrap")
			}
		})
	}
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("publishing: %w", ValidationError("question", "Please enter a question"))

	if !IsValidation(wrapped) {
		t.Error("IsValidation should see through wrapping")
	}
	if IsType(wrapped, ErrorTypeWrite) {
		t.Error("wrong type should not match")
	}
	if IsValidation(errors.New("plain")) {
		t.Error("plain errors are not validation errors")
	}
}

// TestCategorizeError categorizes standard errors
func TestCategorizeError(t *testing.T) {
	testCases := []struct {
		input    error
		expected ErrorType
		name     string
	}{
		{errors.New("connection refused"), ErrorTypeNetwork, "connection refused"},
		{errors.New("timeout"), ErrorTypeTimeout, "timeout"},
		{errors.New("context deadline exceeded"), ErrorTypeTimeout, "context deadline"},
		{errors.New("401 unauthorized"), ErrorTypeAuth, "401 error"},
		{errors.New("403 forbidden"), ErrorTypeForbidden, "403 error"},
		{errors.New("404 not found"), ErrorTypeNotFound, "404 error"},
		{errors.New("429 rate limit"), ErrorTypeRateLimit, "429 error"},
		{errors.New("500 server error"), ErrorTypeServer, "500 error"},
		{errors.New("something odd"), ErrorTypeUnknown, "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := CategorizeError(tc.input)
			if err.Type != tc.expected {
				t.Errorf("Expected type %s, got %s", tc.expected, err.Type)
			}
		})
	}
}

// TestFormatError formats error for display
func TestFormatError(t *testing.T) {
	formatted := FormatError(AuthError("Invalid credentials"))

	if !strings.Contains(formatted, "Error (auth)") {
		t.Errorf("Expected error type in formatted message, got %q", formatted)
	}
	if !strings.Contains(formatted, "Suggestion") {
		t.Error("Expected suggestion in formatted message")
	}

	if FormatError(nil) != "" {
		t.Error("Expected empty string for nil error")
	}

	rl := FormatError(RateLimitError(30))
	if !strings.Contains(rl, "Retry in: 30 seconds") {
		t.Errorf("Expected retry hint, got %q", rl)
	}
}
