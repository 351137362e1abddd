package catalog

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{"client error should not retry", ErrorClassClient, false},
		{"decode error should not retry", ErrorClassDecode, false},
		{"server error should retry", ErrorClassServer, true},
		{"rate limit should retry", ErrorClassRateLimit, true},
		{"network error should retry", ErrorClassNetwork, true},
		{"empty error class should not retry", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := shouldRetry(tt.errorClass); result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FetchError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &FetchError{
				Class:     ErrorClassNetwork,
				PageIndex: 2,
				Message:   "request failed",
				Err:       io.ErrUnexpectedEOF,
			},
			expected: "catalog network error (page 2, status 0): request failed: unexpected EOF",
		},
		{
			name: "error without wrapped error",
			err: &FetchError{
				Class:      ErrorClassServer,
				StatusCode: 503,
				Message:    "503 Service Unavailable",
			},
			expected: "catalog server error (page 0, status 503): 503 Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	fe := &FetchError{Class: ErrorClassNetwork, Err: io.EOF}
	if !errors.Is(fe, io.EOF) {
		t.Error("errors.Is should see the wrapped error")
	}

	wrapped := fmt.Errorf("select walk: %w", fe)
	if !IsFetchError(wrapped) {
		t.Error("IsFetchError should see through wrapping")
	}
	if ClassOf(wrapped) != ErrorClassNetwork {
		t.Errorf("ClassOf = %q, want network", ClassOf(wrapped))
	}
}

func TestClassOf_NonFetchError(t *testing.T) {
	if got := ClassOf(errors.New("boom")); got != "" {
		t.Errorf("ClassOf = %q, want empty", got)
	}
	if IsFetchError(nil) {
		t.Error("nil is not a fetch error")
	}
}
