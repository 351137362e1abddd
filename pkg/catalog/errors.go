package catalog

import (
	"errors"
	"fmt"
)

// Common errors returned by the catalog package.
var (
	// ErrInvalidPageRequest is returned when a page index is negative or a
	// page size is not positive. No request is sent.
	ErrInvalidPageRequest = errors.New("invalid page request")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and local rate limit blocks.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a response body that is not a well-formed
	// listing payload.
	ErrorClassDecode ErrorClass = "decode"
)

// FetchError is returned by FetchPage for every transport, status, or
// decoding failure.
type FetchError struct {
	Class      ErrorClass
	StatusCode int
	PageIndex  int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (page %d, status %d): %s: %v",
			e.Class, e.PageIndex, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error (page %d, status %d): %s",
		e.Class, e.PageIndex, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// ClassOf returns the class of the *FetchError wrapped by err, or "" when
// err is not a fetch error.
func ClassOf(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ""
}

// shouldRetry determines if an error class is worth retrying.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx will not change on retry
		return false
	case ErrorClassDecode:
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
