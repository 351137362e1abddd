package selection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSuperseded is returned when a newer operation took ownership of the
// state this operation would have written. Nothing was committed.
var ErrSuperseded = errors.New("request superseded by a newer request")

// InvalidInputError is returned for a selection count that is not a positive
// base-10 integer. It is reported before any state change or fetch.
type InvalidInputError struct {
	Input  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid selection count %q: %s", e.Input, e.Reason)
}

// IsInvalidInput reports whether err wraps an *InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}

// ParseCount parses free-text user input into a selection count. Surrounding
// whitespace and a leading "+" are accepted.
func ParseCount(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, &InvalidInputError{Input: text, Reason: "empty input"}
	}

	n, err := strconv.Atoi(trimmed)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &InvalidInputError{Input: text, Reason: "out of range"}
		}
		return 0, &InvalidInputError{Input: text, Reason: "not a number"}
	}
	if n <= 0 {
		return 0, &InvalidInputError{Input: text, Reason: "must be positive"}
	}
	return n, nil
}
