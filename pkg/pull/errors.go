package pull

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes pull errors.
type ErrorCode string

const (
	// ErrCodeCardinalityViolation indicates a cardinality-one backward
	// selector matched more than one fact.
	ErrCodeCardinalityViolation ErrorCode = "CARDINALITY_VIOLATION"

	// ErrCodeMissingAttribute indicates a mandatory selector matched
	// nothing.
	ErrCodeMissingAttribute ErrorCode = "MISSING_ATTRIBUTE"

	// ErrCodeAttributeNotFound indicates a selector naming an unknown
	// attribute.
	ErrCodeAttributeNotFound ErrorCode = "ATTRIBUTE_NOT_FOUND"

	// ErrCodeInvalidPattern indicates a structurally invalid pattern,
	// such as a backward selector on a non-reference attribute.
	ErrCodeInvalidPattern ErrorCode = "INVALID_PATTERN"
)

// PullError is a failure evaluating a pull pattern. Cyclic graphs
// without a depth bound are not an error: the visited-set guard
// resolves them structurally by returning bare entity ids.
type PullError struct {
	Code    ErrorCode
	Message string
	Ident   string
	Entity  int64
}

// Error implements the error interface.
func (e *PullError) Error() string {
	switch {
	case e.Ident != "" && e.Entity != 0:
		return fmt.Sprintf("%s: %s (attr=%s, entity=%d)", e.Code, e.Message, e.Ident, e.Entity)
	case e.Ident != "":
		return fmt.Sprintf("%s: %s (attr=%s)", e.Code, e.Message, e.Ident)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsPullError reports whether err is (or wraps) a PullError.
func IsPullError(err error) bool {
	var pe *PullError
	return errors.As(err, &pe)
}

// HasCode reports whether err is a PullError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var pe *PullError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
