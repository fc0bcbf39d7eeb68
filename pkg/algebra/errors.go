package algebra

import (
	"errors"
	"fmt"

	"github.com/quarrydb/quarry/pkg/query"
)

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeUnboundVariable indicates a variable no pattern grounds.
	ErrCodeUnboundVariable ErrorCode = "UNBOUND_VARIABLE"

	// ErrCodeAttributeNotFound indicates an unresolvable attribute place.
	ErrCodeAttributeNotFound ErrorCode = "ATTRIBUTE_NOT_FOUND"

	// ErrCodeTypeConflict indicates irreconcilable type domains for a
	// variable or literal.
	ErrCodeTypeConflict ErrorCode = "TYPE_CONFLICT"

	// ErrCodeInvalidPredicate indicates a malformed predicate clause.
	ErrCodeInvalidPredicate ErrorCode = "INVALID_PREDICATE"

	// ErrCodeInvalidAggregate indicates an unknown or mistyped aggregate.
	ErrCodeInvalidAggregate ErrorCode = "INVALID_AGGREGATE"

	// ErrCodeInvalidProjection indicates a find-spec or order-by problem.
	ErrCodeInvalidProjection ErrorCode = "INVALID_PROJECTION"

	// ErrCodeInvalidDirective indicates a bad limit/offset value.
	ErrCodeInvalidDirective ErrorCode = "INVALID_DIRECTIVE"

	// ErrCodeUnsupportedForm indicates an AST shape outside the
	// supported fragment, such as a variable attribute place.
	ErrCodeUnsupportedForm ErrorCode = "UNSUPPORTED_FORM"
)

// CompileError is an algebrizer-detected failure. It is deterministic
// given AST and schema, never auto-retried, and always fixable by
// correcting the query. Compile errors are detected before any text
// reaches the fact store.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Var identifies the offending variable, when applicable.
	Var query.Variable

	// Ident identifies the offending attribute, when applicable.
	Ident string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	switch {
	case e.Var != "":
		return fmt.Sprintf("%s: %s (var=%s)", e.Code, e.Message, e.Var)
	case e.Ident != "":
		return fmt.Sprintf("%s: %s (attr=%s)", e.Code, e.Message, e.Ident)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsCompileError reports whether err is (or wraps) a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// HasCode reports whether err is a CompileError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func errUnbound(v query.Variable, context string) *CompileError {
	return &CompileError{
		Code:    ErrCodeUnboundVariable,
		Message: fmt.Sprintf("variable is not grounded by any pattern (%s)", context),
		Var:     v,
	}
}

func errAttributeNotFound(ident string) *CompileError {
	return &CompileError{
		Code:    ErrCodeAttributeNotFound,
		Message: "attribute not found in schema",
		Ident:   ident,
	}
}

func errTypeConflict(v query.Variable, msg string) *CompileError {
	return &CompileError{Code: ErrCodeTypeConflict, Message: msg, Var: v}
}

func errUnsupported(msg string) *CompileError {
	return &CompileError{Code: ErrCodeUnsupportedForm, Message: msg}
}
