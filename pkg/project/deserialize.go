package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quarrydb/quarry/pkg/value"
)

// DeserializeError reports a failure mapping a Rel row onto a caller
// struct: a column with no matching field, or a field whose type does
// not accept the column's value. It is distinct from the lower-level
// *value.DecodeError, which means the stored cell did not match its
// declared value type.
type DeserializeError struct {
	Column string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DeserializeError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("deserialize row: column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("deserialize row: %s", e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *DeserializeError) Unwrap() error { return e.Err }

// IsDeserializeError reports whether err is (or wraps) a
// DeserializeError.
func IsDeserializeError(err error) bool {
	var de *DeserializeError
	return errors.As(err, &de)
}

// RowToStruct maps one Rel row onto T by result column name. Column
// names come from the projection (variable names without their "?"
// sigil), matched against T's json tags or field names. A column with
// no destination field, or a field/value type mismatch, yields a
// *DeserializeError.
func RowToStruct[T any](columns []string, row []value.Binding) (T, error) {
	var out T
	if len(columns) != len(row) {
		return out, &DeserializeError{
			Reason: fmt.Sprintf("row has %d cells for %d columns", len(row), len(columns)),
		}
	}

	m := make(map[string]any, len(row))
	for i, col := range columns {
		m[col] = value.JSONValue(row[i])
	}

	data, err := json.Marshal(m)
	if err != nil {
		return out, &DeserializeError{Reason: "encode row", Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, &DeserializeError{Reason: err.Error(), Err: err}
	}
	return out, nil
}

// StructsFromRel maps every row of a Rel onto T. The first failing row
// aborts the conversion.
func StructsFromRel[T any](rel Rel) ([]T, error) {
	out := make([]T, 0, len(rel.Rows))
	for i, row := range rel.Rows {
		v, err := RowToStruct[T](rel.Columns, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
