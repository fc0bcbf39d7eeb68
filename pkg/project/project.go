// Package project converts raw executor rows into typed, shape-correct
// results. The result shape was fixed at compile time by the find-spec;
// cell decoding dispatches on each output's declared value type and
// fails hard on mismatch rather than coercing.
package project

import (
	"fmt"

	"github.com/quarrydb/quarry/pkg/algebra"
	"github.com/quarrydb/quarry/pkg/value"
)

// Results is a sealed interface over the four result shapes.
type Results interface {
	resultsNode() // Sealed - only types in this package implement it
}

// Scalar holds at most one value. Value is nil when no row matched;
// zero matches are an absent value, never an error.
type Scalar struct {
	Value value.Binding
}

func (Scalar) resultsNode() {}

// Tuple holds at most one fixed-width row. Row is nil when no row
// matched.
type Tuple struct {
	Row []value.Binding
}

func (Tuple) resultsNode() {}

// Coll holds every row's single value, in store-delivered order, with
// no implicit deduplication.
type Coll struct {
	Values []value.Binding
}

func (Coll) resultsNode() {}

// Rel holds every row, row order preserved. Columns carries the result
// column names in projection order.
type Rel struct {
	Columns []string
	Rows    [][]value.Binding
}

func (Rel) resultsNode() {}

// Project converts raw rows into the result shape recorded on q. A
// cell that fails to decode as its declared type aborts the whole call
// with a *value.DecodeError: partial results are never returned.
func Project(rows [][]any, q *algebra.Query) (Results, error) {
	width := len(q.Projection)

	decodeRow := func(raw []any) ([]value.Binding, error) {
		if len(raw) != width {
			return nil, fmt.Errorf("executor returned %d cells, projection has %d", len(raw), width)
		}
		out := make([]value.Binding, width)
		for i, cell := range raw {
			tv, err := value.Decode(cell, q.Projection[i].Type)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", q.Projection[i].Name, err)
			}
			out[i] = value.Scalar{Value: tv}
		}
		return out, nil
	}

	switch q.Shape {
	case algebra.ShapeScalar:
		if len(rows) == 0 {
			return Scalar{}, nil
		}
		row, err := decodeRow(rows[0])
		if err != nil {
			return nil, err
		}
		return Scalar{Value: row[0]}, nil

	case algebra.ShapeTuple:
		if len(rows) == 0 {
			return Tuple{}, nil
		}
		row, err := decodeRow(rows[0])
		if err != nil {
			return nil, err
		}
		return Tuple{Row: row}, nil

	case algebra.ShapeColl:
		values := make([]value.Binding, 0, len(rows))
		for _, raw := range rows {
			row, err := decodeRow(raw)
			if err != nil {
				return nil, err
			}
			values = append(values, row[0])
		}
		return Coll{Values: values}, nil

	default: // ShapeRel
		cols := make([]string, width)
		for i, p := range q.Projection {
			cols[i] = p.Name
		}
		out := make([][]value.Binding, 0, len(rows))
		for _, raw := range rows {
			row, err := decodeRow(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return Rel{Columns: cols, Rows: out}, nil
	}
}
