package factstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/quarrydb/quarry/pkg/sqlgen"
)

// ExecError wraps a failure from the storage engine while running a
// synthesized plan. It is propagated unmodified apart from this
// wrapper, which keeps executor failures distinguishable from compile
// and decode failures.
type ExecError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return fmt.Sprintf("execute %s: %v", e.Op, e.Err)
}

// Unwrap returns the storage engine's error.
func (e *ExecError) Unwrap() error { return e.Err }

// IsExecError reports whether err is (or wraps) an ExecError.
func IsExecError(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee)
}

// Select runs a synthesized plan and returns every row's raw cells.
// The rows are fully drained before returning: a query either yields a
// complete row set or an error, never both. The context carries the
// caller's timeout or cancellation; it is forwarded to the driver
// without inspection. Plan hints are accepted and ignored; SQLite's
// own planner chooses among the datom indexes.
func (s *Store) Select(ctx context.Context, plan *sqlgen.Plan) ([][]any, error) {
	rows, err := s.db.QueryContext(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, &ExecError{Op: "query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ExecError{Op: "columns", Err: err}
	}
	width := len(cols)

	var out [][]any
	for rows.Next() {
		cells := make([]any, width)
		dests := make([]any, width)
		for i := range cells {
			dests[i] = &cells[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, &ExecError{Op: "scan", Err: err}
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{Op: "iterate", Err: err}
	}
	return out, nil
}
