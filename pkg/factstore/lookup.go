package factstore

import (
	"context"
	"fmt"

	"github.com/quarrydb/quarry/pkg/value"
)

// ValuesForEntity returns the current values of attribute a on entity
// e, decoded via the stored value type tag, in value order. This is
// the entity-first access path the pull evaluator uses for forward
// selectors.
func (s *Store) ValuesForEntity(ctx context.Context, e, a int64) ([]value.TypedValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v, vtype FROM datoms
		WHERE e = ? AND a = ? AND added = 1
		ORDER BY v ASC
	`, e, a)
	if err != nil {
		return nil, &ExecError{Op: "lookup values", Err: err}
	}
	defer rows.Close()

	var out []value.TypedValue
	for rows.Next() {
		var raw any
		var vtype int
		if err := rows.Scan(&raw, &vtype); err != nil {
			return nil, &ExecError{Op: "scan value", Err: err}
		}
		tv, err := value.Decode(raw, value.Type(vtype))
		if err != nil {
			return nil, fmt.Errorf("datom (%d %d): %w", e, a, err)
		}
		out = append(out, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{Op: "iterate values", Err: err}
	}
	return out, nil
}

// EntitiesForValue returns the entities currently holding attribute a
// with reference value ref, in entity order. This is the value-first
// access path backing backward (backref) selectors.
func (s *Store) EntitiesForValue(ctx context.Context, a, ref int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e FROM datoms
		WHERE a = ? AND v = ? AND vtype = 0 AND added = 1
		ORDER BY e ASC
	`, a, ref)
	if err != nil {
		return nil, &ExecError{Op: "lookup backrefs", Err: err}
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var e int64
		if err := rows.Scan(&e); err != nil {
			return nil, &ExecError{Op: "scan backref", Err: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{Op: "iterate backrefs", Err: err}
	}
	return out, nil
}
