package factstore

import (
	"context"
	"fmt"
	"time"

	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/value"
)

// Fact is one assertion to append: entity, attribute, typed value.
type Fact struct {
	E int64
	A int64
	V value.TypedValue
}

// Assert appends facts as one transaction and returns its id. Values
// are stored in their fixed per-kind representation alongside a value
// type tag. Facts are validated against the provider: unknown
// attributes and type mismatches are rejected before anything is
// written.
func (s *Store) Assert(ctx context.Context, provider schema.Provider, facts []Fact) (int64, error) {
	if len(facts) == 0 {
		return 0, fmt.Errorf("nothing to assert")
	}

	rows := make([]struct {
		e, a  int64
		param any
		vtype int
	}, 0, len(facts))
	for _, f := range facts {
		attr, ok := provider.AttributeByID(f.A)
		if !ok {
			return 0, fmt.Errorf("assert entity %d: unknown attribute id %d", f.E, f.A)
		}
		v, ok := value.Coerce(f.V, attr.Type)
		if !ok {
			return 0, fmt.Errorf("assert entity %d: %s value for attribute %s (%s)", f.E, f.V.Type(), attr.Ident, attr.Type)
		}
		param, err := value.SQLParam(v)
		if err != nil {
			return 0, fmt.Errorf("assert entity %d: %w", f.E, err)
		}
		rows = append(rows, struct {
			e, a  int64
			param any
			vtype int
		}{e: f.E, a: f.A, param: param, vtype: int(v.Type())})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (at) VALUES (?)`, time.Now().UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("record transaction: %w", err)
	}
	txID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO datoms (e, a, v, vtype, tx, added) VALUES (?, ?, ?, ?, ?, 1)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.e, r.a, r.param, r.vtype, txID); err != nil {
			return 0, fmt.Errorf("insert datom (%d %d): %w", r.e, r.a, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return txID, nil
}
