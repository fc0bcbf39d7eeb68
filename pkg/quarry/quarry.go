// Package quarry is the engine facade: compile-and-run for find/where
// queries and the pull entry points, glued over an immutable schema
// snapshot and a fact store.
//
// Error kinds stay distinguishable end to end: compile failures are
// *algebra.CompileError, executor failures *factstore.ExecError, cell
// decode failures *value.DecodeError, and pull failures
// *pull.PullError. Callers branch with errors.As.
package quarry

import (
	"context"
	"fmt"

	"github.com/quarrydb/quarry/pkg/algebra"
	"github.com/quarrydb/quarry/pkg/factstore"
	"github.com/quarrydb/quarry/pkg/project"
	"github.com/quarrydb/quarry/pkg/pull"
	"github.com/quarrydb/quarry/pkg/query"
	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/sqlgen"
	"github.com/quarrydb/quarry/pkg/value"
)

// Inputs are externally bound query variables. They constrain as
// literals wherever they appear.
type Inputs map[query.Variable]value.TypedValue

// DB pairs a fact store with a schema snapshot. Both are read-only
// from the engine's point of view; every call sees them as-of-call.
// A DB is safe for concurrent queries.
type DB struct {
	store    *factstore.Store
	provider schema.Provider
}

// New wraps an already-open store and schema snapshot.
func New(store *factstore.Store, provider schema.Provider) *DB {
	return &DB{store: store, provider: provider}
}

// Open opens (or creates) the fact store at path and pairs it with the
// given schema snapshot.
func Open(path string, provider schema.Provider) (*DB, error) {
	store, err := factstore.Open(path)
	if err != nil {
		return nil, err
	}
	return &DB{store: store, provider: provider}, nil
}

// Close closes the underlying fact store.
func (d *DB) Close() error { return d.store.Close() }

// Store exposes the underlying fact store for asserts and tooling.
func (d *DB) Store() *factstore.Store { return d.store }

// Schema exposes the schema snapshot.
func (d *DB) Schema() schema.Provider { return d.provider }

// Compile algebrizes an AST without running it. Useful for inspecting
// plans and for callers that synthesize SQL themselves.
func (d *DB) Compile(ast *query.AST, inputs Inputs) (*algebra.Query, error) {
	return algebra.Algebrize(ast, d.provider, inputs)
}

// Query compiles and runs a find/where query. The result shape follows
// the AST's find-spec variant. The call either fully succeeds or fails
// entirely; rows are drained before projection, so no partial results
// intermix with an error.
func (d *DB) Query(ctx context.Context, ast *query.AST, inputs Inputs) (project.Results, error) {
	aq, err := algebra.Algebrize(ast, d.provider, inputs)
	if err != nil {
		return nil, err
	}
	plan, err := sqlgen.Synthesize(aq)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	rows, err := d.store.Select(ctx, plan)
	if err != nil {
		return nil, err
	}
	return project.Project(rows, aq)
}

// Pull assembles the subgraph around entity described by pattern.
func (d *DB) Pull(ctx context.Context, entity int64, pattern *pull.Pattern, opts pull.Options) (*value.StructuredMap, error) {
	return pull.Evaluate(ctx, d.store, d.provider, entity, pattern, opts)
}

// PullMany pulls the same pattern for each entity in order, as a
// find-result post-pass. The first failing entity aborts the call.
func (d *DB) PullMany(ctx context.Context, entities []int64, pattern *pull.Pattern, opts pull.Options) ([]*value.StructuredMap, error) {
	out := make([]*value.StructuredMap, 0, len(entities))
	for _, e := range entities {
		m, err := pull.Evaluate(ctx, d.store, d.provider, e, pattern, opts)
		if err != nil {
			return nil, fmt.Errorf("pull entity %d: %w", e, err)
		}
		out = append(out, m)
	}
	return out, nil
}
