package factstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/pkg/algebra"
	"github.com/quarrydb/quarry/pkg/query"
	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/sqlgen"
	"github.com/quarrydb/quarry/pkg/value"
)

func testSchema(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.Attribute{ID: 100, Ident: "person/name", Type: value.TypeString, Unique: schema.UniqueIdentity, Indexed: true},
		schema.Attribute{ID: 101, Ident: "person/age", Type: value.TypeLong},
		schema.Attribute{ID: 102, Ident: "person/friend", Type: value.TypeRef, Cardinality: schema.Many},
	)
	require.NoError(t, err)
	return reg
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesPragmas(t *testing.T) {
	// An in-memory database reports journal_mode "memory" regardless, so
	// pragma verification needs a file-backed store.
	path := filepath.Join(t.TempDir(), "facts.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	assert.NoError(t, s.verifyPragma(ctx, "journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma(ctx, "foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma(ctx, "busy_timeout", "5000"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening applies the schema again without error.
	s, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestAssert_RoundTripsThroughLookups(t *testing.T) {
	s := openTestStore(t)
	reg := testSchema(t)
	ctx := context.Background()

	txID, err := s.Assert(ctx, reg, []Fact{
		{E: 1, A: 100, V: value.String("Alice")},
		{E: 1, A: 101, V: value.Long(30)},
		{E: 1, A: 102, V: value.Ref(2)},
		{E: 1, A: 102, V: value.Ref(3)},
		{E: 2, A: 100, V: value.String("Bob")},
	})
	require.NoError(t, err)
	assert.Positive(t, txID)

	vals, err := s.ValuesForEntity(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, []value.TypedValue{value.String("Alice")}, vals)

	friends, err := s.ValuesForEntity(ctx, 1, 102)
	require.NoError(t, err)
	assert.Equal(t, []value.TypedValue{value.Ref(2), value.Ref(3)}, friends)

	backs, err := s.EntitiesForValue(ctx, 102, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, backs)

	none, err := s.ValuesForEntity(ctx, 9, 100)
	require.NoError(t, err)
	assert.Empty(t, none)

	// A second assert gets a later transaction id.
	tx2, err := s.Assert(ctx, reg, []Fact{{E: 3, A: 100, V: value.String("Carol")}})
	require.NoError(t, err)
	assert.Greater(t, tx2, txID)
}

func TestAssert_RejectsBadFacts(t *testing.T) {
	s := openTestStore(t)
	reg := testSchema(t)
	ctx := context.Background()

	_, err := s.Assert(ctx, reg, nil)
	assert.Error(t, err)

	_, err = s.Assert(ctx, reg, []Fact{{E: 1, A: 999, V: value.String("x")}})
	assert.ErrorContains(t, err, "unknown attribute")

	_, err = s.Assert(ctx, reg, []Fact{{E: 1, A: 101, V: value.String("thirty")}})
	assert.ErrorContains(t, err, "person/age")

	// A bad fact anywhere in the batch keeps the whole batch out.
	_, err = s.Assert(ctx, reg, []Fact{
		{E: 1, A: 100, V: value.String("Alice")},
		{E: 1, A: 999, V: value.Long(1)},
	})
	require.Error(t, err)
	vals, err := s.ValuesForEntity(ctx, 1, 100)
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestSelect_RunsSynthesizedPlans(t *testing.T) {
	s := openTestStore(t)
	reg := testSchema(t)
	ctx := context.Background()

	_, err := s.Assert(ctx, reg, []Fact{
		{E: 1, A: 100, V: value.String("Alice")},
		{E: 1, A: 101, V: value.Long(30)},
		{E: 2, A: 100, V: value.String("Bob")},
		{E: 2, A: 101, V: value.Long(10)},
	})
	require.NoError(t, err)

	q, err := algebra.Algebrize(&query.AST{
		Find: query.FindRel{Elems: []query.Element{query.Variable("?name"), query.Variable("?age")}},
		Where: []query.Clause{
			query.Pattern{E: query.Variable("?p"), A: query.Ident("person/name"), V: query.Variable("?name")},
			query.Pattern{E: query.Variable("?p"), A: query.Ident("person/age"), V: query.Variable("?age")},
			query.Predicate{Op: query.OpGt, Args: []query.Place{
				query.Variable("?age"),
				query.Constant{V: value.Long(18)},
			}},
		},
	}, reg, nil)
	require.NoError(t, err)
	plan, err := sqlgen.Synthesize(q)
	require.NoError(t, err)

	rows, err := s.Select(ctx, plan)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 2)
	assert.Equal(t, int64(30), rows[0][1])
}

func TestSelect_BadSQLIsExecError(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Select(context.Background(), &sqlgen.Plan{SQL: "SELECT nonsense FROM nowhere"})
	require.Error(t, err)
	assert.True(t, IsExecError(err))

	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "query", ee.Op)
}
