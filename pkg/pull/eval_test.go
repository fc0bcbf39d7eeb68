package pull

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/value"
)

// fakeSource serves point lookups from in-memory maps, keyed the way
// the store indexes them.
type fakeSource struct {
	forward  map[[2]int64][]value.TypedValue // (entity, attribute)
	backward map[[2]int64][]int64            // (attribute, reference)
}

func (f *fakeSource) ValuesForEntity(_ context.Context, e, a int64) ([]value.TypedValue, error) {
	return f.forward[[2]int64{e, a}], nil
}

func (f *fakeSource) EntitiesForValue(_ context.Context, a, ref int64) ([]int64, error) {
	return f.backward[[2]int64{a, ref}], nil
}

func pullSchema(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.Attribute{ID: 100, Ident: "person/name", Type: value.TypeString},
		schema.Attribute{ID: 101, Ident: "person/age", Type: value.TypeLong},
		schema.Attribute{ID: 102, Ident: "person/friend", Type: value.TypeRef, Cardinality: schema.Many},
		schema.Attribute{ID: 200, Ident: "car/owner", Type: value.TypeRef},
		schema.Attribute{ID: 201, Ident: "car/model", Type: value.TypeString},
	)
	require.NoError(t, err)
	return reg
}

// Two people who are friends with each other, each owning cars.
func friendsSource() *fakeSource {
	return &fakeSource{
		forward: map[[2]int64][]value.TypedValue{
			{1, 100}: {value.String("Alice")},
			{1, 101}: {value.Long(30)},
			{1, 102}: {value.Ref(2)},
			{2, 100}: {value.String("Bob")},
			{2, 102}: {value.Ref(1)},
			{10, 201}: {value.String("2CV")},
			{10, 200}: {value.Ref(1)},
			{11, 201}: {value.String("DS")},
			{11, 200}: {value.Ref(1)},
		},
		backward: map[[2]int64][]int64{
			{200, 1}: {10, 11},
			{102, 1}: {2},
			{102, 2}: {1},
		},
	}
}

func TestEvaluate_ForwardSelectors(t *testing.T) {
	p := &Pattern{Selectors: []Selector{
		{Ident: "person/name"},
		{Ident: "person/age"},
		{Ident: "person/friend"},
	}}
	out, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 1, p, Options{})
	require.NoError(t, err)

	name, ok := out.Get("person/name")
	require.True(t, ok)
	assert.Equal(t, value.Scalar{Value: value.String("Alice")}, name)

	age, ok := out.Get("person/age")
	require.True(t, ok)
	assert.Equal(t, value.Scalar{Value: value.Long(30)}, age)

	// A cardinality-many attribute is a list even with one value, and an
	// unexpanded reference stays a bare id.
	friends, ok := out.Get("person/friend")
	require.True(t, ok)
	assert.Equal(t, value.List{value.Scalar{Value: value.Ref(2)}}, friends)

	// Entries follow selector order.
	var keys []string
	for _, e := range out.Entries() {
		keys = append(keys, e.Ident)
	}
	assert.Equal(t, []string{"person/name", "person/age", "person/friend"}, keys)
}

func TestEvaluate_AbsentAttributeIsAbsent(t *testing.T) {
	p := &Pattern{Selectors: []Selector{
		{Ident: "person/name"},
		{Ident: "person/age"},
	}}
	out, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 2, p, Options{})
	require.NoError(t, err)

	// Bob has no age; the key is simply missing.
	_, ok := out.Get("person/age")
	assert.False(t, ok)
	assert.Equal(t, 1, out.Len())
}

func TestEvaluate_MandatoryAttributeMissing(t *testing.T) {
	p := &Pattern{Selectors: []Selector{
		{Ident: "person/age", Mandatory: true},
	}}
	_, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 2, p, Options{})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeMissingAttribute))
}

func TestEvaluate_NestedPattern(t *testing.T) {
	p := &Pattern{Selectors: []Selector{
		{Ident: "person/name"},
		{Ident: "person/friend", Nested: &Pattern{Selectors: []Selector{
			{Ident: "person/name"},
		}}},
	}}
	out, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 1, p, Options{})
	require.NoError(t, err)

	friends, ok := out.Get("person/friend")
	require.True(t, ok)
	list, ok := friends.(value.List)
	require.True(t, ok)
	require.Len(t, list, 1)

	bob, ok := list[0].(*value.StructuredMap)
	require.True(t, ok)
	name, ok := bob.Get("person/name")
	require.True(t, ok)
	assert.Equal(t, value.Scalar{Value: value.String("Bob")}, name)
}

func TestEvaluate_BackwardSelector(t *testing.T) {
	p := &Pattern{Selectors: []Selector{
		{Ident: "person/name"},
		{Ident: "car/owner", Reverse: true, Nested: &Pattern{Selectors: []Selector{
			{Ident: "car/model"},
		}}},
	}}
	out, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 1, p, Options{})
	require.NoError(t, err)

	cars, ok := out.Get("car/_owner")
	require.True(t, ok, "backward results key under the underscored ident")
	list, ok := cars.(value.List)
	require.True(t, ok)
	require.Len(t, list, 2)

	models := make([]value.Binding, 0, 2)
	for _, b := range list {
		m, ok := b.(*value.StructuredMap)
		require.True(t, ok)
		model, ok := m.Get("car/model")
		require.True(t, ok)
		models = append(models, model)
	}
	assert.Equal(t, []value.Binding{
		value.Scalar{Value: value.String("2CV")},
		value.Scalar{Value: value.String("DS")},
	}, models)
}

func TestEvaluate_BackwardCardinalityOne(t *testing.T) {
	// Alice owns two cars: forcing the backward selector to one must
	// fail rather than pick either.
	p := &Pattern{Selectors: []Selector{
		{Ident: "car/owner", Reverse: true, Card: CardOne},
	}}
	_, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 1, p, Options{})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeCardinalityViolation))

	// Exactly one referencing entity under CardOne yields a bare scalar.
	src := friendsSource()
	src.backward[[2]int64{200, 1}] = []int64{10}
	out, err := Evaluate(context.Background(), src, pullSchema(t), 1, p, Options{})
	require.NoError(t, err)
	owner, ok := out.Get("car/_owner")
	require.True(t, ok)
	assert.Equal(t, value.Scalar{Value: value.Ref(10)}, owner)
}

func TestEvaluate_ForwardCardinalityOne(t *testing.T) {
	// Give Alice a second friend, then force the selector to one: the
	// evaluator must fail rather than keep the first value.
	src := friendsSource()
	src.forward[[2]int64{1, 102}] = []value.TypedValue{value.Ref(2), value.Ref(3)}

	p := &Pattern{Selectors: []Selector{
		{Ident: "person/friend", Card: CardOne},
	}}
	_, err := Evaluate(context.Background(), src, pullSchema(t), 1, p, Options{})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeCardinalityViolation))

	// Same with a nested pattern: the violation is detected before any
	// referenced entity is expanded or marked visited.
	nested := &Pattern{Selectors: []Selector{
		{Ident: "person/friend", Card: CardOne, Nested: &Pattern{Selectors: []Selector{
			{Ident: "person/name"},
		}}},
	}}
	_, err = Evaluate(context.Background(), src, pullSchema(t), 1, nested, Options{})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeCardinalityViolation))

	// Exactly one value under CardOne yields a bare scalar, not a list.
	out, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 1, p, Options{})
	require.NoError(t, err)
	friend, ok := out.Get("person/friend")
	require.True(t, ok)
	assert.Equal(t, value.Scalar{Value: value.Ref(2)}, friend)
}

func TestEvaluate_RecursionTerminatesOnCycles(t *testing.T) {
	// Alice and Bob are mutual friends. The second visit of Alice under
	// the same pattern node collapses to a bare id.
	p := &Pattern{Selectors: []Selector{
		{Ident: "person/name"},
		{Ident: "person/friend", Recur: true},
	}}
	out, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 1, p, Options{})
	require.NoError(t, err)

	friends, _ := out.Get("person/friend")
	list := friends.(value.List)
	require.Len(t, list, 1)
	bob := list[0].(*value.StructuredMap)

	name, _ := bob.Get("person/name")
	assert.Equal(t, value.Scalar{Value: value.String("Bob")}, name)

	back, _ := bob.Get("person/friend")
	assert.Equal(t, value.List{value.Scalar{Value: value.Ref(1)}}, back)
}

func TestEvaluate_MaxDepthCutsToBareIDs(t *testing.T) {
	// Chain 1 -> 2 -> 3 with no cycle.
	src := &fakeSource{forward: map[[2]int64][]value.TypedValue{
		{1, 100}: {value.String("a")},
		{1, 102}: {value.Ref(2)},
		{2, 100}: {value.String("b")},
		{2, 102}: {value.Ref(3)},
		{3, 100}: {value.String("c")},
	}}
	p := &Pattern{Selectors: []Selector{
		{Ident: "person/name"},
		{Ident: "person/friend", Recur: true},
	}}

	out, err := Evaluate(context.Background(), src, pullSchema(t), 1, p, Options{MaxDepth: 1})
	require.NoError(t, err)

	friends, _ := out.Get("person/friend")
	nested := friends.(value.List)[0].(*value.StructuredMap)
	name, _ := nested.Get("person/name")
	assert.Equal(t, value.Scalar{Value: value.String("b")}, name)

	// One level down the bound is reached; 3 stays a bare id.
	deeper, _ := nested.Get("person/friend")
	assert.Equal(t, value.List{value.Scalar{Value: value.Ref(3)}}, deeper)
}

func TestEvaluate_Idempotent(t *testing.T) {
	p := &Pattern{Selectors: []Selector{
		{Ident: "person/name"},
		{Ident: "person/friend", Recur: true},
		{Ident: "car/owner", Reverse: true},
	}}
	a, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 1, p, Options{})
	require.NoError(t, err)
	b, err := Evaluate(context.Background(), friendsSource(), pullSchema(t), 1, p, Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluate_PatternValidation(t *testing.T) {
	s := pullSchema(t)
	ctx := context.Background()
	src := friendsSource()

	testCases := []struct {
		name string
		p    *Pattern
		code ErrorCode
	}{
		{"empty pattern", &Pattern{}, ErrCodeInvalidPattern},
		{"unknown attribute", &Pattern{Selectors: []Selector{{Ident: "person/height"}}}, ErrCodeAttributeNotFound},
		{"backward on non-ref", &Pattern{Selectors: []Selector{{Ident: "person/name", Reverse: true}}}, ErrCodeInvalidPattern},
		{"recursion on non-ref", &Pattern{Selectors: []Selector{{Ident: "person/name", Recur: true}}}, ErrCodeInvalidPattern},
		{
			"recursive and nested",
			&Pattern{Selectors: []Selector{{
				Ident: "person/friend",
				Recur: true,
				Nested: &Pattern{Selectors: []Selector{{Ident: "person/name"}}},
			}}},
			ErrCodeInvalidPattern,
		},
		{"nested on non-ref", &Pattern{Selectors: []Selector{{
			Ident:  "person/age",
			Nested: &Pattern{Selectors: []Selector{{Ident: "person/name"}}},
		}}}, ErrCodeInvalidPattern},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate(ctx, src, s, 1, tc.p, Options{})
			require.Error(t, err)
			assert.True(t, IsPullError(err))
			assert.True(t, HasCode(err, tc.code), "got %v", err)
		})
	}
}
