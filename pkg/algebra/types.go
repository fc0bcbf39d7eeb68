package algebra

import (
	"github.com/quarrydb/quarry/pkg/query"
	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/value"
)

// Shape is the result shape dictated by the find-spec variant.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeTuple
	ShapeColl
	ShapeRel
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeTuple:
		return "tuple"
	case ShapeColl:
		return "coll"
	default:
		return "rel"
	}
}

// IndexHint names one of the fact store's three access orderings. The
// hint is advisory: the synthesizer derives it from which columns are
// literal-constrained, and the store may ignore it.
type IndexHint int

const (
	// HintAEVT is attribute-first, the default when only the attribute
	// is constrained.
	HintAEVT IndexHint = iota

	// HintEAVT is entity-first, preferred when the entity column is
	// literal-constrained.
	HintEAVT

	// HintVAET is value-first, preferred when a reference value is
	// literal-constrained.
	HintVAET
)

// String returns the ordering name.
func (h IndexHint) String() string {
	switch h {
	case HintEAVT:
		return "eavt"
	case HintVAET:
		return "vaet"
	default:
		return "aevt"
	}
}

// Col names one column of one pattern's storage-relation alias.
type Col struct {
	Alias  string // e.g. "d0"
	Column string // "e" or "v"
}

// String returns the qualified column, e.g. "d0.v".
func (c Col) String() string { return c.Alias + "." + c.Column }

// PatternPlan is the algebrized form of one fact pattern: a relation
// alias plus the literal constraints and variable bindings on its
// columns. The attribute id is always a literal constraint, bound as a
// parameter so generated plans stay reusable across attributes of the
// same shape.
type PatternPlan struct {
	Alias string
	Attr  schema.Attribute

	// EntityLit and ValueLit are literal column constraints, nil when
	// the corresponding place is a variable or wildcard.
	EntityLit value.TypedValue
	ValueLit  value.TypedValue

	// EntityVar and ValueVar are the variables bound to the columns,
	// "" when the place is a literal or wildcard.
	EntityVar query.Variable
	ValueVar  query.Variable

	Hint IndexHint
}

// JoinSet records every (alias, column) pair a shared variable binds.
// All columns in a set must be equal; Cols[0] is the canonical column
// used for projection and filters.
type JoinSet struct {
	Var  query.Variable
	Cols []Col
}

// Operand is one side of a lowered predicate: either a storage column
// (Col non-nil) or a literal.
type Operand struct {
	Col  *Col
	Lit  value.TypedValue
	Type value.Type
}

// Filter is a lowered predicate clause over grounded operands.
type Filter struct {
	Op    query.PredOp
	Left  Operand
	Right Operand
}

// Projection describes one output column: its source column, its
// declared value type (which drives cell decoding), and the aggregate
// function applied, if any.
type Projection struct {
	Name      string // result column name, e.g. "age" or "count_age"
	Var       query.Variable
	Col       Col
	Type      value.Type
	Aggregate string // "" for a plain variable
}

// OrderTerm orders results by a projected column.
type OrderTerm struct {
	Index int // index into Projection
	Desc  bool
}

// Query is the algebrized query: everything the relational synthesizer
// needs, fully validated. The algebrizer never emits a partially valid
// Query, and identical (AST, schema, inputs) always produce a
// structurally identical one.
type Query struct {
	Patterns   []PatternPlan
	Joins      []JoinSet // variables bound by two or more columns
	Filters    []Filter
	Projection []Projection
	Shape      Shape
	GroupBy    []Col // non-empty only when aggregates are projected
	Order      []OrderTerm
	Limit      int // 0 = none
	Offset     int // 0 = none
}
