package query

import (
	"fmt"

	"github.com/quarrydb/quarry/pkg/value"
)

// Variable is a named query placeholder, written with a leading "?"
// (e.g. "?person"). A variable occupies result cells, pattern places,
// and predicate operands.
type Variable string

func (Variable) findElement() {}
func (Variable) place()       {}

// Name returns the variable without its "?" sigil, used for result
// column naming.
func (v Variable) Name() string {
	if len(v) > 0 && v[0] == '?' {
		return string(v[1:])
	}
	return string(v)
}

// FindSpec is a sealed interface over the four find-spec variants. The
// variant dictates the result shape, a caller-visible contract:
//
//	FindScalar  [:find ?x .]       -> at most one value
//	FindColl    [:find [?x ...]]   -> list of single values
//	FindTuple   [:find [?x ?y]]    -> at most one fixed-width row
//	FindRel     [:find ?x ?y]      -> list of fixed-width rows
type FindSpec interface {
	findSpec() // Sealed - only types in this package implement it
}

// FindScalar projects a single element of the first row.
type FindScalar struct {
	Elem Element
}

func (FindScalar) findSpec() {}

// FindColl projects a single element of every row.
type FindColl struct {
	Elem Element
}

func (FindColl) findSpec() {}

// FindTuple projects a fixed-width first row.
type FindTuple struct {
	Elems []Element
}

func (FindTuple) findSpec() {}

// FindRel projects fixed-width rows, the default shape.
type FindRel struct {
	Elems []Element
}

func (FindRel) findSpec() {}

// Element is a sealed interface over find-spec elements: a plain
// Variable or an Aggregate application.
type Element interface {
	findElement() // Sealed - only types in this package implement it
}

// Aggregate applies an aggregation function to one variable, e.g.
// (count ?x). Grouping is implicit over the remaining projected
// variables.
type Aggregate struct {
	Fn  string
	Arg Variable
}

func (Aggregate) findElement() {}

// Clause is a sealed interface over where-clauses.
type Clause interface {
	whereClause() // Sealed - only types in this package implement it
}

// Pattern is a fact pattern [e a v]. Shared variables across patterns
// express equality joins.
type Pattern struct {
	E Place
	A Place
	V Place
}

func (Pattern) whereClause() {}

// Predicate applies a comparison operator to two operands, each a
// variable or a constant. Its variables must be grounded by patterns.
type Predicate struct {
	Op   PredOp
	Args []Place
}

func (Predicate) whereClause() {}

// Place is a sealed interface over pattern places and predicate
// operands: Variable, Constant, Ident (attribute position only), or
// Wildcard.
type Place interface {
	place() // Sealed - only types in this package implement it
}

// Constant is a literal typed value in a place.
type Constant struct {
	V value.TypedValue
}

func (Constant) place() {}

// Ident names an attribute in a pattern's attribute place, resolved
// against the schema at compile time.
type Ident string

func (Ident) place() {}

// Wildcard matches anything and binds nothing. Written "_".
type Wildcard struct{}

func (Wildcard) place() {}

// PredOp is a predicate comparison operator.
type PredOp int

const (
	OpEq PredOp = iota
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
)

// String returns the surface spelling of the operator.
func (op PredOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	default:
		return fmt.Sprintf("PredOp(%d)", int(op))
	}
}

// ParsePredOp parses a surface operator spelling.
func ParsePredOp(s string) (PredOp, error) {
	switch s {
	case "=":
		return OpEq, nil
	case "!=":
		return OpNe, nil
	case "<":
		return OpLt, nil
	case ">":
		return OpGt, nil
	case "<=":
		return OpLe, nil
	case ">=":
		return OpGe, nil
	default:
		return 0, fmt.Errorf("unknown predicate operator %q", s)
	}
}

// Order is one order-by directive. The variable must be projected.
type Order struct {
	Var  Variable
	Desc bool
}

// AST is a complete parsed query: a find-spec, where-clauses, and
// optional order/limit/offset directives. Limit and Offset of 0 mean
// "none".
type AST struct {
	Find   FindSpec
	Where  []Clause
	Order  []Order
	Limit  int
	Offset int
}
