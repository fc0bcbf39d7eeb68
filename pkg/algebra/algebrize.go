// Package algebra binds query variables to types against a schema
// snapshot and compiles find/where ASTs into AlgebraicQueries: column
// constraints, a join graph over shared variables, a projection list,
// and order/limit/offset directives. All validation happens here;
// downstream stages assume a well-formed Query.
package algebra

import (
	"fmt"

	"github.com/quarrydb/quarry/pkg/query"
	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/value"
)

// aggregate result typing. count is defined for every operand type,
// sum/avg only for numerics, min/max for any orderable type.
var aggregateFns = map[string]bool{
	"count": true,
	"sum":   true,
	"avg":   true,
	"min":   true,
	"max":   true,
}

// Algebrize compiles an AST against a schema snapshot and externally
// bound inputs. Input variables act as literal constraints wherever
// they appear; they do not join and are not projectable.
//
// Every failure is detected here, before any text reaches the fact
// store, and is returned as a *CompileError.
func Algebrize(ast *query.AST, provider schema.Provider, inputs map[query.Variable]value.TypedValue) (*Query, error) {
	if ast == nil || ast.Find == nil {
		return nil, errUnsupported("query has no find spec")
	}

	b := &binder{
		provider: provider,
		inputs:   inputs,
		types:    make(map[query.Variable]value.Type),
		cols:     make(map[query.Variable][]Col),
		q:        &Query{},
	}

	// Patterns first: they ground variables. Predicates lower in a
	// second pass once every variable they mention had its chance to
	// ground.
	for _, c := range ast.Where {
		if p, ok := c.(query.Pattern); ok {
			if err := b.bindPattern(p); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range ast.Where {
		switch cl := c.(type) {
		case query.Pattern:
			// handled above
		case query.Predicate:
			if err := b.bindPredicate(cl); err != nil {
				return nil, err
			}
		default:
			return nil, errUnsupported(fmt.Sprintf("unsupported where clause %T", c))
		}
	}

	b.buildJoins()

	if err := b.project(ast.Find); err != nil {
		return nil, err
	}
	if err := b.directives(ast); err != nil {
		return nil, err
	}
	return b.q, nil
}

type binder struct {
	provider schema.Provider
	inputs   map[query.Variable]value.TypedValue

	types    map[query.Variable]value.Type
	cols     map[query.Variable][]Col
	varOrder []query.Variable

	q *Query
}

func (b *binder) bindPattern(p query.Pattern) error {
	attr, err := b.resolveAttribute(p.A)
	if err != nil {
		return err
	}

	plan := PatternPlan{
		Alias: fmt.Sprintf("d%d", len(b.q.Patterns)),
		Attr:  attr,
	}

	switch e := p.E.(type) {
	case query.Variable:
		if in, bound := b.inputs[e]; bound {
			lit, ok := value.Coerce(in, value.TypeRef)
			if !ok {
				return errTypeConflict(e, fmt.Sprintf("input bound to %s cannot serve as an entity id", in.Type()))
			}
			plan.EntityLit = lit
		} else {
			if err := b.bindVar(e, value.TypeRef); err != nil {
				return err
			}
			plan.EntityVar = e
			b.addCol(e, Col{Alias: plan.Alias, Column: "e"})
		}
	case query.Constant:
		lit, ok := value.Coerce(e.V, value.TypeRef)
		if !ok {
			return &CompileError{
				Code:    ErrCodeTypeConflict,
				Message: fmt.Sprintf("entity place literal must be an entity id, got %s", e.V.Type()),
			}
		}
		plan.EntityLit = lit
	case query.Wildcard:
		// unconstrained
	default:
		return errUnsupported(fmt.Sprintf("unsupported entity place %T", p.E))
	}

	switch v := p.V.(type) {
	case query.Variable:
		if in, bound := b.inputs[v]; bound {
			lit, ok := value.Coerce(in, attr.Type)
			if !ok {
				return errTypeConflict(v, fmt.Sprintf("input of type %s does not match attribute %s (%s)", in.Type(), attr.Ident, attr.Type))
			}
			plan.ValueLit = lit
		} else {
			if err := b.bindVar(v, attr.Type); err != nil {
				return err
			}
			plan.ValueVar = v
			b.addCol(v, Col{Alias: plan.Alias, Column: "v"})
		}
	case query.Constant:
		lit, ok := value.Coerce(v.V, attr.Type)
		if !ok {
			return &CompileError{
				Code:    ErrCodeTypeConflict,
				Message: fmt.Sprintf("value literal of type %s is not coercible to attribute type %s", v.V.Type(), attr.Type),
				Ident:   attr.Ident,
			}
		}
		plan.ValueLit = lit
	case query.Wildcard:
		// unconstrained
	default:
		return errUnsupported(fmt.Sprintf("unsupported value place %T", p.V))
	}

	plan.Hint = chooseHint(plan)
	b.q.Patterns = append(b.q.Patterns, plan)
	return nil
}

// resolveAttribute fixes the pattern's attribute. Only constants (ident
// or entity id) and input-bound variables are supported: a free
// variable or wildcard attribute place leaves the value place untyped,
// which this engine does not algebrize.
func (b *binder) resolveAttribute(place query.Place) (schema.Attribute, error) {
	switch a := place.(type) {
	case query.Ident:
		attr, ok := b.provider.AttributeByIdent(string(a))
		if !ok {
			return schema.Attribute{}, errAttributeNotFound(string(a))
		}
		return attr, nil
	case query.Constant:
		id, ok := entityID(a.V)
		if !ok {
			return schema.Attribute{}, errUnsupported(fmt.Sprintf("attribute place literal must be an ident or entity id, got %s", a.V.Type()))
		}
		attr, found := b.provider.AttributeByID(id)
		if !found {
			return schema.Attribute{}, errAttributeNotFound(fmt.Sprintf("#%d", id))
		}
		return attr, nil
	case query.Variable:
		in, bound := b.inputs[a]
		if !bound {
			return schema.Attribute{}, errUnsupported("attribute place must be a constant or an input-bound variable")
		}
		id, ok := entityID(in)
		if !ok {
			return schema.Attribute{}, errTypeConflict(a, fmt.Sprintf("input bound to %s cannot name an attribute", in.Type()))
		}
		attr, found := b.provider.AttributeByID(id)
		if !found {
			return schema.Attribute{}, errAttributeNotFound(fmt.Sprintf("#%d", id))
		}
		return attr, nil
	default:
		return schema.Attribute{}, errUnsupported("attribute place must be a constant or an input-bound variable")
	}
}

func entityID(v value.TypedValue) (int64, bool) {
	switch n := v.(type) {
	case value.Ref:
		return int64(n), true
	case value.Long:
		return int64(n), true
	default:
		return 0, false
	}
}

// chooseHint picks the index ordering from which columns are already
// literal-constrained. Entity-first when the entity is pinned,
// value-first when a reference value is pinned, attribute-first
// otherwise.
func chooseHint(p PatternPlan) IndexHint {
	if p.EntityLit != nil {
		return HintEAVT
	}
	if p.ValueLit != nil && p.Attr.Type == value.TypeRef {
		return HintVAET
	}
	return HintAEVT
}

func (b *binder) bindVar(v query.Variable, t value.Type) error {
	if prev, ok := b.types[v]; ok {
		if prev != t {
			return errTypeConflict(v, fmt.Sprintf("bound as %s in one clause and %s in another", prev, t))
		}
		return nil
	}
	b.types[v] = t
	b.varOrder = append(b.varOrder, v)
	return nil
}

func (b *binder) addCol(v query.Variable, c Col) {
	b.cols[v] = append(b.cols[v], c)
}

// buildJoins records the join graph: one JoinSet per variable bound by
// two or more columns, in first-binding order for determinism.
func (b *binder) buildJoins() {
	for _, v := range b.varOrder {
		cs := b.cols[v]
		if len(cs) < 2 {
			continue
		}
		b.q.Joins = append(b.q.Joins, JoinSet{Var: v, Cols: cs})
	}
}

func (b *binder) bindPredicate(p query.Predicate) error {
	if len(p.Args) != 2 {
		return &CompileError{
			Code:    ErrCodeInvalidPredicate,
			Message: fmt.Sprintf("predicate %s takes exactly two operands, got %d", p.Op, len(p.Args)),
		}
	}

	left, err := b.operand(p.Args[0])
	if err != nil {
		return err
	}
	right, err := b.operand(p.Args[1])
	if err != nil {
		return err
	}

	if !comparableTypes(left.Type, right.Type) {
		return &CompileError{
			Code:    ErrCodeTypeConflict,
			Message: fmt.Sprintf("predicate %s compares %s with %s", p.Op, left.Type, right.Type),
		}
	}
	if ordering(p.Op) {
		if !left.Type.Orderable() || !right.Type.Orderable() {
			return &CompileError{
				Code:    ErrCodeInvalidPredicate,
				Message: fmt.Sprintf("operator %s requires orderable operands, got %s and %s", p.Op, left.Type, right.Type),
			}
		}
	}

	b.q.Filters = append(b.q.Filters, Filter{Op: p.Op, Left: left, Right: right})
	return nil
}

func (b *binder) operand(pl query.Place) (Operand, error) {
	switch o := pl.(type) {
	case query.Variable:
		if in, bound := b.inputs[o]; bound {
			return Operand{Lit: in, Type: in.Type()}, nil
		}
		cs := b.cols[o]
		if len(cs) == 0 {
			return Operand{}, errUnbound(o, "predicate operand")
		}
		return Operand{Col: &cs[0], Type: b.types[o]}, nil
	case query.Constant:
		return Operand{Lit: o.V, Type: o.V.Type()}, nil
	default:
		return Operand{}, &CompileError{
			Code:    ErrCodeInvalidPredicate,
			Message: fmt.Sprintf("predicate operand must be a variable or constant, got %T", pl),
		}
	}
}

func comparableTypes(a, c value.Type) bool {
	if a == c {
		return true
	}
	return a.Numeric() && c.Numeric()
}

func ordering(op query.PredOp) bool {
	switch op {
	case query.OpLt, query.OpGt, query.OpLe, query.OpGe:
		return true
	default:
		return false
	}
}

func (b *binder) project(spec query.FindSpec) error {
	var elems []query.Element
	switch fs := spec.(type) {
	case query.FindScalar:
		b.q.Shape = ShapeScalar
		elems = []query.Element{fs.Elem}
	case query.FindColl:
		b.q.Shape = ShapeColl
		elems = []query.Element{fs.Elem}
	case query.FindTuple:
		b.q.Shape = ShapeTuple
		elems = fs.Elems
	case query.FindRel:
		b.q.Shape = ShapeRel
		elems = fs.Elems
	default:
		return errUnsupported(fmt.Sprintf("unsupported find spec %T", spec))
	}
	if len(elems) == 0 {
		return &CompileError{Code: ErrCodeInvalidProjection, Message: "find spec projects nothing"}
	}

	hasAggregate := false
	for _, el := range elems {
		switch e := el.(type) {
		case query.Variable:
			proj, err := b.varProjection(e)
			if err != nil {
				return err
			}
			b.q.Projection = append(b.q.Projection, proj)
		case query.Aggregate:
			proj, err := b.aggProjection(e)
			if err != nil {
				return err
			}
			hasAggregate = true
			b.q.Projection = append(b.q.Projection, proj)
		default:
			return &CompileError{
				Code:    ErrCodeInvalidProjection,
				Message: fmt.Sprintf("unsupported find element %T", el),
			}
		}
	}

	// Implicit grouping: every plain projected column becomes part of
	// the group key once any aggregate is present.
	if hasAggregate {
		for _, p := range b.q.Projection {
			if p.Aggregate == "" {
				b.q.GroupBy = append(b.q.GroupBy, p.Col)
			}
		}
	}
	return nil
}

func (b *binder) varProjection(v query.Variable) (Projection, error) {
	cs := b.cols[v]
	if len(cs) == 0 {
		return Projection{}, errUnbound(v, "projection")
	}
	return Projection{
		Name: v.Name(),
		Var:  v,
		Col:  cs[0],
		Type: b.types[v],
	}, nil
}

func (b *binder) aggProjection(a query.Aggregate) (Projection, error) {
	if !aggregateFns[a.Fn] {
		return Projection{}, &CompileError{
			Code:    ErrCodeInvalidAggregate,
			Message: fmt.Sprintf("unknown aggregate function %q", a.Fn),
		}
	}
	cs := b.cols[a.Arg]
	if len(cs) == 0 {
		return Projection{}, errUnbound(a.Arg, "aggregate operand")
	}
	t := b.types[a.Arg]

	var out value.Type
	switch a.Fn {
	case "count":
		out = value.TypeLong
	case "avg":
		if !t.Numeric() {
			return Projection{}, &CompileError{
				Code:    ErrCodeInvalidAggregate,
				Message: fmt.Sprintf("avg requires a numeric operand, got %s", t),
				Var:     a.Arg,
			}
		}
		out = value.TypeDouble
	case "sum":
		if !t.Numeric() {
			return Projection{}, &CompileError{
				Code:    ErrCodeInvalidAggregate,
				Message: fmt.Sprintf("sum requires a numeric operand, got %s", t),
				Var:     a.Arg,
			}
		}
		out = t
	default: // min, max
		if !t.Orderable() {
			return Projection{}, &CompileError{
				Code:    ErrCodeInvalidAggregate,
				Message: fmt.Sprintf("%s requires an orderable operand, got %s", a.Fn, t),
				Var:     a.Arg,
			}
		}
		out = t
	}

	return Projection{
		Name:      a.Fn + "_" + a.Arg.Name(),
		Var:       a.Arg,
		Col:       cs[0],
		Type:      out,
		Aggregate: a.Fn,
	}, nil
}

func (b *binder) directives(ast *query.AST) error {
	for _, o := range ast.Order {
		idx := -1
		// Prefer the plain projection of the variable; fall back to an
		// aggregate over it.
		for i, p := range b.q.Projection {
			if p.Aggregate == "" && p.Var == o.Var {
				idx = i
				break
			}
		}
		if idx < 0 {
			for i, p := range b.q.Projection {
				if p.Var == o.Var {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			return &CompileError{
				Code:    ErrCodeInvalidProjection,
				Message: "order-by variable absent from projection",
				Var:     o.Var,
			}
		}
		b.q.Order = append(b.q.Order, OrderTerm{Index: idx, Desc: o.Desc})
	}

	if ast.Limit < 0 {
		return &CompileError{Code: ErrCodeInvalidDirective, Message: fmt.Sprintf("limit must be non-negative, got %d", ast.Limit)}
	}
	if ast.Offset < 0 {
		return &CompileError{Code: ErrCodeInvalidDirective, Message: fmt.Sprintf("offset must be non-negative, got %d", ast.Offset)}
	}
	b.q.Limit = ast.Limit
	b.q.Offset = ast.Offset
	return nil
}
