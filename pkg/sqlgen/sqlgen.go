// Package sqlgen lowers an AlgebraicQuery into parameterized SQL over
// the 5-column fact relation. Values are never interpolated into the
// text: attribute ids and literals always travel as bind parameters so
// plans stay reusable. Index-path hints ride on the Plan as advisory
// metadata, never inside the SQL itself, since the store is free to
// ignore them.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/pkg/algebra"
	"github.com/quarrydb/quarry/pkg/query"
	"github.com/quarrydb/quarry/pkg/value"
)

// factRelation is the name of the fact store's datom relation.
const factRelation = "datoms"

// Plan is the synthesizer output: query text, ordered bind values, and
// per-pattern index hints.
type Plan struct {
	SQL   string
	Args  []any
	Hints []PatternHint
}

// PatternHint suggests an access ordering for one pattern alias.
type PatternHint struct {
	Alias string
	Hint  algebra.IndexHint
}

// Synthesize lowers q into a Plan. The output column list follows the
// projection order; order/limit/offset directives are appended
// verbatim. q must come from the algebrizer: no validation is repeated
// here beyond structural sanity.
func Synthesize(q *algebra.Query) (*Plan, error) {
	if q == nil || len(q.Patterns) == 0 {
		return nil, fmt.Errorf("cannot synthesize an empty algebraic query")
	}

	g := &generator{q: q, aliasIdx: make(map[string]int, len(q.Patterns))}
	for i, p := range q.Patterns {
		g.aliasIdx[p.Alias] = i
	}
	return g.run()
}

type generator struct {
	q        *algebra.Query
	aliasIdx map[string]int
	args     []any
}

func (g *generator) run() (*Plan, error) {
	selectClause, err := g.selectList()
	if err != nil {
		return nil, err
	}

	joinConds, whereJoins := g.joinConditions()

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectClause)
	sb.WriteString(" FROM ")
	sb.WriteString(factRelation)
	sb.WriteString(" AS ")
	sb.WriteString(g.q.Patterns[0].Alias)

	for _, p := range g.q.Patterns[1:] {
		sb.WriteString(" JOIN ")
		sb.WriteString(factRelation)
		sb.WriteString(" AS ")
		sb.WriteString(p.Alias)
		sb.WriteString(" ON ")
		if conds := joinConds[p.Alias]; len(conds) > 0 {
			sb.WriteString(strings.Join(conds, " AND "))
		} else {
			sb.WriteString("1 = 1")
		}
	}

	where, err := g.whereConditions(whereJoins)
	if err != nil {
		return nil, err
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	if len(g.q.GroupBy) > 0 {
		cols := make([]string, len(g.q.GroupBy))
		for i, c := range g.q.GroupBy {
			cols[i] = c.String()
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(cols, ", "))
	}

	if len(g.q.Order) > 0 {
		terms := make([]string, len(g.q.Order))
		for i, o := range g.q.Order {
			dir := " ASC"
			if o.Desc {
				dir = " DESC"
			}
			terms[i] = projExpr(g.q.Projection[o.Index]) + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	switch {
	case g.q.Limit > 0 && g.q.Offset > 0:
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", g.q.Limit, g.q.Offset)
	case g.q.Limit > 0:
		fmt.Fprintf(&sb, " LIMIT %d", g.q.Limit)
	case g.q.Offset > 0:
		// SQLite requires a LIMIT before OFFSET; -1 means unbounded.
		fmt.Fprintf(&sb, " LIMIT -1 OFFSET %d", g.q.Offset)
	}

	hints := make([]PatternHint, len(g.q.Patterns))
	for i, p := range g.q.Patterns {
		hints[i] = PatternHint{Alias: p.Alias, Hint: p.Hint}
	}

	return &Plan{SQL: sb.String(), Args: g.args, Hints: hints}, nil
}

func (g *generator) selectList() (string, error) {
	parts := make([]string, len(g.q.Projection))
	for i, p := range g.q.Projection {
		parts[i] = projExpr(p) + " AS " + p.Name
	}
	return strings.Join(parts, ", "), nil
}

func projExpr(p algebra.Projection) string {
	if p.Aggregate != "" {
		return p.Aggregate + "(" + p.Col.String() + ")"
	}
	return p.Col.String()
}

// joinConditions distributes the join graph's column equalities. Each
// equality attaches to the later alias's ON clause; equalities within
// the first pattern fall through to WHERE.
func (g *generator) joinConditions() (map[string][]string, []string) {
	onConds := make(map[string][]string)
	var whereJoins []string

	for _, js := range g.q.Joins {
		canonical := js.Cols[0]
		for _, c := range js.Cols[1:] {
			cond := c.String() + " = " + canonical.String()
			attach := c.Alias
			if g.aliasIdx[canonical.Alias] > g.aliasIdx[attach] {
				attach = canonical.Alias
			}
			if g.aliasIdx[attach] == 0 {
				whereJoins = append(whereJoins, cond)
				continue
			}
			onConds[attach] = append(onConds[attach], cond)
		}
	}
	return onConds, whereJoins
}

func (g *generator) whereConditions(whereJoins []string) ([]string, error) {
	var conds []string

	for _, p := range g.q.Patterns {
		// The attribute id is always a bound parameter, never inlined,
		// to keep plans reusable across attributes.
		conds = append(conds, p.Alias+".a = ?")
		g.args = append(g.args, p.Attr.ID)

		conds = append(conds, p.Alias+".added = 1")

		if p.EntityLit != nil {
			arg, err := value.SQLParam(p.EntityLit)
			if err != nil {
				return nil, fmt.Errorf("entity literal for %s: %w", p.Alias, err)
			}
			conds = append(conds, p.Alias+".e = ?")
			g.args = append(g.args, arg)
		}
		if p.ValueLit != nil {
			arg, err := value.SQLParam(p.ValueLit)
			if err != nil {
				return nil, fmt.Errorf("value literal for %s: %w", p.Alias, err)
			}
			conds = append(conds, p.Alias+".v = ?")
			g.args = append(g.args, arg)
		}
	}

	conds = append(conds, whereJoins...)

	for _, f := range g.q.Filters {
		left, err := g.operandSQL(f.Left)
		if err != nil {
			return nil, err
		}
		right, err := g.operandSQL(f.Right)
		if err != nil {
			return nil, err
		}
		conds = append(conds, left+" "+opSQL(f.Op)+" "+right)
	}

	return conds, nil
}

// operandSQL renders a filter operand. Column operands get an explicit
// cast to the attribute's storage class, so comparisons behave the same
// regardless of the column's dynamic typing.
func (g *generator) operandSQL(o algebra.Operand) (string, error) {
	if o.Col != nil {
		return "CAST(" + o.Col.String() + " AS " + storageClass(o.Type) + ")", nil
	}
	arg, err := value.SQLParam(o.Lit)
	if err != nil {
		return "", fmt.Errorf("filter literal: %w", err)
	}
	g.args = append(g.args, arg)
	return "?", nil
}

// storageClass maps a value type to its SQLite storage class.
func storageClass(t value.Type) string {
	switch t {
	case value.TypeDouble:
		return "REAL"
	case value.TypeString, value.TypeKeyword, value.TypeUUID:
		return "TEXT"
	default:
		return "INTEGER"
	}
}

func opSQL(op query.PredOp) string {
	switch op {
	case query.OpEq:
		return "="
	case query.OpNe:
		return "<>"
	case query.OpLt:
		return "<"
	case query.OpGt:
		return ">"
	case query.OpLe:
		return "<="
	case query.OpGe:
		return ">="
	default:
		return "="
	}
}
