package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/quarrydb/quarry/pkg/factstore"
	"github.com/quarrydb/quarry/pkg/pull"
	"github.com/quarrydb/quarry/pkg/query"
	"github.com/quarrydb/quarry/pkg/quarry"
	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/value"
)

// queryDoc is the YAML surface of a find/where query:
//
//	find:
//	  rel: ["?name", "?age"]        # or scalar/coll/tuple
//	where:
//	  - pattern: ["?p", person/name, "?name"]
//	  - pred: [">", "?age", 18]
//	order:
//	  - var: "?age"
//	    desc: true
//	limit: 10
//	inputs:
//	  "?p": 100
type queryDoc struct {
	Find   map[string]any `yaml:"find"`
	Where  []whereDoc     `yaml:"where"`
	Order  []orderDoc     `yaml:"order,omitempty"`
	Limit  int            `yaml:"limit,omitempty"`
	Offset int            `yaml:"offset,omitempty"`
	Inputs map[string]any `yaml:"inputs,omitempty"`
}

type whereDoc struct {
	Pattern []any `yaml:"pattern,omitempty"`
	Pred    []any `yaml:"pred,omitempty"`
}

type orderDoc struct {
	Var  string `yaml:"var"`
	Desc bool   `yaml:"desc,omitempty"`
}

// LoadQueryFile reads a query document and its input bindings.
func LoadQueryFile(path string) (*query.AST, quarry.Inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read query: %w", err)
	}
	var doc queryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode query: %w", err)
	}

	find, err := parseFind(doc.Find)
	if err != nil {
		return nil, nil, err
	}

	ast := &query.AST{Find: find, Limit: doc.Limit, Offset: doc.Offset}
	for i, w := range doc.Where {
		switch {
		case len(w.Pattern) > 0:
			p, err := parsePattern(w.Pattern)
			if err != nil {
				return nil, nil, fmt.Errorf("where[%d]: %w", i, err)
			}
			ast.Where = append(ast.Where, p)
		case len(w.Pred) > 0:
			p, err := parsePred(w.Pred)
			if err != nil {
				return nil, nil, fmt.Errorf("where[%d]: %w", i, err)
			}
			ast.Where = append(ast.Where, p)
		default:
			return nil, nil, fmt.Errorf("where[%d]: want pattern or pred", i)
		}
	}
	for _, o := range doc.Order {
		ast.Order = append(ast.Order, query.Order{Var: query.Variable(o.Var), Desc: o.Desc})
	}

	inputs := make(quarry.Inputs, len(doc.Inputs))
	for name, raw := range doc.Inputs {
		tv, err := literalValue(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("input %s: %w", name, err)
		}
		inputs[query.Variable(name)] = tv
	}
	return ast, inputs, nil
}

func parseFind(find map[string]any) (query.FindSpec, error) {
	if len(find) != 1 {
		return nil, fmt.Errorf("find: want exactly one of scalar/coll/tuple/rel")
	}
	for kind, raw := range find {
		switch kind {
		case "scalar", "coll":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("find %s: want a single element", kind)
			}
			el, err := parseElement(s)
			if err != nil {
				return nil, err
			}
			if kind == "scalar" {
				return query.FindScalar{Elem: el}, nil
			}
			return query.FindColl{Elem: el}, nil
		case "tuple", "rel":
			list, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("find %s: want a list of elements", kind)
			}
			elems := make([]query.Element, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("find %s: elements must be strings", kind)
				}
				el, err := parseElement(s)
				if err != nil {
					return nil, err
				}
				elems = append(elems, el)
			}
			if kind == "tuple" {
				return query.FindTuple{Elems: elems}, nil
			}
			return query.FindRel{Elems: elems}, nil
		default:
			return nil, fmt.Errorf("find: unknown shape %q", kind)
		}
	}
	return nil, fmt.Errorf("find: empty")
}

// parseElement accepts "?var" or "(fn ?var)" aggregate spellings.
func parseElement(s string) (query.Element, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		fields := strings.Fields(strings.Trim(s, "()"))
		if len(fields) != 2 {
			return nil, fmt.Errorf("aggregate %q: want (fn ?var)", s)
		}
		return query.Aggregate{Fn: fields[0], Arg: query.Variable(fields[1])}, nil
	}
	if !strings.HasPrefix(s, "?") {
		return nil, fmt.Errorf("find element %q: want ?var or (fn ?var)", s)
	}
	return query.Variable(s), nil
}

func parsePattern(raw []any) (query.Pattern, error) {
	if len(raw) != 3 {
		return query.Pattern{}, fmt.Errorf("pattern: want [e a v], got %d places", len(raw))
	}
	e, err := parseEntityPlace(raw[0])
	if err != nil {
		return query.Pattern{}, err
	}
	a, err := parseAttrPlace(raw[1])
	if err != nil {
		return query.Pattern{}, err
	}
	v, err := parseValuePlace(raw[2])
	if err != nil {
		return query.Pattern{}, err
	}
	return query.Pattern{E: e, A: a, V: v}, nil
}

func parseEntityPlace(raw any) (query.Place, error) {
	switch v := raw.(type) {
	case string:
		if v == "_" {
			return query.Wildcard{}, nil
		}
		if strings.HasPrefix(v, "?") {
			return query.Variable(v), nil
		}
		return nil, fmt.Errorf("entity place %q: want ?var, _, or entity id", v)
	case int:
		return query.Constant{V: value.Long(int64(v))}, nil
	default:
		return nil, fmt.Errorf("entity place: unsupported %T", raw)
	}
}

func parseAttrPlace(raw any) (query.Place, error) {
	switch v := raw.(type) {
	case string:
		if strings.HasPrefix(v, "?") {
			return query.Variable(v), nil
		}
		return query.Ident(v), nil
	case int:
		return query.Constant{V: value.Long(int64(v))}, nil
	default:
		return nil, fmt.Errorf("attribute place: unsupported %T", raw)
	}
}

func parseValuePlace(raw any) (query.Place, error) {
	if s, ok := raw.(string); ok {
		if s == "_" {
			return query.Wildcard{}, nil
		}
		if strings.HasPrefix(s, "?") {
			return query.Variable(s), nil
		}
	}
	tv, err := literalValue(raw)
	if err != nil {
		return nil, fmt.Errorf("value place: %w", err)
	}
	return query.Constant{V: tv}, nil
}

func parsePred(raw []any) (query.Predicate, error) {
	if len(raw) != 3 {
		return query.Predicate{}, fmt.Errorf("pred: want [op left right]")
	}
	opStr, ok := raw[0].(string)
	if !ok {
		return query.Predicate{}, fmt.Errorf("pred: operator must be a string")
	}
	op, err := query.ParsePredOp(opStr)
	if err != nil {
		return query.Predicate{}, err
	}
	args := make([]query.Place, 0, 2)
	for _, a := range raw[1:] {
		pl, err := parseValuePlace(a)
		if err != nil {
			return query.Predicate{}, err
		}
		args = append(args, pl)
	}
	return query.Predicate{Op: op, Args: args}, nil
}

// literalValue converts a YAML scalar into a TypedValue. Strings with
// a ":" prefix become keywords; plain strings stay strings. Entity ids
// are written as plain integers and coerced by the algebrizer.
func literalValue(raw any) (value.TypedValue, error) {
	switch v := raw.(type) {
	case bool:
		return value.Boolean(v), nil
	case int:
		return value.Long(int64(v)), nil
	case int64:
		return value.Long(v), nil
	case float64:
		return value.Double(v), nil
	case string:
		if strings.HasPrefix(v, ":") {
			return value.Keyword(strings.TrimPrefix(v, ":")), nil
		}
		return value.String(v), nil
	default:
		return nil, fmt.Errorf("unsupported literal %T", raw)
	}
}

// factsDoc is the YAML surface of an assertion batch:
//
//	facts:
//	  - e: 100
//	    attr: person/name
//	    value: Alice
type factsDoc struct {
	Facts []factDoc `yaml:"facts"`
}

type factDoc struct {
	E     int64  `yaml:"e"`
	Attr  string `yaml:"attr"`
	Value any    `yaml:"value"`
}

// LoadFactsFile reads an assertion batch, converting each value to the
// attribute's declared type.
func LoadFactsFile(path string, provider schema.Provider) ([]factstore.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	var doc factsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	if len(doc.Facts) == 0 {
		return nil, fmt.Errorf("no facts in %s", path)
	}

	out := make([]factstore.Fact, 0, len(doc.Facts))
	for i, f := range doc.Facts {
		attr, ok := provider.AttributeByIdent(f.Attr)
		if !ok {
			return nil, fmt.Errorf("facts[%d]: unknown attribute %q", i, f.Attr)
		}
		tv, err := typedValueFor(attr, f.Value)
		if err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}
		out = append(out, factstore.Fact{E: f.E, A: attr.ID, V: tv})
	}
	return out, nil
}

func typedValueFor(attr schema.Attribute, raw any) (value.TypedValue, error) {
	switch attr.Type {
	case value.TypeRef, value.TypeLong:
		n, ok := yamlInt(raw)
		if !ok {
			return nil, fmt.Errorf("attribute %s: want integer, got %T", attr.Ident, raw)
		}
		if attr.Type == value.TypeRef {
			return value.Ref(n), nil
		}
		return value.Long(n), nil
	case value.TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("attribute %s: want boolean, got %T", attr.Ident, raw)
		}
		return value.Boolean(b), nil
	case value.TypeDouble:
		switch v := raw.(type) {
		case float64:
			return value.Double(v), nil
		case int:
			return value.Double(float64(v)), nil
		}
		return nil, fmt.Errorf("attribute %s: want float, got %T", attr.Ident, raw)
	case value.TypeInstant:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("attribute %s: want RFC 3339 text, got %T", attr.Ident, raw)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", attr.Ident, err)
		}
		return value.NewInstant(t), nil
	case value.TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("attribute %s: want text, got %T", attr.Ident, raw)
		}
		return value.String(s), nil
	case value.TypeKeyword:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("attribute %s: want text, got %T", attr.Ident, raw)
		}
		return value.Keyword(strings.TrimPrefix(s, ":")), nil
	case value.TypeUUID:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("attribute %s: want uuid text, got %T", attr.Ident, raw)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", attr.Ident, err)
		}
		return value.UUID(u), nil
	default:
		return nil, fmt.Errorf("attribute %s: unsupported type %s", attr.Ident, attr.Type)
	}
}

func yamlInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// pullDoc is the YAML surface of a pull pattern:
//
//	pull:
//	  - attr: person/name
//	  - attr: car/owner
//	    reverse: true
//	    card: many
//	    nested:
//	      - attr: person/name
type pullDoc struct {
	Pull []pullSelectorDoc `yaml:"pull"`
}

type pullSelectorDoc struct {
	Attr      string            `yaml:"attr"`
	Reverse   bool              `yaml:"reverse,omitempty"`
	Mandatory bool              `yaml:"mandatory,omitempty"`
	Card      string            `yaml:"card,omitempty"`
	Recur     bool              `yaml:"recur,omitempty"`
	Nested    []pullSelectorDoc `yaml:"nested,omitempty"`
}

// LoadPullFile reads a pull pattern document.
func LoadPullFile(path string) (*pull.Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern: %w", err)
	}
	var doc pullDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode pattern: %w", err)
	}
	return pullPattern(doc.Pull)
}

func pullPattern(docs []pullSelectorDoc) (*pull.Pattern, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("pattern has no selectors")
	}
	p := &pull.Pattern{}
	for _, d := range docs {
		sel := pull.Selector{
			Ident:     d.Attr,
			Reverse:   d.Reverse,
			Mandatory: d.Mandatory,
			Recur:     d.Recur,
		}
		switch d.Card {
		case "":
		case "one":
			sel.Card = pull.CardOne
		case "many":
			sel.Card = pull.CardMany
		default:
			return nil, fmt.Errorf("selector %s: unknown cardinality %q", d.Attr, d.Card)
		}
		if len(d.Nested) > 0 {
			nested, err := pullPattern(d.Nested)
			if err != nil {
				return nil, err
			}
			sel.Nested = nested
		}
		p.Selectors = append(p.Selectors, sel)
	}
	return p, nil
}
