// Package schema describes attributes: the metadata the algebrizer and
// pull evaluator consult to type queries. A schema is an immutable
// snapshot; every engine call receives one explicitly, so compilation
// stays a pure function of (AST, schema, inputs).
package schema

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/quarrydb/quarry/pkg/value"
)

// Cardinality says how many values of an attribute one entity may hold.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

// String returns the schema-file name of the cardinality.
func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// Unique describes an attribute's uniqueness constraint.
type Unique int

const (
	UniqueNone Unique = iota
	UniqueValue
	UniqueIdentity
)

// String returns the schema-file name of the uniqueness constraint.
func (u Unique) String() string {
	switch u {
	case UniqueValue:
		return "value"
	case UniqueIdentity:
		return "identity"
	default:
		return "none"
	}
}

// Attribute is the full metadata record for one attribute. Immutable
// once registered.
type Attribute struct {
	ID          int64
	Ident       string
	Type        value.Type
	Cardinality Cardinality
	Unique      Unique
	Indexed     bool
	Fulltext    bool
	Component   bool
}

// Provider resolves attributes by ident or id. Implementations must be
// read-only snapshots: concurrent resolution from multiple queries is
// expected.
type Provider interface {
	AttributeByIdent(ident string) (Attribute, bool)
	AttributeByID(id int64) (Attribute, bool)
}

// NormalizeIdent returns the canonical form of an ident: NFC-normalized
// with surrounding whitespace removed. Idents compare byte-wise after
// normalization.
func NormalizeIdent(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// validIdent requires the "namespace/name" shape with non-empty halves.
func validIdent(s string) bool {
	ns, name, ok := strings.Cut(s, "/")
	if !ok || ns == "" || name == "" {
		return false
	}
	return !strings.ContainsAny(s, " \t\n")
}

// Registry is an in-memory Provider built from a fixed attribute set.
type Registry struct {
	byIdent map[string]Attribute
	byID    map[int64]Attribute
	order   []string // idents in registration order
}

// NewRegistry builds a Registry, normalizing idents and rejecting
// duplicates, malformed idents, and non-positive ids.
func NewRegistry(attrs ...Attribute) (*Registry, error) {
	r := &Registry{
		byIdent: make(map[string]Attribute, len(attrs)),
		byID:    make(map[int64]Attribute, len(attrs)),
	}
	for _, a := range attrs {
		a.Ident = NormalizeIdent(a.Ident)
		if !validIdent(a.Ident) {
			return nil, fmt.Errorf("invalid ident %q: want namespace/name", a.Ident)
		}
		if a.ID <= 0 {
			return nil, fmt.Errorf("attribute %q: id must be positive, got %d", a.Ident, a.ID)
		}
		if a.Fulltext && a.Type != value.TypeString {
			return nil, fmt.Errorf("attribute %q: fulltext requires string type", a.Ident)
		}
		if a.Component && a.Type != value.TypeRef {
			return nil, fmt.Errorf("attribute %q: component requires ref type", a.Ident)
		}
		if _, dup := r.byIdent[a.Ident]; dup {
			return nil, fmt.Errorf("duplicate ident %q", a.Ident)
		}
		if _, dup := r.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate attribute id %d (%q)", a.ID, a.Ident)
		}
		r.byIdent[a.Ident] = a
		r.byID[a.ID] = a
		r.order = append(r.order, a.Ident)
	}
	return r, nil
}

// AttributeByIdent implements Provider. The ident is normalized before
// lookup.
func (r *Registry) AttributeByIdent(ident string) (Attribute, bool) {
	a, ok := r.byIdent[NormalizeIdent(ident)]
	return a, ok
}

// AttributeByID implements Provider.
func (r *Registry) AttributeByID(id int64) (Attribute, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// Attributes returns all attributes in registration order.
func (r *Registry) Attributes() []Attribute {
	out := make([]Attribute, 0, len(r.order))
	for _, ident := range r.order {
		out = append(out, r.byIdent[ident])
	}
	return out
}
