package pull

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/value"
)

// Card is a selector-level cardinality declaration. CardDefault
// inherits from the attribute for forward selectors and is many for
// backward selectors.
type Card int

const (
	CardDefault Card = iota
	CardOne
	CardMany
)

// Selector names one attribute to pull. A backward selector traverses
// a reference-typed attribute from the referenced entity back to the
// referencing entities. A nested pattern on a reference-valued
// attribute expands the referenced entity in place.
type Selector struct {
	Ident     string
	Reverse   bool
	Mandatory bool
	Card      Card
	Nested    *Pattern

	// Recur re-applies the selector's enclosing pattern to the
	// referenced entity, expanding recursively until the visited set
	// or the depth bound stops it. Mutually exclusive with Nested.
	Recur bool
}

// Pattern is an ordered list of selectors. Result map entries appear
// in selector order.
type Pattern struct {
	Selectors []Selector
}

// compiledPattern is a pattern node with attributes resolved and a
// stable node id. Node ids key the visited set together with entity
// ids, so recursion terminates on cyclic graphs.
type compiledPattern struct {
	id        int
	selectors []compiledSelector
}

type compiledSelector struct {
	attr      schema.Attribute
	key       string
	reverse   bool
	mandatory bool
	many      bool
	nested    *compiledPattern
}

// compile resolves every selector against the schema and assigns node
// ids in depth-first order, root first.
func compile(p *Pattern, provider schema.Provider) (*compiledPattern, error) {
	if p == nil || len(p.Selectors) == 0 {
		return nil, &PullError{Code: ErrCodeInvalidPattern, Message: "pattern has no selectors"}
	}
	nextID := 0
	return compileNode(p, provider, &nextID)
}

func compileNode(p *Pattern, provider schema.Provider, nextID *int) (*compiledPattern, error) {
	node := &compiledPattern{id: *nextID}
	*nextID++

	for _, sel := range p.Selectors {
		attr, ok := provider.AttributeByIdent(sel.Ident)
		if !ok {
			return nil, &PullError{
				Code:    ErrCodeAttributeNotFound,
				Message: "attribute not found in schema",
				Ident:   sel.Ident,
			}
		}

		cs := compiledSelector{
			attr:      attr,
			key:       attr.Ident,
			reverse:   sel.Reverse,
			mandatory: sel.Mandatory,
		}

		if sel.Reverse {
			if attr.Type != value.TypeRef {
				return nil, &PullError{
					Code:    ErrCodeInvalidPattern,
					Message: fmt.Sprintf("backward selector requires a reference attribute, %s is %s", attr.Ident, attr.Type),
					Ident:   attr.Ident,
				}
			}
			cs.key = reverseKey(attr.Ident)
			cs.many = sel.Card != CardOne
		} else {
			switch sel.Card {
			case CardOne:
				cs.many = false
			case CardMany:
				cs.many = true
			default:
				cs.many = attr.Cardinality == schema.Many
			}
		}

		if sel.Recur {
			if sel.Nested != nil {
				return nil, &PullError{
					Code:    ErrCodeInvalidPattern,
					Message: "selector cannot be both recursive and nested",
					Ident:   attr.Ident,
				}
			}
			if attr.Type != value.TypeRef {
				return nil, &PullError{
					Code:    ErrCodeInvalidPattern,
					Message: fmt.Sprintf("recursive selector requires a reference attribute, %s is %s", attr.Ident, attr.Type),
					Ident:   attr.Ident,
				}
			}
			// The enclosing node itself: revisits are cut off by the
			// (entity, node) visited set.
			cs.nested = node
		}

		if sel.Nested != nil {
			if attr.Type != value.TypeRef {
				return nil, &PullError{
					Code:    ErrCodeInvalidPattern,
					Message: fmt.Sprintf("nested pattern requires a reference attribute, %s is %s", attr.Ident, attr.Type),
					Ident:   attr.Ident,
				}
			}
			nested, err := compileNode(sel.Nested, provider, nextID)
			if err != nil {
				return nil, err
			}
			cs.nested = nested
		}

		node.selectors = append(node.selectors, cs)
	}
	return node, nil
}

// reverseKey renders the backward form of an ident: "car/owner" pulled
// backward appears under "car/_owner".
func reverseKey(ident string) string {
	ns, name, ok := strings.Cut(ident, "/")
	if !ok {
		return "_" + ident
	}
	return ns + "/_" + name
}
