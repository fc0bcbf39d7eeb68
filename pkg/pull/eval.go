// Package pull assembles a bounded subgraph around an entity: for each
// selector it fetches facts keyed by (entity, attribute), or by
// (value, attribute) for backward selectors, and recurses through
// reference-valued attributes.
//
// Evaluation runs as an explicit work-list, not unguarded recursion: a
// visited set keyed by (entity, pattern-node) guarantees termination on
// cyclic reference graphs independent of any caller-supplied depth
// limit, and keeps stack depth flat regardless of graph shape.
package pull

import (
	"context"
	"fmt"

	"github.com/quarrydb/quarry/pkg/schema"
	"github.com/quarrydb/quarry/pkg/value"
)

// FactSource is the point-lookup surface the evaluator needs from the
// fact store. Both methods observe only currently-asserted facts and
// return results in stable store order.
type FactSource interface {
	// ValuesForEntity returns the values of attribute a on entity e.
	ValuesForEntity(ctx context.Context, e, a int64) ([]value.TypedValue, error)

	// EntitiesForValue returns the entities holding attribute a with
	// reference value ref.
	EntitiesForValue(ctx context.Context, a, ref int64) ([]int64, error)
}

// Options tunes evaluation. MaxDepth bounds reference expansion: at
// depth MaxDepth, reference-valued attributes are returned as bare
// entity ids instead of nested maps. 0 means unbounded (the visited
// set still guarantees termination).
type Options struct {
	MaxDepth int
}

type visitKey struct {
	entity int64
	node   int
}

type task struct {
	entity int64
	node   *compiledPattern
	depth  int
	dest   *value.StructuredMap
}

// Evaluate pulls pattern p around entity. Scalar attributes are
// included at any depth; a missing attribute is simply absent unless
// its selector is mandatory. The result is a fresh StructuredMap with
// entries in selector order; on error the whole pull fails.
func Evaluate(ctx context.Context, src FactSource, provider schema.Provider, entity int64, p *Pattern, opts Options) (*value.StructuredMap, error) {
	root, err := compile(p, provider)
	if err != nil {
		return nil, err
	}

	out := value.NewStructuredMap()
	e := &evaluator{src: src, opts: opts, visited: make(map[visitKey]bool)}
	e.visited[visitKey{entity: entity, node: root.id}] = true
	e.work = append(e.work, task{entity: entity, node: root, dest: out})

	for len(e.work) > 0 {
		t := e.work[0]
		e.work = e.work[1:]
		if err := e.evalNode(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type evaluator struct {
	src     FactSource
	opts    Options
	visited map[visitKey]bool
	work    []task
}

func (e *evaluator) evalNode(ctx context.Context, t task) error {
	for i := range t.node.selectors {
		sel := &t.node.selectors[i]
		if sel.reverse {
			if err := e.evalBackward(ctx, t, sel); err != nil {
				return err
			}
			continue
		}
		if err := e.evalForward(ctx, t, sel); err != nil {
			return err
		}
	}
	return nil
}

func (e *evaluator) evalForward(ctx context.Context, t task, sel *compiledSelector) error {
	vals, err := e.src.ValuesForEntity(ctx, t.entity, sel.attr.ID)
	if err != nil {
		return fmt.Errorf("lookup %s on entity %d: %w", sel.attr.Ident, t.entity, err)
	}
	if len(vals) == 0 {
		if sel.mandatory {
			return &PullError{
				Code:    ErrCodeMissingAttribute,
				Message: "mandatory attribute has no value",
				Ident:   sel.attr.Ident,
				Entity:  t.entity,
			}
		}
		return nil
	}
	if !sel.many && len(vals) > 1 {
		// Never pick one: a cardinality-one selector matching more than
		// one fact is a hard error, checked before any value is expanded
		// so no child entity is scheduled or marked visited.
		return &PullError{
			Code:    ErrCodeCardinalityViolation,
			Message: fmt.Sprintf("cardinality-one selector matched %d values", len(vals)),
			Ident:   sel.attr.Ident,
			Entity:  t.entity,
		}
	}

	if sel.attr.Type == value.TypeRef && sel.nested != nil {
		bindings := make([]value.Binding, 0, len(vals))
		for _, v := range vals {
			ref, ok := v.(value.Ref)
			if !ok {
				return &PullError{
					Code:    ErrCodeInvalidPattern,
					Message: fmt.Sprintf("reference attribute holds %s value", v.Type()),
					Ident:   sel.attr.Ident,
					Entity:  t.entity,
				}
			}
			bindings = append(bindings, e.expand(int64(ref), sel.nested, t.depth))
		}
		setBinding(t.dest, sel.key, sel.many, bindings)
		return nil
	}

	bindings := make([]value.Binding, 0, len(vals))
	for _, v := range vals {
		bindings = append(bindings, value.Scalar{Value: v})
	}
	setBinding(t.dest, sel.key, sel.many, bindings)
	return nil
}

func (e *evaluator) evalBackward(ctx context.Context, t task, sel *compiledSelector) error {
	ids, err := e.src.EntitiesForValue(ctx, sel.attr.ID, t.entity)
	if err != nil {
		return fmt.Errorf("reverse lookup %s to entity %d: %w", sel.attr.Ident, t.entity, err)
	}
	if len(ids) == 0 {
		if sel.mandatory {
			return &PullError{
				Code:    ErrCodeMissingAttribute,
				Message: "mandatory backward attribute has no referencing entity",
				Ident:   sel.attr.Ident,
				Entity:  t.entity,
			}
		}
		return nil
	}
	if !sel.many && len(ids) > 1 {
		// Never pick one: a cardinality-one backward selector matching
		// more than one fact is a hard error.
		return &PullError{
			Code:    ErrCodeCardinalityViolation,
			Message: fmt.Sprintf("cardinality-one backward selector matched %d entities", len(ids)),
			Ident:   sel.attr.Ident,
			Entity:  t.entity,
		}
	}

	bindings := make([]value.Binding, 0, len(ids))
	for _, id := range ids {
		if sel.nested != nil {
			bindings = append(bindings, e.expand(id, sel.nested, t.depth))
		} else {
			bindings = append(bindings, value.Scalar{Value: value.Ref(id)})
		}
	}
	setBinding(t.dest, sel.key, sel.many, bindings)
	return nil
}

// expand returns the binding for a referenced entity: a nested map
// scheduled for evaluation, or a bare id when the depth bound is
// reached or the (entity, node) pair was already visited.
func (e *evaluator) expand(ref int64, node *compiledPattern, depth int) value.Binding {
	if e.opts.MaxDepth > 0 && depth+1 > e.opts.MaxDepth {
		return value.Scalar{Value: value.Ref(ref)}
	}
	key := visitKey{entity: ref, node: node.id}
	if e.visited[key] {
		return value.Scalar{Value: value.Ref(ref)}
	}
	e.visited[key] = true

	child := value.NewStructuredMap()
	e.work = append(e.work, task{entity: ref, node: node, depth: depth + 1, dest: child})
	return child
}

func setBinding(dest *value.StructuredMap, key string, many bool, bindings []value.Binding) {
	if many {
		dest.Set(key, value.List(bindings))
		return
	}
	dest.Set(key, bindings[0])
}
