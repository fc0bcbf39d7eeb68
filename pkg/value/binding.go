package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Binding is a sealed interface over the values a single result cell
// can hold: a scalar typed value, a list (cardinality-many pull
// results), or a nested StructuredMap (pulled reference).
type Binding interface {
	bindingNode() // Sealed - only types in this package implement it
}

// Scalar is a Binding holding one TypedValue.
type Scalar struct {
	Value TypedValue
}

func (Scalar) bindingNode() {}

// List is a Binding holding an ordered sequence of bindings.
type List []Binding

func (List) bindingNode() {}

// StructuredMap is an ordered mapping from attribute ident to Binding.
// Insertion order is preserved; pull emits entries in selector order.
type StructuredMap struct {
	entries []Entry
	index   map[string]int
}

// Entry is one ident/binding pair in a StructuredMap.
type Entry struct {
	Ident string
	Value Binding
}

func (*StructuredMap) bindingNode() {}

// NewStructuredMap creates an empty StructuredMap.
func NewStructuredMap() *StructuredMap {
	return &StructuredMap{index: make(map[string]int)}
}

// Set inserts or replaces the binding for ident. First insertion fixes
// the entry's position.
func (m *StructuredMap) Set(ident string, b Binding) {
	if i, ok := m.index[ident]; ok {
		m.entries[i].Value = b
		return
	}
	m.index[ident] = len(m.entries)
	m.entries = append(m.entries, Entry{Ident: ident, Value: b})
}

// Get returns the binding for ident, if present.
func (m *StructuredMap) Get(ident string) (Binding, bool) {
	i, ok := m.index[ident]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Len returns the number of entries.
func (m *StructuredMap) Len() int { return len(m.entries) }

// Entries returns the entries in insertion order. The slice is shared;
// callers must not mutate it.
func (m *StructuredMap) Entries() []Entry { return m.entries }

// MarshalJSON emits the map with keys in insertion order.
func (m *StructuredMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Ident)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", e.Ident, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(JSONValue(e.Value))
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", e.Ident, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSONValue converts a Binding into a JSON-encodable Go value.
// Instants render as RFC 3339 text; uuids and keywords as strings;
// refs and longs as int64. Used by the row-to-struct mapper and the
// CLI output path.
func JSONValue(b Binding) any {
	switch v := b.(type) {
	case Scalar:
		return jsonScalar(v.Value)
	case List:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = JSONValue(e)
		}
		return out
	case *StructuredMap:
		return v
	default:
		return nil
	}
}

func jsonScalar(tv TypedValue) any {
	switch val := tv.(type) {
	case Ref:
		return int64(val)
	case Boolean:
		return bool(val)
	case Instant:
		return time.Time(val).Format(time.RFC3339Nano)
	case Long:
		return int64(val)
	case Double:
		return float64(val)
	case String:
		return string(val)
	case Keyword:
		return string(val)
	case UUID:
		return val.String()
	default:
		return nil
	}
}
