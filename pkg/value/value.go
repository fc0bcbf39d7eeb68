package value

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies one of the eight storage value kinds an attribute can
// declare. TypeRef is deliberately zero: the fact store's value-type tag
// column uses the numeric value, and partial indexes over reference
// values test for 0.
type Type int

const (
	// TypeRef is a reference to another entity id.
	TypeRef Type = iota
	TypeBoolean
	TypeInstant
	TypeLong
	TypeDouble
	TypeString
	TypeKeyword
	TypeUUID
)

// String returns the schema-file name of the type.
func (t Type) String() string {
	switch t {
	case TypeRef:
		return "ref"
	case TypeBoolean:
		return "boolean"
	case TypeInstant:
		return "instant"
	case TypeLong:
		return "long"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeKeyword:
		return "keyword"
	case TypeUUID:
		return "uuid"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// TypeFromString parses a schema-file type name.
func TypeFromString(s string) (Type, error) {
	switch s {
	case "ref":
		return TypeRef, nil
	case "boolean":
		return TypeBoolean, nil
	case "instant":
		return TypeInstant, nil
	case "long":
		return TypeLong, nil
	case "double":
		return TypeDouble, nil
	case "string":
		return TypeString, nil
	case "keyword":
		return TypeKeyword, nil
	case "uuid":
		return TypeUUID, nil
	default:
		return 0, fmt.Errorf("unknown value type %q", s)
	}
}

// Numeric reports whether the type supports arithmetic aggregation.
func (t Type) Numeric() bool {
	return t == TypeLong || t == TypeDouble
}

// Orderable reports whether the type supports range comparison.
// References, booleans, and uuids have identity but no meaningful order.
func (t Type) Orderable() bool {
	switch t {
	case TypeLong, TypeDouble, TypeInstant, TypeString, TypeKeyword:
		return true
	default:
		return false
	}
}

// TypedValue is a sealed interface over the eight value kinds.
// Only Ref, Boolean, Instant, Long, Double, String, Keyword, and UUID
// implement it. The marker method enables exhaustive type switches in
// the encoder, the decoder, and the projector.
type TypedValue interface {
	Type() Type
	typedValue() // Sealed - only types in this package implement it
}

// Ref is a reference to another entity id.
type Ref int64

func (Ref) Type() Type  { return TypeRef }
func (Ref) typedValue() {}

// Boolean is a true/false value.
type Boolean bool

func (Boolean) Type() Type  { return TypeBoolean }
func (Boolean) typedValue() {}

// Instant is a point in time, stored at microsecond precision.
type Instant time.Time

func (Instant) Type() Type  { return TypeInstant }
func (Instant) typedValue() {}

// Time returns the instant as a time.Time.
func (i Instant) Time() time.Time { return time.Time(i) }

// NewInstant truncates t to microsecond precision, matching what the
// store can represent. Round-trips through the store are lossless only
// at this precision.
func NewInstant(t time.Time) Instant {
	return Instant(t.UTC().Truncate(time.Microsecond))
}

// Long is a 64-bit signed integer.
type Long int64

func (Long) Type() Type  { return TypeLong }
func (Long) typedValue() {}

// Double is a 64-bit float.
type Double float64

func (Double) Type() Type  { return TypeDouble }
func (Double) typedValue() {}

// String is a text value.
type String string

func (String) Type() Type  { return TypeString }
func (String) typedValue() {}

// Keyword is an interned namespaced name used as a value
// (e.g. "person/role" with value keyword "role/admin").
type Keyword string

func (Keyword) Type() Type  { return TypeKeyword }
func (Keyword) typedValue() {}

// UUID is an RFC 4122 identifier value.
type UUID uuid.UUID

func (UUID) Type() Type  { return TypeUUID }
func (UUID) typedValue() {}

// String returns the canonical text form of the uuid.
func (u UUID) String() string { return uuid.UUID(u).String() }

// SQLParam converts a TypedValue to its storage representation for use
// as a bind parameter. The mapping is fixed per kind:
//
//	ref, long      -> int64
//	boolean        -> int64 (0 or 1)
//	instant        -> int64 (microseconds since epoch, UTC)
//	double         -> float64
//	string, keyword -> string
//	uuid           -> string (canonical form)
func SQLParam(v TypedValue) (any, error) {
	switch val := v.(type) {
	case Ref:
		return int64(val), nil
	case Boolean:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case Instant:
		return time.Time(val).UnixMicro(), nil
	case Long:
		return int64(val), nil
	case Double:
		return float64(val), nil
	case String:
		return string(val), nil
	case Keyword:
		return string(val), nil
	case UUID:
		return val.String(), nil
	default:
		return nil, fmt.Errorf("unknown TypedValue type: %T", v)
	}
}

// Coerce attempts to view v as type t. Exact matches pass through.
// The only widening allowed is long literals standing in for doubles,
// and long/ref interchange for entity ids written as plain integers.
// Everything else is a type conflict at the caller.
func Coerce(v TypedValue, t Type) (TypedValue, bool) {
	if v.Type() == t {
		return v, true
	}
	switch val := v.(type) {
	case Long:
		switch t {
		case TypeDouble:
			return Double(float64(val)), true
		case TypeRef:
			return Ref(int64(val)), true
		}
	case Ref:
		if t == TypeLong {
			return Long(int64(val)), true
		}
	}
	return nil, false
}
