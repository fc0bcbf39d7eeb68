package value

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DecodeError reports a cell whose stored representation does not match
// its declared value type. It signals a data/schema mismatch and is
// never silently coerced away.
type DecodeError struct {
	Declared Type
	Raw      any
	Reason   string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s (raw %T)", e.Declared, e.Reason, e.Raw)
}

// Decode converts a raw storage cell into the TypedValue for the
// declared type. The accepted raw representations mirror SQLParam:
// integers arrive as int64, floats as float64, text as string or
// []byte. Anything else is a DecodeError.
func Decode(raw any, t Type) (TypedValue, error) {
	switch t {
	case TypeRef:
		n, ok := rawInt(raw)
		if !ok {
			return nil, &DecodeError{Declared: t, Raw: raw, Reason: "want integer entity id"}
		}
		return Ref(n), nil

	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return Boolean(v), nil
		case int64:
			if v == 0 {
				return Boolean(false), nil
			}
			if v == 1 {
				return Boolean(true), nil
			}
			return nil, &DecodeError{Declared: t, Raw: raw, Reason: fmt.Sprintf("want 0 or 1, got %d", v)}
		}
		return nil, &DecodeError{Declared: t, Raw: raw, Reason: "want integer 0/1"}

	case TypeInstant:
		n, ok := rawInt(raw)
		if !ok {
			return nil, &DecodeError{Declared: t, Raw: raw, Reason: "want integer microseconds"}
		}
		return Instant(time.UnixMicro(n).UTC()), nil

	case TypeLong:
		n, ok := rawInt(raw)
		if !ok {
			return nil, &DecodeError{Declared: t, Raw: raw, Reason: "want integer"}
		}
		return Long(n), nil

	case TypeDouble:
		switch v := raw.(type) {
		case float64:
			return Double(v), nil
		case int64:
			// SQLite numeric affinity may hand back an integral REAL
			// as int64; the declared type disambiguates.
			return Double(float64(v)), nil
		}
		return nil, &DecodeError{Declared: t, Raw: raw, Reason: "want float"}

	case TypeString:
		s, ok := rawText(raw)
		if !ok {
			return nil, &DecodeError{Declared: t, Raw: raw, Reason: "want text"}
		}
		return String(s), nil

	case TypeKeyword:
		s, ok := rawText(raw)
		if !ok {
			return nil, &DecodeError{Declared: t, Raw: raw, Reason: "want text"}
		}
		return Keyword(s), nil

	case TypeUUID:
		s, ok := rawText(raw)
		if !ok {
			return nil, &DecodeError{Declared: t, Raw: raw, Reason: "want canonical uuid text"}
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, &DecodeError{Declared: t, Raw: raw, Reason: fmt.Sprintf("parse uuid: %v", err)}
		}
		return UUID(u), nil

	default:
		return nil, &DecodeError{Declared: t, Raw: raw, Reason: "unknown declared type"}
	}
}

func rawInt(raw any) (int64, bool) {
	n, ok := raw.(int64)
	return n, ok
}

func rawText(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}
