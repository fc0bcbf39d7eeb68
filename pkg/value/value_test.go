package value

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLParam_FixedRepresentations(t *testing.T) {
	u := uuid.MustParse("a1a2a3a4-b1b2-c1c2-d1d2-e1e2e3e4e5e6")
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	testCases := []struct {
		name string
		in   TypedValue
		want any
	}{
		{"ref", Ref(42), int64(42)},
		{"long", Long(-7), int64(-7)},
		{"bool true", Boolean(true), int64(1)},
		{"bool false", Boolean(false), int64(0)},
		{"double", Double(1.5), float64(1.5)},
		{"string", String("alice"), "alice"},
		{"keyword", Keyword("role/admin"), "role/admin"},
		{"uuid", UUID(u), u.String()},
		{"instant", NewInstant(at), at.UnixMicro()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SQLParam(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewInstant_TruncatesToMicros(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC)
	i := NewInstant(at)
	assert.Equal(t, int64(123456), int64(i.Time().Nanosecond())/1000)
}

func TestCoerce(t *testing.T) {
	// Exact types pass through untouched.
	v, ok := Coerce(String("x"), TypeString)
	require.True(t, ok)
	assert.Equal(t, String("x"), v)

	// Long literals widen to double.
	v, ok = Coerce(Long(3), TypeDouble)
	require.True(t, ok)
	assert.Equal(t, Double(3), v)

	// Plain integers stand in for entity ids, and back.
	v, ok = Coerce(Long(100), TypeRef)
	require.True(t, ok)
	assert.Equal(t, Ref(100), v)
	v, ok = Coerce(Ref(100), TypeLong)
	require.True(t, ok)
	assert.Equal(t, Long(100), v)

	// Nothing else coerces.
	_, ok = Coerce(String("30"), TypeLong)
	assert.False(t, ok)
	_, ok = Coerce(Double(1.5), TypeLong)
	assert.False(t, ok)
	_, ok = Coerce(Boolean(true), TypeString)
	assert.False(t, ok)
}

func TestTypeFromString_RoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeRef, TypeBoolean, TypeInstant, TypeLong, TypeDouble, TypeString, TypeKeyword, TypeUUID} {
		got, err := TypeFromString(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	_, err := TypeFromString("bignum")
	assert.Error(t, err)
}
