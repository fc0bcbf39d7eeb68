package value

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RoundTripsThroughSQLParam(t *testing.T) {
	u := uuid.MustParse("a1a2a3a4-b1b2-c1c2-d1d2-e1e2e3e4e5e6")
	values := []TypedValue{
		Ref(9),
		Boolean(true),
		NewInstant(time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)),
		Long(123),
		Double(2.75),
		String("hello"),
		Keyword("status/open"),
		UUID(u),
	}

	for _, v := range values {
		raw, err := SQLParam(v)
		require.NoError(t, err)
		got, err := Decode(raw, v.Type())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecode_TextArrivesAsBytes(t *testing.T) {
	got, err := Decode([]byte("alice"), TypeString)
	require.NoError(t, err)
	assert.Equal(t, String("alice"), got)
}

func TestDecode_IntegralRealForDouble(t *testing.T) {
	got, err := Decode(int64(3), TypeDouble)
	require.NoError(t, err)
	assert.Equal(t, Double(3), got)
}

func TestDecode_MismatchIsDecodeError(t *testing.T) {
	testCases := []struct {
		name     string
		raw      any
		declared Type
	}{
		{"text for long", "thirty", TypeLong},
		{"float for ref", float64(1.5), TypeRef},
		{"out of range boolean", int64(2), TypeBoolean},
		{"integer for string", int64(7), TypeString},
		{"garbage uuid", "not-a-uuid", TypeUUID},
		{"float for instant", float64(1.0), TypeInstant},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.raw, tc.declared)
			require.Error(t, err)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.declared, de.Declared)
		})
	}
}
