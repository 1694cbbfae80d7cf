package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFromString(t *testing.T) {
	cases := []struct {
		value    string
		datatype uint8
		expect   []byte
	}{
		{"10", UNSIGNED8, []byte{10}},
		{"0x10", UNSIGNED8, []byte{0x10}},
		{"", UNSIGNED8, []byte{0}},
		{"256", UNSIGNED16, []byte{0x00, 0x01}},
		{"hello", VISIBLE_STRING, []byte("hello")},
	}
	for _, c := range cases {
		got, err := EncodeFromString(c.value, c.datatype, 0)
		require.NoError(t, err)
		assert.Equal(t, c.expect, got)
	}
}

func TestCheckSize(t *testing.T) {
	assert.NoError(t, CheckSize(4, UNSIGNED32))
	assert.ErrorIs(t, CheckSize(2, UNSIGNED32), ErrDataShort)
	assert.ErrorIs(t, CheckSize(8, UNSIGNED32), ErrDataLong)
	assert.NoError(t, CheckSize(0, VISIBLE_STRING))
}

func TestVariableSetRawRejectsWrongLength(t *testing.T) {
	variable, err := NewVariable(0, "test", UNSIGNED16, AttributeSdoRw, "1")
	require.NoError(t, err)

	err = variable.SetRaw([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrDataLong)

	err = variable.SetRaw([]byte{0x34, 0x12})
	require.NoError(t, err)
	got, err := variable.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), got)
}

func TestDecodeToTypeExactRoundTrip(t *testing.T) {
	encoded, err := EncodeFromGeneric(int32(-42))
	require.NoError(t, err)
	decoded, err := DecodeToTypeExact(encoded, INTEGER32)
	require.NoError(t, err)
	assert.Equal(t, int32(-42), decoded)
}
