package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectDictionaryVariableRoundTrip(t *testing.T) {
	dict := NewObjectDictionary()
	_, err := dict.AddVariable(0x2001, "myvar", UNSIGNED32, AttributeSdoRw, "100")
	require.NoError(t, err)

	entry, ok := dict.GetEntry(0x2001)
	require.True(t, ok)

	value, err := entry.Uint32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), value)

	require.NoError(t, entry.PutUint32(0, 42))
	value, err = entry.Uint32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), value)
}

func TestObjectDictionaryMissingEntry(t *testing.T) {
	dict := NewObjectDictionary()
	_, ok := dict.GetEntry(0x9999)
	assert.False(t, ok)
}

func TestObjectDictionaryRecord(t *testing.T) {
	dict := NewObjectDictionary()
	entry := dict.AddRecord(0x1280, "sdo client parameter")
	_, err := entry.AddSubObject(0, "highest sub-index", UNSIGNED8, AttributeSdoR, "3")
	require.NoError(t, err)
	_, err = entry.AddSubObject(1, "COB-ID client to server", UNSIGNED32, AttributeSdoRw, "0x600")
	require.NoError(t, err)

	cobID, err := entry.Uint32(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x600), cobID)

	_, err = entry.SubIndex(uint8(9))
	assert.ErrorIs(t, err, ErrSubNotExist)
}

func TestObjectDictionaryRawToTypeAndBack(t *testing.T) {
	dict := NewObjectDictionary()
	raw, err := dict.TypeToRaw(uint16(0x1234), UNSIGNED16)
	require.NoError(t, err)

	value, err := dict.RawToType(raw, UNSIGNED16)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), value)
}
