package sdo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInitiateDownloadExpedited(t *testing.T) {
	frame := encodeInitiateDownload(0x2000, 1, 0, true, []byte{0x01, 0x02})
	assert.Equal(t, byte(ccsDownloadInitiate<<5)|1|(1<<1)|(2<<2), frame[0])
	index, subIndex := decodeIndex(frame)
	assert.Equal(t, uint16(0x2000), index)
	assert.Equal(t, uint8(1), subIndex)
	assert.Equal(t, []byte{0x01, 0x02}, frame[4:6])
}

func TestEncodeDecodeUploadInitiateResponseExpedited(t *testing.T) {
	frame := encodeUploadInitiateExpedited(0x1018, 1, []byte{0xAA})
	expedited, payload, sizeIndicated, _ := decodeUploadInitiateResponse(frame)
	require.True(t, expedited)
	require.True(t, sizeIndicated)
	assert.Equal(t, []byte{0xAA}, payload)
}

func TestEncodeDecodeUploadInitiateResponseSegmented(t *testing.T) {
	frame := encodeUploadInitiateSegmented(0x2001, 0, 10)
	expedited, _, sizeIndicated, size := decodeUploadInitiateResponse(frame)
	assert.False(t, expedited)
	assert.True(t, sizeIndicated)
	assert.Equal(t, uint32(10), size)
}

func TestEncodeDecodeSegmentRoundTrip(t *testing.T) {
	frame := encodeSegment(scsUploadSegment, true, []byte("World"), true)
	toggle, payload, last := decodeSegment(frame)
	assert.True(t, toggle)
	assert.True(t, last)
	assert.Equal(t, []byte("World"), payload)
}

func TestAbortFrameRoundTrip(t *testing.T) {
	frame := encodeAbort(0x2000, 3, AbortDataShort)
	require.True(t, isAbort(frame))
	index, subIndex := decodeIndex(frame)
	assert.Equal(t, uint16(0x2000), index)
	assert.Equal(t, uint8(3), subIndex)
	assert.Equal(t, AbortDataShort, decodeAbortCode(frame))
}

func TestAbortDataShortCodeIsCia301Correct(t *testing.T) {
	// Some older implementations reuse the DATA_LONG value here by
	// mistake; this engine keeps the two distinct.
	assert.Equal(t, AbortCode(0x06070013), AbortDataShort)
	assert.NotEqual(t, AbortDataLong, AbortDataShort)
}

func TestCommandSpecifierExtraction(t *testing.T) {
	frame := encodeInitiateUpload(0x1000, 0)
	assert.Equal(t, byte(ccsUploadInitiate), commandSpecifier(frame))
}
