package sdo

import "encoding/binary"

// Command specifiers, the 3-bit value in bits 7..5 of the command byte.
const (
	ccsDownloadSegment  = 0
	ccsDownloadInitiate = 1
	ccsUploadInitiate   = 2
	ccsUploadSegment    = 3
	ccsAbort            = 4
)

const (
	scsUploadInitiate   = 2
	scsDownloadInitiate = 3
	scsUploadSegment    = 0
	scsDownloadSegment  = 1
)

const abortCommandByte = 0x80

// encodeInitiateDownload builds the client->server download-initiate
// frame. When expedited is true, data holds 1..4 payload bytes inline
// and size is ignored; otherwise size carries the declared total length
// of the segmented transfer that follows.
func encodeInitiateDownload(index uint16, subIndex uint8, size uint32, expedited bool, data []byte) [8]byte {
	var frame [8]byte
	cmd := byte(ccsDownloadInitiate << 5)
	cmd |= 1 // s: size indicated, always true for this engine
	if expedited {
		n := 4 - len(data)
		cmd |= 1 << 1 // e: expedited
		cmd |= byte(n) << 2
		frame[0] = cmd
		putIndex(&frame, index, subIndex)
		copy(frame[4:4+len(data)], data)
		return frame
	}
	frame[0] = cmd
	putIndex(&frame, index, subIndex)
	binary.LittleEndian.PutUint32(frame[4:8], size)
	return frame
}

// encodeInitiateUpload builds the client->server upload-initiate frame.
func encodeInitiateUpload(index uint16, subIndex uint8) [8]byte {
	var frame [8]byte
	frame[0] = byte(ccsUploadInitiate << 5)
	putIndex(&frame, index, subIndex)
	return frame
}

// encodeSegment builds a segment frame (download-segment request or
// upload-segment response share the same wire shape), carrying up to 7
// payload bytes.
func encodeSegment(ccsOrScs byte, toggle bool, payload []byte, last bool) [8]byte {
	var frame [8]byte
	n := 7 - len(payload)
	cmd := ccsOrScs << 5
	if toggle {
		cmd |= 1 << 4
	}
	cmd |= byte(n) << 1
	if last {
		cmd |= 1
	}
	frame[0] = cmd
	copy(frame[1:1+len(payload)], payload)
	return frame
}

// encodeUploadSegmentRequest builds the client->server request for the
// next upload segment; it carries no payload, only the toggle bit.
func encodeUploadSegmentRequest(toggle bool) [8]byte {
	var frame [8]byte
	cmd := byte(ccsUploadSegment << 5)
	if toggle {
		cmd |= 1 << 4
	}
	frame[0] = cmd
	return frame
}

// encodeDownloadSegmentAck builds the server->client ack for a
// download-segment, echoing the toggle bit.
func encodeDownloadSegmentAck(toggle bool) [8]byte {
	var frame [8]byte
	cmd := byte(scsDownloadSegment << 5)
	if toggle {
		cmd |= 1 << 4
	}
	frame[0] = cmd
	return frame
}

// encodeDownloadInitiateAck builds the server->client ack for a
// download-initiate.
func encodeDownloadInitiateAck(index uint16, subIndex uint8) [8]byte {
	var frame [8]byte
	frame[0] = byte(scsDownloadInitiate << 5)
	putIndex(&frame, index, subIndex)
	return frame
}

// encodeUploadInitiateExpedited builds the server->client expedited
// upload-initiate response, with 1..4 bytes of inline payload.
func encodeUploadInitiateExpedited(index uint16, subIndex uint8, data []byte) [8]byte {
	var frame [8]byte
	n := 4 - len(data)
	cmd := byte(scsUploadInitiate << 5)
	cmd |= 1     // s: size indicated
	cmd |= 1 << 1 // e: expedited
	cmd |= byte(n) << 2
	frame[0] = cmd
	putIndex(&frame, index, subIndex)
	copy(frame[4:4+len(data)], data)
	return frame
}

// encodeUploadInitiateSegmented builds the server->client segmented
// upload-initiate response, announcing the total size.
func encodeUploadInitiateSegmented(index uint16, subIndex uint8, size uint32) [8]byte {
	var frame [8]byte
	cmd := byte(scsUploadInitiate<<5) | 1 // s: size indicated, e clear
	frame[0] = cmd
	putIndex(&frame, index, subIndex)
	binary.LittleEndian.PutUint32(frame[4:8], size)
	return frame
}

// encodeAbort builds the abort frame: command byte 0x80, index/sub-index
// echoed, 32-bit little-endian code in bytes 4..7.
func encodeAbort(index uint16, subIndex uint8, code AbortCode) [8]byte {
	var frame [8]byte
	frame[0] = abortCommandByte
	putIndex(&frame, index, subIndex)
	binary.LittleEndian.PutUint32(frame[4:8], uint32(code))
	return frame
}

func putIndex(frame *[8]byte, index uint16, subIndex uint8) {
	binary.LittleEndian.PutUint16(frame[1:3], index)
	frame[3] = subIndex
}

func decodeIndex(data [8]byte) (index uint16, subIndex uint8) {
	return binary.LittleEndian.Uint16(data[1:3]), data[3]
}

func isAbort(data [8]byte) bool {
	return data[0] == abortCommandByte
}

func decodeAbortCode(data [8]byte) AbortCode {
	return AbortCode(binary.LittleEndian.Uint32(data[4:8]))
}

func commandSpecifier(data [8]byte) byte {
	return data[0] >> 5
}

// decodeUploadInitiateResponse reports whether the reply is expedited,
// and if so the inline payload it carries; if segmented, it reports the
// declared total size when size-indicated.
func decodeUploadInitiateResponse(data [8]byte) (expedited bool, payload []byte, sizeIndicated bool, size uint32) {
	cmd := data[0]
	sizeIndicated = cmd&0x01 != 0
	if cmd&0x02 != 0 {
		expedited = true
		n := int((cmd >> 2) & 0x03)
		count := 4
		if sizeIndicated {
			count = 4 - n
		}
		return true, data[4 : 4+count], sizeIndicated, 0
	}
	if sizeIndicated {
		size = binary.LittleEndian.Uint32(data[4:8])
	}
	return false, nil, sizeIndicated, size
}

// decodeSegment extracts the payload bytes and the last-segment flag
// from a segment frame (upload-segment response or download-segment
// request share this shape).
func decodeSegment(data [8]byte) (toggle bool, payload []byte, last bool) {
	cmd := data[0]
	toggle = cmd&(1<<4) != 0
	count := 7 - int((cmd>>1)&0x07)
	last = cmd&0x01 != 0
	return toggle, data[1 : 1+count], last
}
