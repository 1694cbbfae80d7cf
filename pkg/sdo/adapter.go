package sdo

import can "github.com/go-sdo/sdoengine/pkg/can"

// AccessType mirrors the CiA 301 access-type taxonomy for an object
// dictionary entry, independent of how any concrete dictionary package
// represents it internally.
type AccessType uint8

const (
	AccessConstant AccessType = iota
	AccessReadOnly
	AccessReadWrite
	AccessWriteOnly
)

// Entry is the narrow view the engine needs of one object dictionary
// entry. A VAR entry only ever receives subIndex 0; a RECORD/ARRAY
// entry is addressed sub-index by sub-index.
type Entry interface {
	SubNumber() uint8
	DataType(subIndex uint8) (uint8, error)
	AccessType(subIndex uint8) (AccessType, error)
	Size(subIndex uint8) (int, error)
	Raw(subIndex uint8) ([]byte, error)
	SetRaw(subIndex uint8, data []byte) error
	HighLimit(subIndex uint8) ([]byte, bool)
	LowLimit(subIndex uint8) ([]byte, bool)
}

// Dictionary is the object-dictionary contract the engine consumes. It
// never reaches into a concrete dictionary implementation beyond this.
type Dictionary interface {
	GetEntry(index uint16) (Entry, bool)
	RawToType(data []byte, dataType uint8) (any, error)
	TypeToRaw(value any, dataType uint8) ([]byte, error)

	// SetConnectionParameter writes (or overwrites) the three sub-entries
	// CiA 301 defines for an SDO client/server parameter record at
	// index: sub1, sub2, sub3 = peerID. add_server/add_client call this
	// on the first free index in their respective range.
	SetConnectionParameter(index uint16, sub1, sub2 uint32, peerID uint8) error
	// RemoveEntry deletes the entry at index, if any.
	RemoveEntry(index uint16)
}

// Transport is the CAN transport contract the engine consumes: a
// fire-and-forget send and a single subscription that delivers every
// inbound frame. Every pkg/can.Bus implementation in this module
// satisfies it directly.
type Transport interface {
	Send(frame can.Frame) error
	Subscribe(listener can.FrameListener) error
}
