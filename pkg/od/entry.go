package od

import (
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"
)

var _logger = log.WithField("component", "od")

// An Entry object is the main building block of an [ObjectDictionary].
// It holds an OD entry, i.e. an OD object at a specific index.
// An entry can be one of the following object types, defined by CiA 301
//   - VAR [Variable]
//   - DOMAIN [Variable]
//   - ARRAY [VariableList]
//   - RECORD [VariableList]
//
// If the Object is an ARRAY or a RECORD it can hold multiple sub entries.
// Sub entries are always of type VAR, for simplicity.
type Entry struct {
	Index      uint16
	Name       string
	ObjectType uint8
	// Either a [Variable] or a [VariableList]
	object            any
	subEntriesNameMap map[string]uint8
}

// NewEntry creates a new [Entry].
func NewEntry(index uint16, name string, object any, objectType uint8) *Entry {
	return &Entry{
		Index:             index,
		Name:              name,
		object:            object,
		ObjectType:        objectType,
		subEntriesNameMap: map[string]uint8{},
	}
}

// SubIndex returns the [Variable] at a given sub-index. subIndex can be
// a string, an int, or a uint8; a string is resolved via the entry's
// naming table.
func (entry *Entry) SubIndex(subIndex any) (*Variable, error) {
	if entry == nil {
		return nil, ErrIdxNotExist
	}
	switch object := entry.object.(type) {
	case *Variable:
		if subIndex != 0 && subIndex != "" && subIndex != uint8(0) {
			return nil, ErrSubNotExist
		}
		return object, nil
	case *VariableList:
		var convertedSubIndex uint8
		switch sub := subIndex.(type) {
		case string:
			found, ok := entry.subEntriesNameMap[sub]
			if !ok {
				return nil, ErrSubNotExist
			}
			convertedSubIndex = found
		case int:
			if sub >= 256 {
				return nil, ErrDevIncompat
			}
			convertedSubIndex = uint8(sub)
		case uint8:
			convertedSubIndex = sub
		default:
			return nil, ErrDevIncompat
		}
		return object.GetSubObject(convertedSubIndex)
	default:
		return nil, ErrDevIncompat
	}
}

// SubCount returns the number of sub entries inside entry. For a VAR
// type it is always 1.
func (entry *Entry) SubCount() int {
	switch object := entry.object.(type) {
	case *Variable:
		return 1
	case *VariableList:
		return len(object.Variables)
	default:
		_logger.WithField("index", fmt.Sprintf("x%x", entry.Index)).Error("invalid entry object type")
		return 1
	}
}

func (entry *Entry) Uint8(subIndex uint8) (uint8, error) {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return sub.Uint8()
}

func (entry *Entry) Uint16(subIndex uint8) (uint16, error) {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return sub.Uint16()
}

func (entry *Entry) Uint32(subIndex uint8) (uint32, error) {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return sub.Uint32()
}

func (entry *Entry) Uint64(subIndex uint8) (uint64, error) {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return sub.Uint64()
}

func (entry *Entry) PutUint8(subIndex uint8, value uint8) error {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return err
	}
	return sub.SetRaw([]byte{value})
}

func (entry *Entry) PutUint16(subIndex uint8, value uint16) error {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return err
	}
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, value)
	return sub.SetRaw(b)
}

func (entry *Entry) PutUint32(subIndex uint8, value uint32) error {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return err
	}
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, value)
	return sub.SetRaw(b)
}

func (entry *Entry) PutUint64(subIndex uint8, value uint64) error {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return err
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, value)
	return sub.SetRaw(b)
}
