package od

import (
	"encoding/binary"
	"math"
	"strconv"
)

// Variable is a single typed, addressable value inside the object
// dictionary: either a stand-alone VAR entry, or one sub-entry of a
// RECORD/ARRAY entry.
type Variable struct {
	SubIndex  uint8
	Name      string
	DataType  uint8
	Attribute uint8

	value     []byte
	highLimit []byte
	lowLimit  []byte
}

// NewVariable builds a Variable from a hex/decimal string value, the way
// the teacher's EDS loader used to, minus anything tied to EDS sections.
func NewVariable(subindex uint8, name string, datatype uint8, attribute uint8, value string) (*Variable, error) {
	encoded, err := EncodeFromString(value, datatype, 0)
	if err != nil {
		return nil, err
	}
	return &Variable{
		SubIndex:  subindex,
		Name:      name,
		DataType:  datatype,
		Attribute: attribute,
		value:     encoded,
	}, nil
}

// DataLength returns the number of bytes currently stored.
func (variable *Variable) DataLength() uint32 {
	return uint32(len(variable.value))
}

func (variable *Variable) Bytes() []byte {
	cp := make([]byte, len(variable.value))
	copy(cp, variable.value)
	return cp
}

// SetRaw replaces the stored value outright. This is the only mutator
// the SDO engine ever calls, and it calls it exactly once per transfer,
// at commit time (expedited initiate, or end of a segmented download).
func (variable *Variable) SetRaw(data []byte) error {
	if err := CheckSize(len(data), variable.DataType); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	variable.value = cp
	return nil
}

func (variable *Variable) HighLimit() ([]byte, bool) {
	return variable.highLimit, variable.highLimit != nil
}

func (variable *Variable) LowLimit() ([]byte, bool) {
	return variable.lowLimit, variable.lowLimit != nil
}

// SetLimits is a construction-time helper; the engine never calls it.
func (variable *Variable) SetLimits(low, high []byte) {
	variable.lowLimit = low
	variable.highLimit = high
}

func (variable *Variable) Uint8() (uint8, error) {
	v, err := DecodeToTypeExact(variable.value, variable.DataType)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint8)
	if !ok {
		return 0, ErrTypeMismatch
	}
	return u, nil
}

func (variable *Variable) Uint16() (uint16, error) {
	v, err := DecodeToTypeExact(variable.value, variable.DataType)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint16)
	if !ok {
		return 0, ErrTypeMismatch
	}
	return u, nil
}

func (variable *Variable) Uint32() (uint32, error) {
	v, err := DecodeToTypeExact(variable.value, variable.DataType)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint32)
	if !ok {
		return 0, ErrTypeMismatch
	}
	return u, nil
}

func (variable *Variable) Uint64() (uint64, error) {
	v, err := DecodeToTypeExact(variable.value, variable.DataType)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint64)
	if !ok {
		return 0, ErrTypeMismatch
	}
	return u, nil
}

func (variable *Variable) String() (string, error) {
	v, err := DecodeToTypeExact(variable.value, variable.DataType)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrTypeMismatch
	}
	return s, nil
}

// EncodeFromString parses a decimal/hex literal into the wire bytes for
// datatype, the way the teacher's EDS loader parses DefaultValue/HighLimit
// fields. offset supports the $NODEID-relative defaults the loader applies;
// this engine's tests always pass 0.
func EncodeFromString(value string, datatype uint8, offset uint8) ([]byte, error) {
	if value == "" {
		value = "0"
	}
	var data []byte
	var err error
	var parsedInt int64
	var parsedUint uint64

	switch datatype {
	case BOOLEAN, UNSIGNED8:
		parsedUint, err = strconv.ParseUint(value, 0, 8)
		data = []byte{byte(uint8(parsedUint) + offset)}
	case INTEGER8:
		parsedInt, err = strconv.ParseInt(value, 0, 8)
		data = []byte{byte(parsedInt) + offset}
	case UNSIGNED16:
		parsedUint, err = strconv.ParseUint(value, 0, 16)
		data = make([]byte, 2)
		binary.LittleEndian.PutUint16(data, uint16(parsedUint)+uint16(offset))
	case INTEGER16:
		parsedInt, err = strconv.ParseInt(value, 0, 16)
		data = make([]byte, 2)
		binary.LittleEndian.PutUint16(data, uint16(parsedInt)+uint16(offset))
	case UNSIGNED32:
		parsedUint, err = strconv.ParseUint(value, 0, 32)
		data = make([]byte, 4)
		binary.LittleEndian.PutUint32(data, uint32(parsedUint)+uint32(offset))
	case INTEGER32:
		parsedInt, err = strconv.ParseInt(value, 0, 32)
		data = make([]byte, 4)
		binary.LittleEndian.PutUint32(data, uint32(parsedInt)+uint32(offset))
	case REAL32:
		var f float64
		f, err = strconv.ParseFloat(value, 32)
		data = make([]byte, 4)
		binary.LittleEndian.PutUint32(data, math.Float32bits(float32(f)))
	case UNSIGNED64:
		parsedUint, err = strconv.ParseUint(value, 0, 64)
		data = make([]byte, 8)
		binary.LittleEndian.PutUint64(data, parsedUint+uint64(offset))
	case INTEGER64:
		parsedInt, err = strconv.ParseInt(value, 0, 64)
		data = make([]byte, 8)
		binary.LittleEndian.PutUint64(data, uint64(parsedInt)+uint64(offset))
	case REAL64:
		var f float64
		f, err = strconv.ParseFloat(value, 64)
		data = make([]byte, 8)
		binary.LittleEndian.PutUint64(data, math.Float64bits(f))
	case VISIBLE_STRING, OCTET_STRING:
		return []byte(value), nil
	case DOMAIN:
		return []byte{}, nil
	default:
		return nil, ErrTypeMismatch
	}
	return data, err
}

// EncodeFromGeneric encodes a value of one of the common Go base types
// into little-endian wire bytes; the width follows the Go type, not a
// CANopen data type.
func EncodeFromGeneric(data any) ([]byte, error) {
	var encoded []byte
	switch val := data.(type) {
	case uint8:
		encoded = []byte{val}
	case int8:
		encoded = []byte{byte(val)}
	case uint16:
		encoded = make([]byte, 2)
		binary.LittleEndian.PutUint16(encoded, val)
	case int16:
		encoded = make([]byte, 2)
		binary.LittleEndian.PutUint16(encoded, uint16(val))
	case uint32:
		encoded = make([]byte, 4)
		binary.LittleEndian.PutUint32(encoded, val)
	case int32:
		encoded = make([]byte, 4)
		binary.LittleEndian.PutUint32(encoded, uint32(val))
	case uint64:
		encoded = make([]byte, 8)
		binary.LittleEndian.PutUint64(encoded, val)
	case int64:
		encoded = make([]byte, 8)
		binary.LittleEndian.PutUint64(encoded, uint64(val))
	case float32:
		encoded = make([]byte, 4)
		binary.LittleEndian.PutUint32(encoded, math.Float32bits(val))
	case float64:
		encoded = make([]byte, 8)
		binary.LittleEndian.PutUint64(encoded, math.Float64bits(val))
	case string:
		encoded = []byte(val)
	case []byte:
		encoded = val
	default:
		return nil, ErrTypeMismatch
	}
	return encoded, nil
}

// CheckSize verifies that a byte slice's length matches the fixed width
// a CANopen basic datatype expects. Variable-length types (strings,
// domain) are unchecked.
func CheckSize(length int, dataType uint8) error {
	switch dataType {
	case BOOLEAN, UNSIGNED8, INTEGER8:
		switch {
		case length < 1:
			return ErrDataShort
		case length > 1:
			return ErrDataLong
		}
	case UNSIGNED16, INTEGER16:
		switch {
		case length < 2:
			return ErrDataShort
		case length > 2:
			return ErrDataLong
		}
	case UNSIGNED32, INTEGER32, REAL32:
		switch {
		case length < 4:
			return ErrDataShort
		case length > 4:
			return ErrDataLong
		}
	case UNSIGNED64, INTEGER64, REAL64:
		switch {
		case length < 8:
			return ErrDataShort
		case length > 8:
			return ErrDataLong
		}
	}
	return nil
}

// DecodeToType implements raw_to_type(bytes, data_type); it returns one
// of string, int64, uint64 or float64 regardless of the exact width.
func DecodeToType(data []byte, dataType uint8) (any, error) {
	if err := CheckSize(len(data), dataType); err != nil {
		return nil, err
	}
	switch dataType {
	case BOOLEAN, UNSIGNED8:
		return uint64(data[0]), nil
	case INTEGER8:
		return int64(int8(data[0])), nil
	case UNSIGNED16:
		return uint64(binary.LittleEndian.Uint16(data)), nil
	case INTEGER16:
		return int64(int16(binary.LittleEndian.Uint16(data))), nil
	case UNSIGNED32:
		return uint64(binary.LittleEndian.Uint32(data)), nil
	case INTEGER32:
		return int64(int32(binary.LittleEndian.Uint32(data))), nil
	case UNSIGNED64:
		return binary.LittleEndian.Uint64(data), nil
	case INTEGER64:
		return int64(binary.LittleEndian.Uint64(data)), nil
	case REAL32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data))), nil
	case REAL64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case VISIBLE_STRING, OCTET_STRING:
		return string(data), nil
	default:
		return nil, ErrTypeMismatch
	}
}

// DecodeToTypeExact is like DecodeToType but preserves the exact Go
// width (uint8, int16, ...) instead of widening everything to 64 bits.
func DecodeToTypeExact(data []byte, dataType uint8) (any, error) {
	if err := CheckSize(len(data), dataType); err != nil {
		return nil, err
	}
	switch dataType {
	case BOOLEAN, UNSIGNED8:
		return data[0], nil
	case INTEGER8:
		return int8(data[0]), nil
	case UNSIGNED16:
		return binary.LittleEndian.Uint16(data), nil
	case INTEGER16:
		return int16(binary.LittleEndian.Uint16(data)), nil
	case UNSIGNED32:
		return binary.LittleEndian.Uint32(data), nil
	case INTEGER32:
		return int32(binary.LittleEndian.Uint32(data)), nil
	case UNSIGNED64:
		return binary.LittleEndian.Uint64(data), nil
	case INTEGER64:
		return int64(binary.LittleEndian.Uint64(data)), nil
	case REAL32:
		return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
	case REAL64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case VISIBLE_STRING, OCTET_STRING:
		return string(data), nil
	default:
		return nil, ErrTypeMismatch
	}
}

// EncodeAttribute maps an EDS-style AccessType string to the attribute
// bitmask, kept only because NewVariable's callers (and tests) still
// speak that vocabulary.
func EncodeAttribute(accessType string, dataType uint8) uint8 {
	var attribute uint8
	switch accessType {
	case "rw":
		attribute = AttributeSdoRw
	case "ro", "const":
		attribute = AttributeSdoR
	case "wo":
		attribute = AttributeSdoW
	default:
		attribute = AttributeSdoRw
	}
	if dataType == VISIBLE_STRING || dataType == OCTET_STRING {
		attribute |= AttributeStr
	}
	return attribute
}
