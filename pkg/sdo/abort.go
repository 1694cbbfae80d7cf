package sdo

import "fmt"

// AbortCode is the 32-bit SDO abort code carried in byte 4..7 of an
// abort frame. Values are fixed by CiA 301; this is a closed
// enumeration, not an extensible one.
type AbortCode uint32

const (
	AbortToggleBit         AbortCode = 0x05030000
	AbortTimeout           AbortCode = 0x05040000
	AbortBadCommand        AbortCode = 0x05040001
	AbortOutOfMemory       AbortCode = 0x05040005
	AbortUnsupportedAccess AbortCode = 0x06010000
	AbortWriteOnly         AbortCode = 0x06010001
	AbortReadOnly          AbortCode = 0x06010002
	AbortObjectUndefined   AbortCode = 0x06020000
	AbortBadLength         AbortCode = 0x06070010
	AbortDataLong          AbortCode = 0x06070012
	AbortDataShort         AbortCode = 0x06070013
	AbortBadSubIndex       AbortCode = 0x06090011
	AbortBadValue          AbortCode = 0x06090030
	AbortValueHigh         AbortCode = 0x06090031
	AbortValueLow          AbortCode = 0x06090032
	AbortRangeError        AbortCode = 0x06090036
	AbortSdoNotAvailable   AbortCode = 0x060A0023
	AbortGeneralError      AbortCode = 0x08000000
	AbortDataTransfer      AbortCode = 0x08000020
	AbortLocalControl      AbortCode = 0x08000021
	AbortDeviceState       AbortCode = 0x08000022
	AbortOdError           AbortCode = 0x08000023
	AbortNoData            AbortCode = 0x08000024
)

var abortDescriptions = map[AbortCode]string{
	AbortToggleBit:         "toggle bit not altered",
	AbortTimeout:           "SDO protocol timed out",
	AbortBadCommand:        "command specifier not valid or unknown",
	AbortOutOfMemory:       "out of memory",
	AbortUnsupportedAccess: "unsupported access to an object",
	AbortWriteOnly:         "attempt to read a write only object",
	AbortReadOnly:          "attempt to write a read only object",
	AbortObjectUndefined:   "object does not exist in the object dictionary",
	AbortBadLength:         "data type does not match, length of service parameter does not match",
	AbortDataLong:          "data type does not match, length too high",
	AbortDataShort:         "data type does not match, length too short",
	AbortBadSubIndex:       "sub-index does not exist",
	AbortBadValue:          "invalid value for parameter",
	AbortValueHigh:         "value range of parameter written too high",
	AbortValueLow:          "value range of parameter written too low",
	AbortRangeError:        "maximum value is less than minimum value",
	AbortSdoNotAvailable:   "resource not available: SDO connection",
	AbortGeneralError:      "general error",
	AbortDataTransfer:      "data cannot be transferred or stored to the application",
	AbortLocalControl:      "data cannot be transferred because of local control",
	AbortDeviceState:       "data cannot be transferred because of present device state",
	AbortOdError:           "object dictionary not present or dynamic generation failed",
	AbortNoData:            "no data available",
}

// Description returns the human-readable table entry for code, or
// "Unknown error" if code is not one of the standard values — unknown
// inbound codes are still preserved numerically.
func (code AbortCode) Description() string {
	if description, ok := abortDescriptions[code]; ok {
		return description
	}
	return "Unknown error"
}

func (code AbortCode) Error() string {
	return fmt.Sprintf("x%x: %s", uint32(code), code.Description())
}

// SdoError is the structured failure a transfer's future resolves with
// on abort, protocol violation, or timeout.
type SdoError struct {
	Code     AbortCode
	Index    uint16
	SubIndex uint8
	HasSub   bool
	Message  string
}

func newSdoError(code AbortCode, index uint16, subIndex uint8, hasSub bool) *SdoError {
	return &SdoError{Code: code, Index: index, SubIndex: subIndex, HasSub: hasSub, Message: code.Description()}
}

func (e *SdoError) Error() string {
	if e.HasSub {
		return fmt.Sprintf("sdo abort x%x:%x: %s (%s)", e.Index, e.SubIndex, e.Message, e.Code)
	}
	return fmt.Sprintf("sdo abort x%x: %s (%s)", e.Index, e.Message, e.Code)
}
