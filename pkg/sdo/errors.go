package sdo

import "errors"

// Configuration errors, raised synchronously from add_*/remove_*/init.
// Nothing is retried; these are programmer/configuration mistakes, not
// transfer-time protocol failures.
var (
	ErrRangeInvalid     = errors.New("sdo: peer id outside 1..127")
	ErrDuplicateServer  = errors.New("sdo: server already registered")
	ErrDuplicateClient  = errors.New("sdo: client already registered")
	ErrServerNotFound   = errors.New("sdo: server not found")
	ErrClientNotFound   = errors.New("sdo: client not found")
	ErrUnsupportedCobId = errors.New("sdo: dynamic or extended COB-ID is not supported")
	ErrNoFreeParameter  = errors.New("sdo: no free parameter entry in range")
)
