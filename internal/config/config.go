// Package config holds the plain option structs the engine's
// constructors accept, grounded on pkg/config's flat-struct style in
// the teacher repo rather than a flag/env parsing layer — this module
// has no configuration surface of its own beyond what a caller passes
// to the sdo constructors. Those do not take these structs: the Timeout
// field corresponds to the time.Duration argument of
// NewClientFSMWithTimeout/NewServerFSMWithTimeout.
package config

import "time"

// ClientOptions configures one ClientFSM.
type ClientOptions struct {
	// NodeID is this node's own CANopen node-id, 1..127.
	NodeID uint8
	// Timeout is the per-transfer deadline; zero resolves to
	// sdo.DefaultTimeout.
	Timeout time.Duration
}

// ServerOptions configures one ServerFSM.
type ServerOptions struct {
	NodeID  uint8
	Timeout time.Duration
}

// DefaultClientOptions returns zero-value options, i.e. the engine's
// own defaults apply.
func DefaultClientOptions(nodeID uint8) ClientOptions {
	return ClientOptions{NodeID: nodeID}
}

// DefaultServerOptions returns zero-value options, i.e. the engine's
// own defaults apply.
func DefaultServerOptions(nodeID uint8) ServerOptions {
	return ServerOptions{NodeID: nodeID}
}
