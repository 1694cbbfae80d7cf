package virtual

import (
	"errors"
	"sync"

	can "github.com/go-sdo/sdoengine/pkg/can"
)

// InprocBus is an in-memory multi-endpoint CAN bus for tests: every
// Endpoint opened from it receives every frame any other Endpoint sends,
// with no network round-trip. This is the test double the engine's own
// tests run against; the TCP-based Bus in virtual.go is for talking to
// an external broker.
type InprocBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*Endpoint]struct{}
}

// NewInprocBus creates a new, empty in-process bus.
func NewInprocBus() *InprocBus {
	return &InprocBus{endpoints: make(map[*Endpoint]struct{})}
}

// Open attaches a new Endpoint to the bus. Each endpoint implements
// can.Bus on its own, so it can be handed straight to a client or server
// FSM constructor.
func (bus *InprocBus) Open() *Endpoint {
	endpoint := &Endpoint{bus: bus}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if !bus.closed {
		bus.endpoints[endpoint] = struct{}{}
	}
	return endpoint
}

// Close detaches every endpoint still open on the bus.
func (bus *InprocBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.closed = true
	bus.endpoints = make(map[*Endpoint]struct{})
	return nil
}

var ErrBusClosed = errors.New("inproc: bus closed")

// Endpoint is one connection point on an InprocBus; it implements
// can.Bus.
type Endpoint struct {
	bus *InprocBus

	mu           sync.Mutex
	framehandler can.FrameListener
	receiveOwn   bool
	connected    bool
}

func (endpoint *Endpoint) Connect(...any) error {
	endpoint.mu.Lock()
	defer endpoint.mu.Unlock()
	endpoint.connected = true
	return nil
}

func (endpoint *Endpoint) Disconnect() error {
	endpoint.bus.mu.Lock()
	delete(endpoint.bus.endpoints, endpoint)
	endpoint.bus.mu.Unlock()
	endpoint.mu.Lock()
	endpoint.connected = false
	endpoint.mu.Unlock()
	return nil
}

// Send broadcasts frame to every other endpoint currently open on the
// bus, synchronously, in the calling goroutine. SetReceiveOwn controls
// whether this endpoint also re-delivers the frame to itself.
func (endpoint *Endpoint) Send(frame can.Frame) error {
	endpoint.mu.Lock()
	connected := endpoint.connected
	receiveOwn := endpoint.receiveOwn
	handler := endpoint.framehandler
	endpoint.mu.Unlock()
	if !connected {
		return ErrBusClosed
	}

	endpoint.bus.mu.RLock()
	if endpoint.bus.closed {
		endpoint.bus.mu.RUnlock()
		return ErrBusClosed
	}
	targets := make([]*Endpoint, 0, len(endpoint.bus.endpoints))
	for other := range endpoint.bus.endpoints {
		if other != endpoint {
			targets = append(targets, other)
		}
	}
	endpoint.bus.mu.RUnlock()

	for _, target := range targets {
		target.deliver(frame)
	}
	if receiveOwn && handler != nil {
		handler.Handle(frame)
	}
	return nil
}

func (endpoint *Endpoint) deliver(frame can.Frame) {
	endpoint.mu.Lock()
	handler := endpoint.framehandler
	endpoint.mu.Unlock()
	if handler != nil {
		handler.Handle(frame)
	}
}

// Subscribe registers the handler invoked for every frame another
// endpoint sends.
func (endpoint *Endpoint) Subscribe(handler can.FrameListener) error {
	endpoint.mu.Lock()
	defer endpoint.mu.Unlock()
	endpoint.framehandler = handler
	return nil
}

func (endpoint *Endpoint) SetReceiveOwn(receiveOwn bool) {
	endpoint.mu.Lock()
	defer endpoint.mu.Unlock()
	endpoint.receiveOwn = receiveOwn
}

// NewInprocCanBus satisfies can.NewInterfaceFunc so the in-process bus
// can also be reached through can.NewBus("inproc", <shared key>, 0) when
// every peer in a test process resolves the same shared bus by channel
// name.
func NewInprocCanBus(channel string) (can.Bus, error) {
	bus := sharedInprocBus(channel)
	return bus.Open(), nil
}

var (
	sharedMu    sync.Mutex
	sharedBuses = map[string]*InprocBus{}
)

func sharedInprocBus(channel string) *InprocBus {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	bus, ok := sharedBuses[channel]
	if !ok {
		bus = NewInprocBus()
		sharedBuses[channel] = bus
	}
	return bus
}

func init() {
	can.RegisterInterface("inproc", NewInprocCanBus)
}
