package virtual

import (
	"sync"
	"testing"
	"time"

	can "github.com/go-sdo/sdoengine/pkg/can"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	frames []can.Frame
}

func (r *recorder) Handle(frame can.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestInprocBusDeliversToOtherEndpoints(t *testing.T) {
	bus := NewInprocBus()
	a := bus.Open()
	b := bus.Open()
	require.NoError(t, a.Connect())
	require.NoError(t, b.Connect())

	rx := &recorder{}
	require.NoError(t, b.Subscribe(rx))

	frame := can.Frame{ID: 0x601, DLC: 8, Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	require.NoError(t, a.Send(frame))

	assert.Eventually(t, func() bool { return rx.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, frame, rx.frames[0])
}

func TestInprocBusDoesNotLoopbackByDefault(t *testing.T) {
	bus := NewInprocBus()
	a := bus.Open()
	require.NoError(t, a.Connect())
	rx := &recorder{}
	require.NoError(t, a.Subscribe(rx))

	require.NoError(t, a.Send(can.Frame{ID: 0x601, DLC: 0}))
	assert.Equal(t, 0, rx.count())

	a.SetReceiveOwn(true)
	require.NoError(t, a.Send(can.Frame{ID: 0x601, DLC: 0}))
	assert.Equal(t, 1, rx.count())
}

func TestInprocBusDisconnectRemovesEndpoint(t *testing.T) {
	bus := NewInprocBus()
	a := bus.Open()
	b := bus.Open()
	require.NoError(t, a.Connect())
	require.NoError(t, b.Connect())

	rx := &recorder{}
	require.NoError(t, b.Subscribe(rx))
	require.NoError(t, b.Disconnect())

	require.NoError(t, a.Send(can.Frame{ID: 0x601, DLC: 0}))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, rx.count())
}
