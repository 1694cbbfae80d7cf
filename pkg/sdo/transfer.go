package sdo

import (
	"sync"
	"time"

	can "github.com/go-sdo/sdoengine/pkg/can"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout is the client/server default transfer timeout. The
// source this engine is modeled on set this to a bare "30" with the
// unit left implicit; the test suite around it only makes sense read as
// milliseconds, so that is what a zero or negative timeout passed to
// NewClientFSMWithTimeout/NewServerFSMWithTimeout resolves to.
const DefaultTimeout = 30 * time.Millisecond

// transferResult is what a TransferCtx's completion channel carries.
type transferResult struct {
	value any
	err   error
}

// TransferCtx is the per-transfer state shared by both FSMs: the
// accumulating buffer, the toggle bit, the deadline timer, and the
// one-shot completion channel a caller's Upload/Download blocks on. It
// is exclusively owned by whichever FSM created it; inbound dispatch
// reaches it only by cob_id_rx lookup, never by a shared handle.
type TransferCtx struct {
	mu sync.Mutex

	Index    uint16
	SubIndex uint8
	DataType uint8

	buffer    []byte
	size      uint32 // declared total; meaningful only when sizeKnown
	sizeKnown bool

	toggle bool
	active bool

	timeout time.Duration
	timer   *time.Timer

	cobIdTx   uint32
	transport Transport

	// done is closed exactly once, on resolve/reject/abort, so that both
	// the caller's wait() and the owning Queue's progression goroutine
	// can observe completion independently.
	done     chan struct{}
	result   transferResult
	resolved bool

	logger *log.Entry
}

func newTransferCtx(index uint16, subIndex uint8, dataType uint8, cobIdTx uint32, timeout time.Duration, transport Transport, logger *log.Entry) *TransferCtx {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TransferCtx{
		Index: index, SubIndex: subIndex, DataType: dataType,
		cobIdTx: cobIdTx, timeout: timeout, transport: transport,
		done:   make(chan struct{}),
		logger: logger,
	}
}

// start arms the deadline timer and marks the transfer active.
func (t *TransferCtx) start() {
	t.mu.Lock()
	t.active = true
	t.armTimerLocked()
	t.mu.Unlock()
}

func (t *TransferCtx) armTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.timeout, func() {
		t.abort(AbortTimeout)
	})
}

// refresh restarts the deadline timer on each inbound progress frame.
func (t *TransferCtx) refresh() {
	t.mu.Lock()
	if t.active {
		t.armTimerLocked()
	}
	t.mu.Unlock()
}

// send emits an 8-byte frame through the transport with cob_id_tx as
// the outbound identifier.
func (t *TransferCtx) send(data [8]byte) error {
	return t.transport.Send(can.Frame{ID: t.cobIdTx, DLC: 8, Data: data})
}

// resolve completes the transfer successfully; value is nil for
// downloads.
func (t *TransferCtx) resolve(value any) {
	t.finish(transferResult{value: value})
}

// reject completes the transfer with an error, without notifying the
// peer.
func (t *TransferCtx) reject(err error) {
	t.finish(transferResult{err: err})
}

// abort emits an abort frame to the peer and then rejects with the
// matching SdoError. A transfer that is no longer active is left alone
// — a late timer fire racing a resolve is a no-op.
func (t *TransferCtx) abort(code AbortCode) {
	t.mu.Lock()
	active := t.active
	t.mu.Unlock()
	if !active {
		return
	}
	frame := encodeAbort(t.Index, t.SubIndex, code)
	if err := t.send(frame); err != nil {
		t.logger.Warnf("failed to send abort frame: %v", err)
	}
	t.reject(newSdoError(code, t.Index, t.SubIndex, true))
}

func (t *TransferCtx) finish(result transferResult) {
	t.mu.Lock()
	if t.resolved || !t.active {
		t.mu.Unlock()
		return
	}
	t.resolved = true
	t.active = false
	t.result = result
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
	close(t.done)
}

// wait blocks until the transfer resolves, rejects, or aborts. A caller
// that wants concurrency runs Upload/Download in its own goroutine
// instead of receiving a value back asynchronously. Multiple callers
// (the original caller and the owning Queue's progression goroutine)
// may wait independently since done is closed, not sent on.
func (t *TransferCtx) wait() (any, error) {
	<-t.done
	return t.result.value, t.result.err
}

func (t *TransferCtx) isActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
