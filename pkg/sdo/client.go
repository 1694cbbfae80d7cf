package sdo

import (
	"context"
	"sync"
	"time"

	can "github.com/go-sdo/sdoengine/pkg/can"
	log "github.com/sirupsen/logrus"
)

// serverLink is the client's view of one configured server: the two
// resolved COB-IDs, the index that backs this configuration in the
// client's object dictionary, and the per-server transfer queue.
type serverLink struct {
	serverID uint8
	index    uint16
	cobIdTx  uint32 // client -> server
	cobIdRx  uint32 // server -> client
	timeout  time.Duration
	queue    *Queue

	mu      sync.Mutex
	current *TransferCtx
}

// ClientFSM is the SDO client side of one CANopen node: it holds one
// serverLink per remote server it talks to and dispatches inbound
// frames to whichever link's current transfer is waiting.
type ClientFSM struct {
	mu sync.RWMutex

	dict      Dictionary
	transport Transport
	logger    *log.Entry
	timeout   time.Duration

	byServerID map[uint8]*serverLink
	byCobIdRx  map[uint32]*serverLink
}

// NewClientFSM builds a client bound to dict and transport, using
// sdo.DefaultTimeout for every server added afterwards. Call AddServer
// (or Init to load pre-configured dictionary entries) before issuing
// transfers, then Subscribe the FSM's Handle method with the transport.
func NewClientFSM(dict Dictionary, transport Transport) *ClientFSM {
	return NewClientFSMWithTimeout(dict, transport, DefaultTimeout)
}

// NewClientFSMWithTimeout is NewClientFSM with an explicit per-transfer
// deadline, the field internal/config.ClientOptions.Timeout is meant to
// carry in from a caller's configuration.
func NewClientFSMWithTimeout(dict Dictionary, transport Transport, timeout time.Duration) *ClientFSM {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ClientFSM{
		dict:       dict,
		transport:  transport,
		logger:     newComponentLogger("sdo-client"),
		timeout:    timeout,
		byServerID: map[uint8]*serverLink{},
		byCobIdRx:  map[uint32]*serverLink{},
	}
}

// AddServer registers a remote server this client can address, writing
// the corresponding record into the client parameter area (0x1280-
// 0x12FF) of the object dictionary.
func (c *ClientFSM) AddServer(serverID uint8, cobIdTx, cobIdRx uint32) error {
	if serverID < 1 || serverID > 127 {
		return ErrRangeInvalid
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byServerID[serverID]; exists {
		return ErrDuplicateServer
	}
	index, err := firstFreeIndex(c.dict, clientParamStart, clientParamEnd)
	if err != nil {
		return err
	}
	if err := c.dict.SetConnectionParameter(index, cobIdTx|cobIdValidBit, cobIdRx|cobIdValidBit, serverID); err != nil {
		return err
	}
	link := &serverLink{
		serverID: serverID, index: index,
		cobIdTx: resolveCobId(cobIdTx&cobIdMask, serverID),
		cobIdRx: resolveCobId(cobIdRx&cobIdMask, serverID),
		timeout: c.timeout, queue: newQueue(),
	}
	c.byServerID[serverID] = link
	c.byCobIdRx[link.cobIdRx] = link
	return nil
}

// RemoveServer drops a registered server and deletes its backing
// dictionary entry.
func (c *ClientFSM) RemoveServer(serverID uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	link, ok := c.byServerID[serverID]
	if !ok {
		return ErrServerNotFound
	}
	delete(c.byServerID, serverID)
	delete(c.byCobIdRx, link.cobIdRx)
	c.dict.RemoveEntry(link.index)
	return nil
}

// Init populates the client from any client-parameter records already
// present in the object dictionary, for a caller that configures the
// dictionary directly (e.g. loaded from a DCF-equivalent source)
// instead of calling AddServer.
func (c *ClientFSM) Init() error {
	params, err := scanParameterRange(c.dict, clientParamStart, clientParamEnd)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range params {
		if p.peerID == 0 || !p.sub1OK || !p.sub2OK {
			continue
		}
		if _, exists := c.byServerID[p.peerID]; exists {
			continue
		}
		link := &serverLink{
			serverID: p.peerID, index: p.index,
			cobIdTx: p.sub1, cobIdRx: p.sub2,
			timeout: c.timeout, queue: newQueue(),
		}
		c.byServerID[p.peerID] = link
		c.byCobIdRx[link.cobIdRx] = link
	}
	return nil
}

func (c *ClientFSM) link(serverID uint8) (*serverLink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	link, ok := c.byServerID[serverID]
	if !ok {
		return nil, ErrServerNotFound
	}
	return link, nil
}

// Upload reads index:subIndex from serverID, returning the raw wire
// bytes received. An expedited transfer completes with the server's
// initiate response; a segmented one blocks until the last segment
// arrives. Either kind returns an error if the transfer times out or
// aborts.
func (c *ClientFSM) Upload(ctx context.Context, serverID uint8, index uint16, subIndex uint8) ([]byte, error) {
	link, err := c.link(serverID)
	if err != nil {
		return nil, err
	}
	result, err := c.run(ctx, link, func(t *TransferCtx) {
		t.start()
		frame := encodeInitiateUpload(index, subIndex)
		if err := t.send(frame); err != nil {
			t.reject(err)
		}
	}, index, subIndex, 0)
	if err != nil {
		return nil, err
	}
	data, _ := result.([]byte)
	return data, nil
}

// Download writes data to index:subIndex on serverID. Transfers of 1 to
// 4 bytes go expedited in the initiate frame; longer ones, and an empty
// payload, are segmented automatically.
func (c *ClientFSM) Download(ctx context.Context, serverID uint8, index uint16, subIndex uint8, data []byte) error {
	link, err := c.link(serverID)
	if err != nil {
		return err
	}
	_, err = c.run(ctx, link, func(t *TransferCtx) {
		t.start()
		t.mu.Lock()
		t.buffer = data
		t.mu.Unlock()
		expedited := len(data) >= 1 && len(data) <= 4
		frame := encodeInitiateDownload(index, subIndex, uint32(len(data)), expedited, data)
		if err := t.send(frame); err != nil {
			t.reject(err)
			return
		}
		if expedited {
			// Completion is signaled by the server's download-initiate
			// ack, handled in Handle; nothing further to do here.
			return
		}
	}, index, subIndex, len(data))
	return err
}

// run serializes one transfer through link's queue: builds the
// TransferCtx, registers it as the link's current transfer, invokes
// issue to send the opening frame, then blocks for completion.
func (c *ClientFSM) run(ctx context.Context, link *serverLink, issue func(*TransferCtx), index uint16, subIndex uint8, downloadLen int) (any, error) {
	ctxDone := make(chan struct{})
	var t *TransferCtx
	go func() {
		t = link.queue.push(func() *TransferCtx {
			tc := newTransferCtx(index, subIndex, 0, link.cobIdTx, link.timeout, c.transport, c.logger)
			if downloadLen > 0 {
				tc.size = uint32(downloadLen)
				tc.sizeKnown = true
			}
			link.mu.Lock()
			link.current = tc
			link.mu.Unlock()
			issue(tc)
			return tc
		})
		close(ctxDone)
	}()

	select {
	case <-ctxDone:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	value, err := t.wait()
	link.mu.Lock()
	if link.current == t {
		link.current = nil
	}
	link.mu.Unlock()
	return value, err
}

// Handle implements can.FrameListener: every inbound frame is looked up
// by its identifier against the configured servers' cob_id_rx and
// routed to that link's current transfer, if any.
func (c *ClientFSM) Handle(frame can.Frame) {
	c.mu.RLock()
	link, ok := c.byCobIdRx[frame.ID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	link.mu.Lock()
	t := link.current
	link.mu.Unlock()
	if t == nil || !t.isActive() {
		return
	}

	var data [8]byte
	copy(data[:], frame.Data[:])

	if isAbort(data) {
		t.reject(newSdoError(decodeAbortCode(data), t.Index, t.SubIndex, true))
		return
	}

	switch commandSpecifier(data) {
	case scsUploadInitiate:
		c.handleUploadInitiate(t, data)
	case scsUploadSegment:
		c.handleUploadSegment(t, data)
	case scsDownloadInitiate:
		c.handleDownloadInitiateAck(t, data)
	case scsDownloadSegment:
		c.handleDownloadSegmentAck(t, data)
	default:
		t.abort(AbortBadCommand)
	}
}

func (c *ClientFSM) handleUploadInitiate(t *TransferCtx, data [8]byte) {
	t.refresh()
	expedited, payload, sizeIndicated, size := decodeUploadInitiateResponse(data)
	if expedited {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		t.resolve(buf)
		return
	}
	t.mu.Lock()
	if sizeIndicated {
		t.size = size
		t.sizeKnown = true
	}
	t.buffer = t.buffer[:0]
	t.toggle = false
	t.mu.Unlock()
	frame := encodeUploadSegmentRequest(false)
	if err := t.send(frame); err != nil {
		t.reject(err)
	}
}

func (c *ClientFSM) handleUploadSegment(t *TransferCtx, data [8]byte) {
	toggle, payload, last := decodeSegment(data)
	t.mu.Lock()
	if toggle != t.toggle {
		t.mu.Unlock()
		t.abort(AbortToggleBit)
		return
	}
	t.buffer = append(t.buffer, payload...)
	buf := t.buffer
	size, sizeKnown := t.size, t.sizeKnown
	t.toggle = !t.toggle
	nextToggle := t.toggle
	t.mu.Unlock()
	t.refresh()
	if last {
		if sizeKnown && uint32(len(buf)) != size {
			t.abort(AbortBadLength)
			return
		}
		out := make([]byte, len(buf))
		copy(out, buf)
		t.resolve(out)
		return
	}
	frame := encodeUploadSegmentRequest(nextToggle)
	if err := t.send(frame); err != nil {
		t.reject(err)
	}
}

func (c *ClientFSM) handleDownloadInitiateAck(t *TransferCtx, data [8]byte) {
	t.mu.Lock()
	buffer := t.buffer
	t.mu.Unlock()
	if len(buffer) >= 1 && len(buffer) <= 4 {
		t.resolve(nil)
		return
	}
	t.refresh()
	t.mu.Lock()
	t.toggle = false
	t.mu.Unlock()
	c.sendNextDownloadSegment(t)
}

func (c *ClientFSM) handleDownloadSegmentAck(t *TransferCtx, data [8]byte) {
	toggle := data[0]&(1<<4) != 0
	t.mu.Lock()
	if toggle != t.toggle {
		t.mu.Unlock()
		t.abort(AbortToggleBit)
		return
	}
	t.toggle = !t.toggle
	remaining := len(t.buffer)
	t.mu.Unlock()
	t.refresh()
	if remaining == 0 {
		t.resolve(nil)
		return
	}
	c.sendNextDownloadSegment(t)
}

func (c *ClientFSM) sendNextDownloadSegment(t *TransferCtx) {
	t.mu.Lock()
	n := len(t.buffer)
	if n > 7 {
		n = 7
	}
	chunk := t.buffer[:n]
	t.buffer = t.buffer[n:]
	last := len(t.buffer) == 0
	toggle := t.toggle
	t.mu.Unlock()

	frame := encodeSegment(ccsDownloadSegment, toggle, chunk, last)
	if err := t.send(frame); err != nil {
		t.reject(err)
	}
}
