package sdo

import (
	"encoding/binary"
	"sync"
	"time"

	can "github.com/go-sdo/sdoengine/pkg/can"
	log "github.com/sirupsen/logrus"
)

// clientLink is the server's view of one remote client it answers: the
// two resolved COB-IDs and the index backing this configuration in the
// object dictionary. Unlike the client side, the server has no queue of
// its own issuing — it only ever reacts to the remote client's requests
// — but still serializes concurrent requests from the same client
// through one TransferCtx at a time.
type clientLink struct {
	clientID uint8
	index    uint16
	cobIdRx  uint32 // client -> server
	cobIdTx  uint32 // server -> client

	mu      sync.Mutex
	current *TransferCtx
}

// ServerFSM is the SDO server side of one CANopen node: it answers
// upload/download requests from whichever remote clients it has been
// configured to serve, reading and writing through the object
// dictionary it was built with.
type ServerFSM struct {
	mu sync.RWMutex

	dict      Dictionary
	transport Transport
	logger    *log.Entry
	timeout   time.Duration

	byClientID map[uint8]*clientLink
	byCobIdRx  map[uint32]*clientLink
}

// NewServerFSM builds a server bound to dict and transport, using
// sdo.DefaultTimeout for every transfer it answers. Subscribe its
// Handle method with the transport once configured.
func NewServerFSM(dict Dictionary, transport Transport) *ServerFSM {
	return NewServerFSMWithTimeout(dict, transport, DefaultTimeout)
}

// NewServerFSMWithTimeout is NewServerFSM with an explicit per-transfer
// deadline, the field internal/config.ServerOptions.Timeout is meant to
// carry in from a caller's configuration.
func NewServerFSMWithTimeout(dict Dictionary, transport Transport, timeout time.Duration) *ServerFSM {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ServerFSM{
		dict:       dict,
		transport:  transport,
		logger:     newComponentLogger("sdo-server"),
		timeout:    timeout,
		byClientID: map[uint8]*clientLink{},
		byCobIdRx:  map[uint32]*clientLink{},
	}
}

// AddClient registers a remote client this server answers, writing the
// corresponding record into the server parameter area (0x1200-0x127F).
func (s *ServerFSM) AddClient(clientID uint8, cobIdRx, cobIdTx uint32) error {
	if clientID < 1 || clientID > 127 {
		return ErrRangeInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byClientID[clientID]; exists {
		return ErrDuplicateClient
	}
	index, err := firstFreeIndex(s.dict, serverParamStart, serverParamEnd)
	if err != nil {
		return err
	}
	if err := s.dict.SetConnectionParameter(index, cobIdRx|cobIdValidBit, cobIdTx|cobIdValidBit, clientID); err != nil {
		return err
	}
	link := &clientLink{
		clientID: clientID, index: index,
		cobIdRx: resolveCobId(cobIdRx&cobIdMask, clientID),
		cobIdTx: resolveCobId(cobIdTx&cobIdMask, clientID),
	}
	s.byClientID[clientID] = link
	s.byCobIdRx[link.cobIdRx] = link
	return nil
}

// RemoveClient drops a registered client and deletes its backing
// dictionary entry.
func (s *ServerFSM) RemoveClient(clientID uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.byClientID[clientID]
	if !ok {
		return ErrClientNotFound
	}
	delete(s.byClientID, clientID)
	delete(s.byCobIdRx, link.cobIdRx)
	s.dict.RemoveEntry(link.index)
	return nil
}

// Init populates the server from any server-parameter records already
// present in the object dictionary.
func (s *ServerFSM) Init() error {
	params, err := scanParameterRange(s.dict, serverParamStart, serverParamEnd)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range params {
		if p.peerID == 0 || !p.sub1OK || !p.sub2OK {
			continue
		}
		if _, exists := s.byClientID[p.peerID]; exists {
			continue
		}
		link := &clientLink{
			clientID: p.peerID, index: p.index,
			cobIdRx: p.sub1, cobIdTx: p.sub2,
		}
		s.byClientID[p.peerID] = link
		s.byCobIdRx[link.cobIdRx] = link
	}
	return nil
}

// Handle implements can.FrameListener: every inbound frame is looked up
// against the configured clients' cob_id_rx and dispatched by command
// specifier.
func (s *ServerFSM) Handle(frame can.Frame) {
	s.mu.RLock()
	link, ok := s.byCobIdRx[frame.ID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	var data [8]byte
	copy(data[:], frame.Data[:])

	if isAbort(data) {
		link.mu.Lock()
		t := link.current
		link.current = nil
		link.mu.Unlock()
		if t != nil {
			t.reject(newSdoError(decodeAbortCode(data), t.Index, t.SubIndex, true))
		}
		return
	}

	switch commandSpecifier(data) {
	case ccsDownloadInitiate:
		s.handleDownloadInitiate(link, data)
	case ccsDownloadSegment:
		s.handleDownloadSegment(link, data)
	case ccsUploadInitiate:
		s.handleUploadInitiate(link, data)
	case ccsUploadSegment:
		s.handleUploadSegment(link, data)
	default:
		index, subIndex := decodeIndex(data)
		s.sendAbort(link, index, subIndex, AbortBadCommand)
	}
}

func (s *ServerFSM) sendAbort(link *clientLink, index uint16, subIndex uint8, code AbortCode) {
	frame := encodeAbort(index, subIndex, code)
	if err := s.transport.Send(can.Frame{ID: link.cobIdTx, DLC: 8, Data: frame}); err != nil {
		s.logger.Warnf("failed to send abort frame: %v", err)
	}
}

func (s *ServerFSM) beginTransfer(link *clientLink, index uint16, subIndex uint8) *TransferCtx {
	t := newTransferCtx(index, subIndex, 0, link.cobIdTx, s.timeout, s.transport, s.logger)
	t.start()
	link.mu.Lock()
	link.current = t
	link.mu.Unlock()
	return t
}

func (s *ServerFSM) handleDownloadInitiate(link *clientLink, data [8]byte) {
	index, subIndex := decodeIndex(data)
	entry, ok := s.dict.GetEntry(index)
	if !ok {
		s.sendAbort(link, index, subIndex, AbortObjectUndefined)
		return
	}
	access, err := entry.AccessType(subIndex)
	if err != nil {
		s.sendAbort(link, index, subIndex, AbortBadSubIndex)
		return
	}
	if access == AccessReadOnly || access == AccessConstant {
		s.sendAbort(link, index, subIndex, AbortReadOnly)
		return
	}

	cmd := data[0]
	expedited := cmd&(1<<1) != 0
	sizeIndicated := cmd&0x01 != 0

	if expedited {
		n := 4
		if sizeIndicated {
			n = 4 - int((cmd>>2)&0x03)
		}
		if err := s.commit(entry, index, subIndex, data[4:4+n]); err != nil {
			s.sendAbort(link, index, subIndex, odErrToAbort(err))
			return
		}
		frame := encodeDownloadInitiateAck(index, subIndex)
		if err := s.transport.Send(can.Frame{ID: link.cobIdTx, DLC: 8, Data: frame}); err != nil {
			s.logger.Warnf("failed to send download-initiate ack: %v", err)
		}
		return
	}

	t := s.beginTransfer(link, index, subIndex)
	t.toggle = false
	if sizeIndicated {
		t.size = binary.LittleEndian.Uint32(data[4:8])
		t.sizeKnown = true
	}
	frame := encodeDownloadInitiateAck(index, subIndex)
	if err := t.send(frame); err != nil {
		t.reject(err)
	}
}

func (s *ServerFSM) handleDownloadSegment(link *clientLink, data [8]byte) {
	link.mu.Lock()
	t := link.current
	link.mu.Unlock()
	if t == nil || !t.isActive() {
		index, subIndex := decodeIndex(data)
		s.sendAbort(link, index, subIndex, AbortGeneralError)
		return
	}

	toggle, payload, last := decodeSegment(data)
	t.mu.Lock()
	if toggle != t.toggle {
		t.mu.Unlock()
		t.abort(AbortToggleBit)
		return
	}
	t.buffer = append(t.buffer, payload...)
	buffer := t.buffer
	index, subIndex := t.Index, t.SubIndex
	size, sizeKnown := t.size, t.sizeKnown
	t.mu.Unlock()

	if last {
		if sizeKnown && uint32(len(buffer)) != size {
			t.abort(AbortBadLength)
			return
		}
		entry, ok := s.dict.GetEntry(index)
		if !ok {
			t.abort(AbortObjectUndefined)
			return
		}
		if err := s.commit(entry, index, subIndex, buffer); err != nil {
			t.abort(odErrToAbort(err))
			return
		}
	}

	t.mu.Lock()
	ack := encodeDownloadSegmentAck(t.toggle)
	t.toggle = !t.toggle
	t.mu.Unlock()
	t.refresh()
	if err := t.send(ack); err != nil {
		t.reject(err)
		return
	}
	if last {
		t.resolve(nil)
	}
}

func (s *ServerFSM) handleUploadInitiate(link *clientLink, data [8]byte) {
	index, subIndex := decodeIndex(data)
	entry, ok := s.dict.GetEntry(index)
	if !ok {
		s.sendAbort(link, index, subIndex, AbortObjectUndefined)
		return
	}
	access, err := entry.AccessType(subIndex)
	if err != nil {
		s.sendAbort(link, index, subIndex, AbortBadSubIndex)
		return
	}
	if access == AccessWriteOnly {
		s.sendAbort(link, index, subIndex, AbortWriteOnly)
		return
	}

	raw, err := entry.Raw(subIndex)
	if err != nil {
		s.sendAbort(link, index, subIndex, odErrToAbort(err))
		return
	}

	if len(raw) >= 1 && len(raw) <= 4 {
		frame := encodeUploadInitiateExpedited(index, subIndex, raw)
		if err := s.transport.Send(can.Frame{ID: link.cobIdTx, DLC: 8, Data: frame}); err != nil {
			s.logger.Warnf("failed to send expedited upload-initiate: %v", err)
		}
		return
	}

	t := s.beginTransfer(link, index, subIndex)
	t.mu.Lock()
	t.buffer = raw
	t.toggle = false
	t.mu.Unlock()
	frame := encodeUploadInitiateSegmented(index, subIndex, uint32(len(raw)))
	if err := t.send(frame); err != nil {
		t.reject(err)
	}
}

func (s *ServerFSM) handleUploadSegment(link *clientLink, data [8]byte) {
	link.mu.Lock()
	t := link.current
	link.mu.Unlock()
	if t == nil || !t.isActive() {
		index, subIndex := decodeIndex(data)
		s.sendAbort(link, index, subIndex, AbortGeneralError)
		return
	}

	toggle := data[0]&(1<<4) != 0
	t.mu.Lock()
	if toggle != t.toggle {
		t.mu.Unlock()
		t.abort(AbortToggleBit)
		return
	}
	n := len(t.buffer)
	if n > 7 {
		n = 7
	}
	chunk := t.buffer[:n]
	t.buffer = t.buffer[n:]
	last := len(t.buffer) == 0
	t.toggle = !t.toggle
	t.mu.Unlock()
	t.refresh()

	outFrame := encodeSegment(scsUploadSegment, toggle, chunk, last)
	if err := t.send(outFrame); err != nil {
		t.reject(err)
		return
	}
	if last {
		t.resolve(nil)
	}
}

// fixedWidth reports the wire length of a fixed-width CiA 301 basic
// type, and false for the variable-length ones (strings, domain) that
// carry their own length instead.
func fixedWidth(dataType uint8) (int, bool) {
	switch dataType {
	case 0x01, 0x02, 0x05: // BOOLEAN, INTEGER8, UNSIGNED8
		return 1, true
	case 0x03, 0x06: // INTEGER16, UNSIGNED16
		return 2, true
	case 0x04, 0x07, 0x08: // INTEGER32, UNSIGNED32, REAL32
		return 4, true
	case 0x11, 0x15, 0x1B: // REAL64, INTEGER64, UNSIGNED64
		return 8, true
	default:
		return 0, false
	}
}

// commit writes data into entry:subIndex, range-checking size and
// numeric limits before the write. Fixed-width types must match their
// declared length exactly; variable-length types (strings, domain) get
// no length check here and reach Entry.SetRaw as received.
func (s *ServerFSM) commit(entry Entry, index uint16, subIndex uint8, data []byte) error {
	dataType, err := entry.DataType(subIndex)
	if err != nil {
		return err
	}
	if width, ok := fixedWidth(dataType); ok && len(data) != width {
		if len(data) > width {
			return errAbort(AbortDataLong)
		}
		return errAbort(AbortDataShort)
	}
	if high, ok := entry.HighLimit(subIndex); ok {
		if cmp, ok := s.compareRaw(data, high, dataType); ok && cmp > 0 {
			return errAbort(AbortValueHigh)
		}
	}
	if low, ok := entry.LowLimit(subIndex); ok {
		if cmp, ok := s.compareRaw(data, low, dataType); ok && cmp < 0 {
			return errAbort(AbortValueLow)
		}
	}
	return entry.SetRaw(subIndex, data)
}

// compareRaw decodes data and bound through dataType and compares them
// numerically, reporting ok=false for non-numeric types (strings,
// domains) where a high/low limit is meaningless.
func (s *ServerFSM) compareRaw(data, bound []byte, dataType uint8) (cmp int, ok bool) {
	dv, err := s.dict.RawToType(data, dataType)
	if err != nil {
		return 0, false
	}
	bv, err := s.dict.RawToType(bound, dataType)
	if err != nil {
		return 0, false
	}
	df, ok1 := toFloat(dv)
	bf, ok2 := toFloat(bv)
	if !ok1 || !ok2 {
		return 0, false
	}
	switch {
	case df > bf:
		return 1, true
	case df < bf:
		return -1, true
	default:
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// abortErr carries a concrete AbortCode through commit's error return
// so odErrToAbort can recover it without guessing from message text.
type abortErr struct{ code AbortCode }

func (e *abortErr) Error() string { return e.code.Error() }

func errAbort(code AbortCode) error { return &abortErr{code: code} }

func odErrToAbort(err error) AbortCode {
	if e, ok := err.(*abortErr); ok {
		return e.code
	}
	return AbortGeneralError
}

