package sdo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-sdo/sdoengine/pkg/can/virtual"
	"github.com/go-sdo/sdoengine/pkg/od"
	"github.com/go-sdo/sdoengine/pkg/sdo"
)

const (
	clientID uint8 = 1
	serverID uint8 = 2

	cobIdClientToServer uint32 = 0x600 + uint32(serverID)
	cobIdServerToClient uint32 = 0x580 + uint32(serverID)
)

// harness wires one client FSM and one server FSM across a shared
// in-process bus, each with its own object dictionary, the way a real
// CANopen network pairs a master and a slave node.
type harness struct {
	bus          *virtual.InprocBus
	clientDict   *od.ObjectDictionary
	serverDict   *od.ObjectDictionary
	client       *sdo.ClientFSM
	server       *sdo.ServerFSM
	clientEnd    *virtual.Endpoint
	serverEnd    *virtual.Endpoint
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bus := virtual.NewInprocBus()
	clientEnd := bus.Open()
	serverEnd := bus.Open()
	require.NoError(t, clientEnd.Connect())
	require.NoError(t, serverEnd.Connect())

	clientDict := od.NewObjectDictionary()
	serverDict := od.NewObjectDictionary()

	client := sdo.NewClientFSM(od.NewSdoDictionary(clientDict), clientEnd)
	server := sdo.NewServerFSM(od.NewSdoDictionary(serverDict), serverEnd)

	require.NoError(t, clientEnd.Subscribe(client))
	require.NoError(t, serverEnd.Subscribe(server))

	require.NoError(t, client.AddServer(serverID, cobIdClientToServer, cobIdServerToClient))
	require.NoError(t, server.AddClient(clientID, cobIdClientToServer, cobIdServerToClient))

	return &harness{
		bus: bus, clientDict: clientDict, serverDict: serverDict,
		client: client, server: server, clientEnd: clientEnd, serverEnd: serverEnd,
	}
}

func ctxWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestExpeditedUpload covers the 1-byte expedited upload scenario.
func TestExpeditedUpload(t *testing.T) {
	h := newHarness(t)
	_, err := h.serverDict.AddVariable(0x1001, "error register", od.UNSIGNED8, od.AttributeSdoR, "5")
	require.NoError(t, err)

	data, err := h.client.Upload(ctxWithTimeout(t), serverID, 0x1001, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, data)
}

// TestExpeditedDownload covers the 4-byte expedited download scenario.
func TestExpeditedDownload(t *testing.T) {
	h := newHarness(t)
	_, err := h.serverDict.AddVariable(0x2000, "counter", od.UNSIGNED32, od.AttributeSdoRw, "0")
	require.NoError(t, err)

	err = h.client.Download(ctxWithTimeout(t), serverID, 0x2000, 0, []byte{0xEF, 0xBE, 0xAD, 0xDE})
	require.NoError(t, err)

	entry, ok := h.serverDict.GetEntry(0x2000)
	require.True(t, ok)
	v, err := entry.SubIndex(uint8(0))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, v.Bytes())
}

// TestSegmentedDownloadHelloWorld covers the 10-byte segmented download
// scenario ("HelloWorld").
func TestSegmentedDownloadHelloWorld(t *testing.T) {
	h := newHarness(t)
	_, err := h.serverDict.AddVariable(0x2001, "greeting", od.VISIBLE_STRING, od.AttributeSdoRw, "")
	require.NoError(t, err)

	payload := []byte("HelloWorld")
	err = h.client.Download(ctxWithTimeout(t), serverID, 0x2001, 0, payload)
	require.NoError(t, err)

	entry, ok := h.serverDict.GetEntry(0x2001)
	require.True(t, ok)
	v, err := entry.SubIndex(uint8(0))
	require.NoError(t, err)
	assert.Equal(t, payload, v.Bytes())
}

// TestSegmentedUploadRoundTrip exercises the segmented upload path
// produced by a value too long for the expedited initiate frame.
func TestSegmentedUploadRoundTrip(t *testing.T) {
	h := newHarness(t)
	entry, err := h.serverDict.AddVariable(0x2002, "name", od.VISIBLE_STRING, od.AttributeSdoR, "")
	require.NoError(t, err)
	v, err := entry.SubIndex(uint8(0))
	require.NoError(t, err)
	require.NoError(t, v.SetRaw([]byte("a long visible string value")))

	data, err := h.client.Upload(ctxWithTimeout(t), serverID, 0x2002, 0)
	require.NoError(t, err)
	assert.Equal(t, "a long visible string value", string(data))
}

// TestWriteToReadOnlyRejected covers the write-to-read-only rejection
// scenario: the server must abort with AbortReadOnly and never touch
// the stored value.
func TestWriteToReadOnlyRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.serverDict.AddVariable(0x1000, "device type", od.UNSIGNED32, od.AttributeSdoR, "0")
	require.NoError(t, err)

	err = h.client.Download(ctxWithTimeout(t), serverID, 0x1000, 0, []byte{1, 2, 3, 4})
	require.Error(t, err)

	var sdoErr *sdo.SdoError
	require.ErrorAs(t, err, &sdoErr)
	assert.Equal(t, sdo.AbortReadOnly, sdoErr.Code)

	entry, ok := h.serverDict.GetEntry(0x1000)
	require.True(t, ok)
	v, err := entry.SubIndex(uint8(0))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, v.Bytes())
}

// TestUploadUndefinedObjectAborts covers upload of an index absent from
// the dictionary.
func TestUploadUndefinedObjectAborts(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Upload(ctxWithTimeout(t), serverID, 0x3000, 0)
	require.Error(t, err)
	var sdoErr *sdo.SdoError
	require.ErrorAs(t, err, &sdoErr)
	assert.Equal(t, sdo.AbortObjectUndefined, sdoErr.Code)
}

// TestTimeoutWhenServerUnreachable covers the timeout scenario: a
// client talking to a server id with no corresponding listener must
// time out rather than hang.
func TestTimeoutWhenServerUnreachable(t *testing.T) {
	bus := virtual.NewInprocBus()
	clientEnd := bus.Open()
	require.NoError(t, clientEnd.Connect())

	clientDict := od.NewObjectDictionary()
	client := sdo.NewClientFSM(od.NewSdoDictionary(clientDict), clientEnd)
	require.NoError(t, clientEnd.Subscribe(client))

	const unreachableServer uint8 = 99
	require.NoError(t, client.AddServer(unreachableServer, 0x600+uint32(unreachableServer), 0x580+uint32(unreachableServer)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Upload(ctx, unreachableServer, 0x1000, 0)
	require.Error(t, err)
	var sdoErr *sdo.SdoError
	require.ErrorAs(t, err, &sdoErr)
	assert.Equal(t, sdo.AbortTimeout, sdoErr.Code)
}

// TestAtMostOneActiveTransferPerPeer submits several uploads to the
// same server concurrently and checks that every one succeeds. The
// client keeps a single current transfer per server, so interleaved
// uploads would let one take another's reply and leave it to time out.
func TestAtMostOneActiveTransferPerPeer(t *testing.T) {
	h := newHarness(t)
	_, err := h.serverDict.AddVariable(0x2003, "value", od.UNSIGNED8, od.AttributeSdoR, "7")
	require.NoError(t, err)

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := h.client.Upload(ctxWithTimeout(t), serverID, 0x2003, 0)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
}
