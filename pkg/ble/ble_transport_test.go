package ble

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearclip/pkg/protocol"
)

// fakeHardware is an in-memory BleHardware used to exercise Transport
// and Controller without a real adapter.
type fakeHardware struct {
	mu          sync.Mutex
	mtu         int
	connected   map[PeripheralUUID]bool
	writes      [][]byte
	writeErr    error
	onConnEvent func(ConnectionEvent)
	onChunk     func(ChunkEvent)
	scanResults []ScanResult
}

func newFakeHardware(mtu int) *fakeHardware {
	return &fakeHardware{mtu: mtu, connected: make(map[PeripheralUUID]bool)}
}

func (f *fakeHardware) StartScan(ctx context.Context, onResult func(ScanResult)) error {
	for _, r := range f.scanResults {
		onResult(r)
	}
	return nil
}
func (f *fakeHardware) StopScan() error { return nil }

func (f *fakeHardware) Connect(ctx context.Context, peripheral PeripheralUUID) error {
	f.mu.Lock()
	f.connected[peripheral] = true
	f.mu.Unlock()
	if f.onConnEvent != nil {
		f.onConnEvent(ConnectionEvent{Peripheral: peripheral, Connected: true})
	}
	return nil
}

func (f *fakeHardware) Disconnect(peripheral PeripheralUUID) error {
	f.mu.Lock()
	f.connected[peripheral] = false
	f.mu.Unlock()
	if f.onConnEvent != nil {
		f.onConnEvent(ConnectionEvent{Peripheral: peripheral, Connected: false})
	}
	return nil
}

func (f *fakeHardware) WriteData(peripheral PeripheralUUID, data []byte) (uint64, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.mu.Lock()
	f.writes = append(f.writes, data)
	f.mu.Unlock()
	return uint64(len(f.writes)), nil
}

func (f *fakeHardware) GetMTU(peripheral PeripheralUUID) (int, error) { return f.mtu, nil }

func (f *fakeHardware) IsConnected(peripheral PeripheralUUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[peripheral]
}

func (f *fakeHardware) StartAdvertising(localName string) error { return nil }
func (f *fakeHardware) StopAdvertising() error                  { return nil }
func (f *fakeHardware) Configure(deviceID string, publicKeyHash []byte) error { return nil }

func (f *fakeHardware) OnConnectionEvent(cb func(ConnectionEvent)) { f.onConnEvent = cb }
func (f *fakeHardware) OnChunk(cb func(ChunkEvent))                { f.onChunk = cb }
func (f *fakeHardware) Close() error                               { return nil }

var _ BleHardware = (*fakeHardware)(nil)

func TestBleTransportSendWritesChunks(t *testing.T) {
	hw := newFakeHardware(64)
	peripheral := PeripheralUUID("aa:bb:cc:dd:ee:ff")
	require.NoError(t, hw.Connect(context.Background(), peripheral))

	tr := NewTransport(hw, peripheral, "device-b")
	msg := protocol.NewClipboardSync([]byte("a payload long enough to need more than one chunk maybe"), "device-a")

	require.NoError(t, tr.Send(context.Background(), msg))
	assert.NotEmpty(t, hw.writes)
}

func TestBleTransportRecvViaHandleChunk(t *testing.T) {
	hw := newFakeHardware(64)
	peripheral := PeripheralUUID("aa:bb:cc:dd:ee:ff")
	require.NoError(t, hw.Connect(context.Background(), peripheral))

	sender := NewTransport(hw, peripheral, "device-b")
	receiver := NewTransport(hw, peripheral, "device-a")

	msg := protocol.NewHeartbeat("device-a")
	require.NoError(t, sender.Send(context.Background(), msg))

	for _, chunk := range hw.writes {
		receiver.HandleChunk(chunk)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := receiver.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.MessageTypeHeartbeat, got.MsgType)
}

func TestBleTransportHandleDisconnectDropsReassembly(t *testing.T) {
	hw := newFakeHardware(64)
	peripheral := PeripheralUUID("aa:bb:cc:dd:ee:ff")
	require.NoError(t, hw.Connect(context.Background(), peripheral))

	tr := NewTransport(hw, peripheral, "device-a")

	chunk := &Chunk{MessageID: [8]byte{9}, ChunkIndex: 0, TotalChunks: 2, Payload: []byte("partial")}
	tr.HandleChunk(chunk.Encode())
	assert.Equal(t, 1, tr.reassembler.Len())

	tr.HandleDisconnect()
	assert.Equal(t, 0, tr.reassembler.Len())
	assert.False(t, tr.IsConnected())
}

func TestControllerDiscoversPeers(t *testing.T) {
	hw := newFakeHardware(64)
	hw.scanResults = []ScanResult{{Peripheral: "dev-1", LocalName: "NearClip-1"}}

	c := NewController(hw)
	defer c.Close()

	discovered := make(chan DiscoveredPeer, 1)
	c.OnDeviceDiscovered(func(p DiscoveredPeer) { discovered <- p })

	require.NoError(t, c.StartScan(context.Background()))

	select {
	case p := <-discovered:
		assert.Equal(t, PeripheralUUID("dev-1"), p.Peripheral)
	case <-time.After(time.Second):
		t.Fatal("expected discovery callback")
	}
}

func TestControllerBondTracksIdentity(t *testing.T) {
	hw := newFakeHardware(64)
	c := NewController(hw)
	defer c.Close()

	c.Bond("dev-1", "device-a")
	id, ok := c.DeviceIDFor("dev-1")
	require.True(t, ok)
	assert.Equal(t, "device-a", id)
}

func TestControllerTracksConnectionEvents(t *testing.T) {
	hw := newFakeHardware(64)
	c := NewController(hw)
	defer c.Close()

	require.NoError(t, hw.Connect(context.Background(), "dev-1"))
	assert.True(t, c.IsConnected("dev-1"))

	require.NoError(t, hw.Disconnect("dev-1"))
	assert.False(t, c.IsConnected("dev-1"))
}
