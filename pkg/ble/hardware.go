package ble

import "context"

// PeripheralUUID identifies a BLE peripheral the hardware layer knows
// about (a MAC/UUID address, depending on platform).
type PeripheralUUID string

// ScanResult is one peripheral observed during a scan, carrying just
// enough to run the pairing/identity match in Controller.
type ScanResult struct {
	Peripheral   PeripheralUUID
	LocalName    string
	ServiceUUIDs []string
}

// ConnectionEvent reports a hardware-level connect/disconnect for a
// peripheral, delivered via BleHardware's callback surface.
type ConnectionEvent struct {
	Peripheral PeripheralUUID
	Connected  bool
}

// ChunkEvent is a single inbound chunk delivered by the hardware
// layer, destined for the Reassembler.
type ChunkEvent struct {
	Peripheral PeripheralUUID
	Data       []byte
}

// BleHardware abstracts the platform BLE stack.
// BleTransport and Controller drive this interface; the one concrete
// implementation, TinygoHardware, adapts tinygo.org/x/bluetooth (see
// gatt.go) and is built on every platform except Darwin, which has no
// implementation here, mirroring how bluetooth.go's BLEManager wraps the
// same library directly, split here so it can be faked in tests.
type BleHardware interface {
	StartScan(ctx context.Context, onResult func(ScanResult)) error
	StopScan() error

	Connect(ctx context.Context, peripheral PeripheralUUID) error
	Disconnect(peripheral PeripheralUUID) error

	WriteData(peripheral PeripheralUUID, data []byte) (txID uint64, err error)
	GetMTU(peripheral PeripheralUUID) (int, error)
	IsConnected(peripheral PeripheralUUID) bool

	StartAdvertising(localName string) error
	StopAdvertising() error

	// Configure announces this device's identity (device id and a
	// hash of its public key) in the GATT advertisement/service, so
	// peers can match an incoming connection to a paired device
	// without a second handshake round.
	Configure(deviceID string, publicKeyHash []byte) error

	// OnConnectionEvent/OnChunk register the hardware's callback
	// surface; Controller and BleTransport consume these to drive
	// reconnection and reassembly.
	OnConnectionEvent(func(ConnectionEvent))
	OnChunk(func(ChunkEvent))

	Close() error
}
