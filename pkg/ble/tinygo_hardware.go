//go:build !darwin

package ble

import (
	"context"
	"sync"
	"sync/atomic"

	"tinygo.org/x/bluetooth"

	"nearclip/pkg/errs"
)

// TinygoHardware implements BleHardware atop tinygo.org/x/bluetooth,
// adapted from bluetooth.go's BLEManager: same
// central/peripheral dual-role dance over one GATT service, but
// driven by the generic BleHardware contract instead of baking a
// send/receive queue and chat strings directly into the manager.
type TinygoHardware struct {
	adapter *bluetooth.Adapter

	mu            sync.Mutex
	deviceID      string
	pubKeyHash    []byte
	central       map[PeripheralUUID]*centralLink
	peripheralRX  bluetooth.Characteristic
	peripheralAck bluetooth.Characteristic

	scanning      atomic.Bool
	advertising   atomic.Bool
	nextTxID      atomic.Uint64
	onConnEvent   func(ConnectionEvent)
	onChunk       func(ChunkEvent)
}

type centralLink struct {
	device    bluetooth.Device
	dataIn    bluetooth.DeviceCharacteristic
	ackStatus bluetooth.DeviceCharacteristic
	connected atomic.Bool
}

// NewTinygoHardware builds a hardware adapter over the platform's
// default BLE adapter.
func NewTinygoHardware() *TinygoHardware {
	return &TinygoHardware{
		adapter: bluetooth.DefaultAdapter,
		central: make(map[PeripheralUUID]*centralLink),
	}
}

func (h *TinygoHardware) enable() error {
	if err := h.adapter.Enable(); err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_adapter_enable", err)
	}
	return nil
}

// Configure stores the identity this device will expose via the
// read-only identity characteristics once a service is added.
func (h *TinygoHardware) Configure(deviceID string, publicKeyHash []byte) error {
	if len(deviceID) > MaxDeviceIDBytes {
		return errs.New(errs.KindBluetooth, "ble_device_id_too_long")
	}
	h.mu.Lock()
	h.deviceID = deviceID
	h.pubKeyHash = publicKeyHash
	h.mu.Unlock()
	return nil
}

// StartAdvertising enables the adapter (if needed) and registers the
// NearClip GATT service, then begins advertising.
func (h *TinygoHardware) StartAdvertising(localName string) error {
	if err := h.enable(); err != nil {
		return err
	}
	if len(localName) > MaxAdvertiseNameBytes {
		localName = localName[:MaxAdvertiseNameBytes]
	}

	h.mu.Lock()
	deviceID := h.deviceID
	pubKeyHash := h.pubKeyHash
	h.mu.Unlock()

	err := h.adapter.AddService(&bluetooth.Service{
		UUID: ServiceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				UUID:  CharDeviceID,
				Flags: bluetooth.CharacteristicReadPermission,
				Value: []byte(deviceID),
			},
			{
				UUID:  CharPubKeyHash,
				Flags: bluetooth.CharacteristicReadPermission,
				Value: pubKeyHash,
			},
			{
				UUID:  CharDataIn,
				Flags: bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					buf := make([]byte, len(value))
					copy(buf, value)
					if h.onChunk != nil {
						h.onChunk(ChunkEvent{Data: buf})
					}
				},
			},
			{
				UUID:   CharAckStatus,
				Flags:  bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicReadPermission,
				Handle: &h.peripheralAck,
			},
		},
	})
	if err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_add_service", err)
	}

	adv := h.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    localName,
		ServiceUUIDs: []bluetooth.UUID{ServiceUUID},
	}); err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_advertise_configure", err)
	}
	if err := adv.Start(); err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_advertise_start", err)
	}
	h.advertising.Store(true)
	return nil
}

// StopAdvertising is a no-op beyond flipping the flag: tinygo's
// bluetooth package has no symmetric Stop on every platform, matching
// bluetooth.go's approach of relying on process lifetime.
func (h *TinygoHardware) StopAdvertising() error {
	h.advertising.Store(false)
	return nil
}

// StartScan begins scanning for NearClip peripherals, invoking
// onResult for each match.
func (h *TinygoHardware) StartScan(ctx context.Context, onResult func(ScanResult)) error {
	if err := h.enable(); err != nil {
		return err
	}
	h.scanning.Store(true)

	go func() {
		_ = h.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !h.scanning.Load() {
				a.StopScan()
				return
			}
			if !result.HasServiceUUID(ServiceUUID) {
				return
			}
			onResult(ScanResult{
				Peripheral: PeripheralUUID(result.Address.MAC.String()),
				LocalName:  result.LocalName(),
			})
		})
	}()

	go func() {
		<-ctx.Done()
		_ = h.StopScan()
	}()

	return nil
}

// StopScan halts an in-progress scan.
func (h *TinygoHardware) StopScan() error {
	h.scanning.Store(false)
	if err := h.adapter.StopScan(); err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_stop_scan", err)
	}
	return nil
}

// Connect dials a peripheral by address string, discovers the
// NearClip service/characteristics, and subscribes to ack
// notifications.
func (h *TinygoHardware) Connect(ctx context.Context, peripheral PeripheralUUID) error {
	mac, err := bluetooth.ParseMAC(string(peripheral))
	if err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_invalid_peripheral_address", err)
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	device, err := h.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_connect", err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{ServiceUUID})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return errs.Wrap(errs.KindBluetooth, "ble_discover_services", err)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{CharDataIn, CharAckStatus})
	if err != nil {
		device.Disconnect()
		return errs.Wrap(errs.KindBluetooth, "ble_discover_characteristics", err)
	}

	link := &centralLink{device: device}
	for _, c := range chars {
		switch c.UUID() {
		case CharDataIn:
			link.dataIn = c
		case CharAckStatus:
			link.ackStatus = c
		}
	}

	if err := link.ackStatus.EnableNotifications(func(value []byte) {
		buf := make([]byte, len(value))
		copy(buf, value)
		if h.onChunk != nil {
			h.onChunk(ChunkEvent{Peripheral: peripheral, Data: buf})
		}
	}); err != nil {
		device.Disconnect()
		return errs.Wrap(errs.KindBluetooth, "ble_enable_notifications", err)
	}

	link.connected.Store(true)

	h.mu.Lock()
	h.central[peripheral] = link
	h.mu.Unlock()

	if h.onConnEvent != nil {
		h.onConnEvent(ConnectionEvent{Peripheral: peripheral, Connected: true})
	}
	return nil
}

// Disconnect tears down a central-role link.
func (h *TinygoHardware) Disconnect(peripheral PeripheralUUID) error {
	h.mu.Lock()
	link, ok := h.central[peripheral]
	delete(h.central, peripheral)
	h.mu.Unlock()

	if !ok {
		return nil
	}
	link.connected.Store(false)
	if err := link.device.Disconnect(); err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_disconnect", err)
	}
	if h.onConnEvent != nil {
		h.onConnEvent(ConnectionEvent{Peripheral: peripheral, Connected: false})
	}
	return nil
}

// WriteData writes a chunk to the peripheral's data-in characteristic.
func (h *TinygoHardware) WriteData(peripheral PeripheralUUID, data []byte) (uint64, error) {
	h.mu.Lock()
	link, ok := h.central[peripheral]
	h.mu.Unlock()
	if !ok || !link.connected.Load() {
		return 0, errs.New(errs.KindBluetooth, "ble_peripheral_not_connected")
	}

	if _, err := link.dataIn.WriteWithoutResponse(data); err != nil {
		return 0, errs.Wrap(errs.KindBluetooth, "ble_write_data", err)
	}
	return h.nextTxID.Add(1), nil
}

// GetMTU returns the negotiated MTU for a connected peripheral. tinygo
// does not expose per-connection MTU negotiation uniformly across
// platforms, so this always reports the conservative default BLE 4.2
// MTU of 23.
func (h *TinygoHardware) GetMTU(peripheral PeripheralUUID) (int, error) {
	h.mu.Lock()
	_, ok := h.central[peripheral]
	h.mu.Unlock()
	if !ok {
		return 0, errs.New(errs.KindBluetooth, "ble_peripheral_not_connected")
	}
	return 23, nil
}

// IsConnected reports whether a central-role link is active.
func (h *TinygoHardware) IsConnected(peripheral PeripheralUUID) bool {
	h.mu.Lock()
	link, ok := h.central[peripheral]
	h.mu.Unlock()
	return ok && link.connected.Load()
}

// OnConnectionEvent registers the connect/disconnect callback.
func (h *TinygoHardware) OnConnectionEvent(cb func(ConnectionEvent)) {
	h.onConnEvent = cb
}

// OnChunk registers the inbound chunk callback.
func (h *TinygoHardware) OnChunk(cb func(ChunkEvent)) {
	h.onChunk = cb
}

// Close disconnects every central-role link and stops scanning.
func (h *TinygoHardware) Close() error {
	_ = h.StopScan()

	h.mu.Lock()
	links := make([]*centralLink, 0, len(h.central))
	for _, l := range h.central {
		links = append(links, l)
	}
	h.central = make(map[PeripheralUUID]*centralLink)
	h.mu.Unlock()

	for _, l := range links {
		l.connected.Store(false)
		_ = l.device.Disconnect()
	}
	return nil
}

var _ BleHardware = (*TinygoHardware)(nil)
