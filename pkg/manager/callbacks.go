package manager

import "nearclip/pkg/protocol"

// DeviceInfo describes a device for the on_device_connected callback.
type DeviceInfo struct {
	DeviceID   string
	DeviceName string
	Platform   protocol.DevicePlatform
}

// DiscoveredDevice describes a BLE scan result for the
// on_device_discovered callback.
type DiscoveredDevice struct {
	Peripheral string
	LocalName  string
}

// Callbacks is the single host-side callback set the facade invokes.
// Every field is optional; a nil callback is simply skipped.
type Callbacks struct {
	OnDeviceConnected    func(DeviceInfo)
	OnDeviceDisconnected func(deviceID string)
	OnDeviceUnpaired     func(deviceID string)
	OnPairingRejected    func(deviceID string, reason error)
	OnClipboardReceived  func(payload []byte, fromDevice string)
	OnSyncError          func(err error)
	OnDeviceDiscovered   func(DiscoveredDevice)
	OnDeviceLost         func(peripheral string)
}

func (c Callbacks) deviceConnected(info DeviceInfo) {
	if c.OnDeviceConnected != nil {
		c.OnDeviceConnected(info)
	}
}

func (c Callbacks) deviceDisconnected(deviceID string) {
	if c.OnDeviceDisconnected != nil {
		c.OnDeviceDisconnected(deviceID)
	}
}

func (c Callbacks) deviceUnpaired(deviceID string) {
	if c.OnDeviceUnpaired != nil {
		c.OnDeviceUnpaired(deviceID)
	}
}

func (c Callbacks) pairingRejected(deviceID string, reason error) {
	if c.OnPairingRejected != nil {
		c.OnPairingRejected(deviceID, reason)
	}
}

func (c Callbacks) clipboardReceived(payload []byte, fromDevice string) {
	if c.OnClipboardReceived != nil {
		c.OnClipboardReceived(payload, fromDevice)
	}
}

func (c Callbacks) syncError(err error) {
	if c.OnSyncError != nil {
		c.OnSyncError(err)
	}
}
