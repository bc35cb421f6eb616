//go:build darwin

package main

import (
	"nearclip/pkg/ble"
	"nearclip/pkg/logging"
)

// bleHardwareFor returns nil on darwin: this module's BleHardware
// implementation is built on tinygo.org/x/bluetooth's Linux/other
// backend, so darwin runs WiFi-only until a CoreBluetooth-backed
// BleHardware lands.
func bleHardwareFor(log *logging.Log) ble.BleHardware {
	log.Info("ble hardware unavailable on darwin, running wifi-only")
	return nil
}
