//go:build !darwin

package main

import (
	"nearclip/pkg/ble"
	"nearclip/pkg/logging"
)

// bleHardwareFor returns the tinygo.org/x/bluetooth-backed hardware on
// platforms it supports.
func bleHardwareFor(log *logging.Log) ble.BleHardware {
	return ble.NewTinygoHardware()
}
