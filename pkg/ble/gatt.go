package ble

import "tinygo.org/x/bluetooth"

// GATT UUIDs use one base service UUID with an
// "NEARCLIP"-prefixed vendor namespace, and four characteristics
// under it. bluetooth.go hard-codes three raw 16-byte
// arrays for its own chat service; this generalizes that to the
// service contract here via bluetooth.NewUUID, plus two additional
// read-only identity characteristics that demo doesn't need.
var (
	ServiceUUID = mustParseUUID("4e454152-434c-4950-0000-000000000001")

	// CharDeviceID is Read-only, carries the advertising device's id
	// (UTF-8, <=64 bytes).
	CharDeviceID = mustParseUUID("4e454152-434c-4950-0000-000000000002")

	// CharPubKeyHash is Read-only, carries base64(SHA-256(pubkey)).
	CharPubKeyHash = mustParseUUID("4e454152-434c-4950-0000-000000000003")

	// CharDataIn is Write-Without-Response; chunks are written here.
	CharDataIn = mustParseUUID("4e454152-434c-4950-0000-000000000004")

	// CharAckStatus is Read+Notify; ack/status chunks flow out here.
	CharAckStatus = mustParseUUID("4e454152-434c-4950-0000-000000000005")
)

// MaxAdvertiseNameBytes and MaxDeviceIDBytes are the wire limits
// placed on the GATT advertisement payload.
const (
	MaxAdvertiseNameBytes = 29
	MaxDeviceIDBytes      = 64
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic("ble: invalid gatt uuid literal: " + s)
	}
	return u
}
