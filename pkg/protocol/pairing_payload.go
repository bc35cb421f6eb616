package protocol

import (
	"github.com/vmihailenco/msgpack/v5"

	"nearclip/pkg/errs"
)

// DevicePlatform names the OS of a paired device. At minimum it
// covers {MacOS, Android, Unknown}; the original Rust
// source (nearclip-device/src/models.rs) enumerates Windows, Linux
// and Ios as well, which this expands to since a minimum platform
// set is a floor, not a restriction.
type DevicePlatform uint8

const (
	PlatformUnknown DevicePlatform = iota
	PlatformMacOS
	PlatformAndroid
	PlatformWindows
	PlatformLinux
	PlatformIOS
)

func (p DevicePlatform) String() string {
	switch p {
	case PlatformMacOS:
		return "macos"
	case PlatformAndroid:
		return "android"
	case PlatformWindows:
		return "windows"
	case PlatformLinux:
		return "linux"
	case PlatformIOS:
		return "ios"
	default:
		return "unknown"
	}
}

// PairingPayload is embedded inside PairingRequest/PairingResponse
// messages.
type PairingPayload struct {
	DeviceID   string         `msgpack:"device_id" validate:"required,max=64"`
	DeviceName string         `msgpack:"device_name" validate:"required"`
	Platform   DevicePlatform `msgpack:"platform"`
	PublicKey  []byte         `msgpack:"public_key" validate:"required"`
	Nonce      [32]byte       `msgpack:"nonce"`
	Signature  []byte         `msgpack:"signature,omitempty"`
}

// Validate rejects an obviously malformed payload before it reaches
// the pairing state machine. The struct-tag pass handles the shallow
// checks; the public key's exact length needs its decoded size, which
// stays hand-written.
func (p *PairingPayload) Validate() error {
	if err := errs.Validate(p); err != nil {
		return err
	}
	if len(p.PublicKey) != 33 && len(p.PublicKey) != 65 {
		return errs.New(errs.KindSync, "pairing_payload_invalid_public_key")
	}
	return nil
}

// Marshal serializes a PairingPayload for embedding in a Message's
// Payload field.
func (p *PairingPayload) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, errs.Wrap(errs.KindSync, "pairing_payload_marshal", err)
	}
	return b, nil
}

// UnmarshalPairingPayload decodes a PairingPayload from a Message's
// Payload field.
func UnmarshalPairingPayload(data []byte) (*PairingPayload, error) {
	var p PairingPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, errs.Wrap(errs.KindSync, "pairing_payload_unmarshal", err)
	}
	return &p, nil
}
