package pairing

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"time"

	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
)

// PairedDevice is the durable record produced once pairing completes
// (original Rust source nearclip-device/src/models.rs).
type PairedDevice struct {
	DeviceID         string                  `json:"device_id"`
	DeviceName       string                  `json:"device_name"`
	Platform         protocol.DevicePlatform `json:"platform"`
	PublicKey        string                  `json:"public_key"`         // base64
	SharedSecretHash string                  `json:"shared_secret_hash"` // base64 sha256
	PairedAt         time.Time               `json:"paired_at"`
	ConnectionInfo   *ConnectionInfo         `json:"connection_info,omitempty"`
}

// VerifySharedSecret reports whether candidateHash, a SHA-256 of a
// derived secret, equals the stored hash of the secret this device
// was paired with, using a constant-time comparison so
// timing cannot leak the stored hash.
func (d *PairedDevice) VerifySharedSecret(candidateHash []byte) bool {
	stored, err := base64.StdEncoding.DecodeString(d.SharedSecretHash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(stored, candidateHash) == 1
}

// PublicKeyBytes decodes the stored base64 public key.
func (d *PairedDevice) PublicKeyBytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(d.PublicKey)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "paired_device_invalid_public_key", err)
	}
	return b, nil
}

// ToJSON serializes the record for storage.
func (d *PairedDevice) ToJSON() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, errs.Wrap(errs.KindLocal, "paired_device_marshal", err)
	}
	return b, nil
}

// PairedDeviceFromJSON parses a stored record.
func PairedDeviceFromJSON(data []byte) (*PairedDevice, error) {
	var d PairedDevice
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errs.Wrap(errs.KindLocal, "paired_device_unmarshal", err)
	}
	return &d, nil
}
