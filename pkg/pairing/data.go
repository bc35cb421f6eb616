// Package pairing implements device pairing:
// PairingData carried in a QR code, the PairingSession state machine
// that derives a shared secret from it, and PairedDevice persistence.
package pairing

import (
	"encoding/base64"
	"encoding/json"

	"nearclip/pkg/errs"
)

// CurrentPairingDataVersion is the version this package writes;
// validation accepts any version >= 1, with no upper bound.
const CurrentPairingDataVersion = 1

// ConnectionInfo carries the optional WiFi reachability hints baked
// into a QR code so the peer doesn't need mDNS discovery first.
type ConnectionInfo struct {
	IP       *string `json:"ip,omitempty"`
	Port     *uint16 `json:"port,omitempty"`
	MdnsName *string `json:"mdns_name,omitempty"`
}

// NewConnectionInfo returns an empty ConnectionInfo ready for the
// With* builder methods.
func NewConnectionInfo() *ConnectionInfo {
	return &ConnectionInfo{}
}

func (c *ConnectionInfo) WithIP(ip string) *ConnectionInfo {
	c.IP = &ip
	return c
}

func (c *ConnectionInfo) WithPort(port uint16) *ConnectionInfo {
	c.Port = &port
	return c
}

func (c *ConnectionInfo) WithMdnsName(name string) *ConnectionInfo {
	c.MdnsName = &name
	return c
}

// PairingData is the versioned record carried inside the QR code.
type PairingData struct {
	Version        uint32          `json:"version" validate:"gte=1"`
	DeviceID       string          `json:"device_id" validate:"required,max=64"`
	PublicKey      string          `json:"public_key" validate:"required,base64"` // base64 of 33- or 65-byte EC point
	ConnectionInfo *ConnectionInfo `json:"connection_info,omitempty"`
}

// New builds a PairingData at the current version from a raw EC
// point (33 or 65 bytes, caller's choice).
func New(deviceID string, publicKey []byte) *PairingData {
	return &PairingData{
		Version:   CurrentPairingDataVersion,
		DeviceID:  deviceID,
		PublicKey: base64.StdEncoding.EncodeToString(publicKey),
	}
}

// WithConnectionInfo attaches connection hints, returning the same
// PairingData for chaining the way the Rust builder does.
func (d *PairingData) WithConnectionInfo(info *ConnectionInfo) *PairingData {
	d.ConnectionInfo = info
	return d
}

// PublicKeyBytes decodes the base64-encoded EC point.
func (d *PairingData) PublicKeyBytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(d.PublicKey)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "pairing_data_invalid_base64", err)
	}
	return b, nil
}

// Validate rejects empty ids, wrong key lengths, and malformed
// base64. The struct-tag pass (required/max/base64) catches the
// shallow cases; key length needs the decoded bytes, which validator
// tags can't express, so that check stays hand-written.
func (d *PairingData) Validate() error {
	if err := errs.Validate(d); err != nil {
		return err
	}

	keyBytes, err := d.PublicKeyBytes()
	if err != nil {
		return err
	}
	if len(keyBytes) != 33 && len(keyBytes) != 65 {
		return errs.New(errs.KindCrypto, "pairing_data_invalid_key_length")
	}

	return nil
}

// ToJSON serializes the pairing record for embedding in a QR code.
func (d *PairingData) ToJSON() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, errs.Wrap(errs.KindLocal, "pairing_data_marshal", err)
	}
	return b, nil
}

// FromJSON parses (but does not validate) a pairing record. Unknown
// fields are ignored.
func FromJSON(data []byte) (*PairingData, error) {
	var d PairingData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errs.Wrap(errs.KindSync, "pairing_data_invalid_json", err)
	}
	return &d, nil
}
