// Package mdnsseam defines the mDNS advertiser/discoverer contract
// NearClip treats as an external collaborator — it only
// needs it to learn a peer's ip:port, not to own the mDNS stack. This
// package names that contract and ships a no-op implementation so
// callers that don't have a real mDNS responder wired up (tests, or
// platforms where discovery happens some other way) still compile and
// run against the same interface.
package mdnsseam

import (
	"context"
	"encoding/base64"
)

// ServiceType is the mDNS service type NearClip peers advertise under.
const ServiceType = "_nearclip._tcp.local."

// TXT record keys carried alongside the service advertisement.
const (
	TXTDeviceID      = "id"
	TXTPublicKeyHash = "pk"
)

// ServiceConfig describes the instance a local Advertiser publishes.
type ServiceConfig struct {
	DeviceID      string
	PublicKeyHash []byte // raw sha256 of the local public key; TXT-encoded as base64
	Port          int
}

// TXTRecords renders cfg's TXT record key/value pairs.
func (cfg ServiceConfig) TXTRecords() map[string]string {
	return map[string]string{
		TXTDeviceID:      cfg.DeviceID,
		TXTPublicKeyHash: base64.StdEncoding.EncodeToString(cfg.PublicKeyHash),
	}
}

// DiscoveredService is one peer found by a Discoverer.
type DiscoveredService struct {
	DeviceID      string
	PublicKeyHash []byte
	Host          string
	Port          int
}

// Advertiser publishes a local NearClip instance over mDNS.
type Advertiser interface {
	Start(ctx context.Context, cfg ServiceConfig) error
	Stop() error
	IsAdvertising() bool
}

// Discoverer watches for other NearClip instances on the LAN.
type Discoverer interface {
	Start(ctx context.Context, onFound func(DiscoveredService)) error
	Stop() error
}

// NoopAdvertiser satisfies Advertiser without touching the network —
// the default when the host process wires up discovery some other way
// (e.g. a manually configured address).
type NoopAdvertiser struct {
	advertising bool
}

func (a *NoopAdvertiser) Start(ctx context.Context, cfg ServiceConfig) error {
	a.advertising = true
	return nil
}

func (a *NoopAdvertiser) Stop() error {
	a.advertising = false
	return nil
}

func (a *NoopAdvertiser) IsAdvertising() bool {
	return a.advertising
}

// NoopDiscoverer satisfies Discoverer without ever reporting a peer.
type NoopDiscoverer struct{}

func (d *NoopDiscoverer) Start(ctx context.Context, onFound func(DiscoveredService)) error {
	return nil
}

func (d *NoopDiscoverer) Stop() error {
	return nil
}

var (
	_ Advertiser = (*NoopAdvertiser)(nil)
	_ Discoverer = (*NoopDiscoverer)(nil)
)
