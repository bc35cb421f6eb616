// Package transport defines the uniform Transport contract and its
// WiFi/encrypted/manager implementations. Any
// concrete channel — TLS-wrapped TCP (wifi.go), BLE (pkg/ble), or an
// AES-256-GCM wrapper around either (encrypted.go) — speaks this
// interface, so pkg/manager and pkg/syncloop never branch on channel
// type.
package transport

import (
	"context"

	"nearclip/pkg/protocol"
)

// Channel names the physical medium a Transport runs over.
type Channel uint8

const (
	ChannelWiFi Channel = iota
	ChannelBLE
)

func (c Channel) String() string {
	switch c {
	case ChannelWiFi:
		return "wifi"
	case ChannelBLE:
		return "ble"
	default:
		return "unknown"
	}
}

// Transport is the uniform channel contract every sync path speaks.
// Send must be safe to call concurrently with Recv; an implementation
// that cannot multiplex internally must serialize writes behind a
// lock. Recv blocks until a whole message is available or the link
// fails. Close is idempotent.
type Transport interface {
	Send(ctx context.Context, msg *protocol.Message) error
	Recv(ctx context.Context) (*protocol.Message, error)
	IsConnected() bool
	Channel() Channel
	PeerDeviceID() string
	Close() error
}
