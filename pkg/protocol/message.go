// Package protocol defines NearClip's wire message: a small tagged
// union carried identically over WiFi or BLE.
//
// Serialization uses MessagePack (github.com/vmihailenco/msgpack/v5)
// rather than JSON: it is self-describing (carries field names, so
// adding fields later stays backward compatible) yet compact enough
// for BLE's tiny MTU. No pack repo uses MessagePack directly; the
// choice is grounded on the Rust original (nearclip-protocol's tests
// round-trip every message type through rmp_serde, the Rust
// MessagePack crate) which is this library's direct analogue.
package protocol

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"nearclip/pkg/errs"
)

// MessageType tags the payload carried by a Message.
type MessageType uint8

const (
	MessageTypePairingRequest MessageType = iota + 1
	MessageTypePairingResponse
	MessageTypeClipboardSync
	MessageTypeHeartbeat
	MessageTypeAck
	MessageTypeUnpair
	// MessageTypePairingConfirm is the optional third leg of the
	// handshake the original Rust source defines
	// (nearclip-protocol/src/pairing.rs's PairingConfirm/PairingComplete).
	// PairingSession does not require it; it exists for callers that
	// want an extra confirmation round.
	MessageTypePairingConfirm
)

func (t MessageType) String() string {
	switch t {
	case MessageTypePairingRequest:
		return "pairing_request"
	case MessageTypePairingResponse:
		return "pairing_response"
	case MessageTypeClipboardSync:
		return "clipboard_sync"
	case MessageTypeHeartbeat:
		return "heartbeat"
	case MessageTypeAck:
		return "ack"
	case MessageTypeUnpair:
		return "unpair"
	case MessageTypePairingConfirm:
		return "pairing_confirm"
	default:
		return "unknown"
	}
}

// RequiresAck reports whether this message type participates in the
// sender/receiver ACK protocol.
func (t MessageType) RequiresAck() bool {
	switch t {
	case MessageTypeClipboardSync, MessageTypePairingRequest, MessageTypePairingResponse:
		return true
	default:
		return false
	}
}

// Message is the single envelope carried over every transport.
type Message struct {
	MsgType     MessageType `msgpack:"msg_type"`
	Payload     []byte      `msgpack:"payload"`
	DeviceID    string      `msgpack:"device_id"`
	TimestampMs uint64      `msgpack:"timestamp_ms"`
}

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

// NewClipboardSync builds a ClipboardSync message from the sending
// device's id.
func NewClipboardSync(payload []byte, from string) *Message {
	return &Message{MsgType: MessageTypeClipboardSync, Payload: payload, DeviceID: from, TimestampMs: nowMs()}
}

// NewHeartbeat builds a Heartbeat message.
func NewHeartbeat(from string) *Message {
	return &Message{MsgType: MessageTypeHeartbeat, DeviceID: from, TimestampMs: nowMs()}
}

// NewAck builds an Ack message from the acknowledging device `from`,
// carrying the original request's timestamp; the sender matches the
// pair (acking device id, acked timestamp) to its pending request.
func NewAck(from string, ackedTimestampMs uint64) *Message {
	payload := make([]byte, 8)
	putUint64(payload, ackedTimestampMs)
	return &Message{MsgType: MessageTypeAck, Payload: payload, DeviceID: from, TimestampMs: nowMs()}
}

// AckedTimestampMs extracts the timestamp an Ack message refers to.
func (m *Message) AckedTimestampMs() (uint64, bool) {
	if m.MsgType != MessageTypeAck || len(m.Payload) < 8 {
		return 0, false
	}
	return getUint64(m.Payload), true
}

// NewUnpair builds an Unpair message.
func NewUnpair(from string) *Message {
	return &Message{MsgType: MessageTypeUnpair, DeviceID: from, TimestampMs: nowMs()}
}

// NewPairingRequest wraps a serialized PairingPayload in a
// PairingRequest message.
func NewPairingRequest(payload []byte, from string) *Message {
	return &Message{MsgType: MessageTypePairingRequest, Payload: payload, DeviceID: from, TimestampMs: nowMs()}
}

// NewPairingResponse wraps a serialized PairingPayload in a
// PairingResponse message.
func NewPairingResponse(payload []byte, from string) *Message {
	return &Message{MsgType: MessageTypePairingResponse, Payload: payload, DeviceID: from, TimestampMs: nowMs()}
}

// Serialize encodes the message as MessagePack.
func (m *Message) Serialize() ([]byte, error) {
	b, err := msgpack.Marshal(m)
	if err != nil {
		return nil, errs.Wrap(errs.KindSync, "message_serialize", err)
	}
	return b, nil
}

// Deserialize decodes a MessagePack-encoded Message.
func Deserialize(data []byte) (*Message, error) {
	var m Message
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(errs.KindSync, "message_deserialize", err)
	}
	return &m, nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
