package transport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
)

// MaxWifiMessageSize is the largest application frame accepted over
// WiFi.
const MaxWifiMessageSize = 16 * 1024 * 1024

// WifiTransport wraps a TLS stream with the split-lock discipline the
// original Rust source (nearclip-transport/src/wifi.rs) uses: a
// dedicated mutex for the write half and one for the read half, so
// Send and Recv never contend with each other, only with themselves.
type WifiTransport struct {
	deviceID string
	conn     net.Conn

	writeMu sync.Mutex
	readMu  sync.Mutex

	connected atomic.Bool
}

// NewWifiTransport wraps an already-established TLS connection.
func NewWifiTransport(deviceID string, conn *tls.Conn) *WifiTransport {
	t := &WifiTransport{deviceID: deviceID, conn: conn}
	t.connected.Store(true)
	return t
}

// Send frames the message as a 4-byte big-endian length prefix
// followed by its MessagePack encoding.
func (t *WifiTransport) Send(ctx context.Context, msg *protocol.Message) error {
	if !t.connected.Load() {
		return errs.ErrConnectionClosed
	}

	data, err := msg.Serialize()
	if err != nil {
		return errs.Wrap(errs.KindSync, "wifi_send_serialize", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))

	if _, err := t.conn.Write(lenBuf[:]); err != nil {
		t.connected.Store(false)
		return errs.Wrap(errs.KindNetwork, "wifi_send_length_prefix", err)
	}
	if _, err := t.conn.Write(data); err != nil {
		t.connected.Store(false)
		return errs.Wrap(errs.KindNetwork, "wifi_send_payload", err)
	}
	return nil
}

// Recv reads frames until it has one carrying a real message,
// deserializing and returning it. A clean EOF on the length prefix
// surfaces as ErrConnectionClosed; any other I/O error also flips
// connected=false but is reported distinctly. A zero-length frame is
// a no-op (e.g. a keepalive probe with no payload) and is silently
// skipped in favor of the next frame rather than handed to the
// msgpack decoder, which would reject it as malformed.
func (t *WifiTransport) Recv(ctx context.Context) (*protocol.Message, error) {
	for {
		if !t.connected.Load() {
			return nil, errs.ErrConnectionClosed
		}

		t.readMu.Lock()
		msg, noop, err := t.recvOneFrame()
		t.readMu.Unlock()
		if err != nil {
			return nil, err
		}
		if noop {
			continue
		}
		return msg, nil
	}
}

// recvOneFrame reads a single length-prefixed frame. noop is true
// when the frame carried zero bytes and msg/err should be ignored.
func (t *WifiTransport) recvOneFrame() (msg *protocol.Message, noop bool, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(t.conn, lenBuf[:]); err != nil {
		t.connected.Store(false)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, errs.ErrConnectionClosed
		}
		return nil, false, errs.Wrap(errs.KindNetwork, "wifi_recv_length_prefix", err)
	}

	msgLen := binary.BigEndian.Uint32(lenBuf[:])
	if msgLen > MaxWifiMessageSize {
		t.connected.Store(false)
		return nil, false, errs.ErrTooLarge
	}
	if msgLen == 0 {
		return nil, true, nil
	}

	data := make([]byte, msgLen)
	if _, err := io.ReadFull(t.conn, data); err != nil {
		t.connected.Store(false)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, errs.ErrConnectionClosed
		}
		return nil, false, errs.Wrap(errs.KindNetwork, "wifi_recv_payload", err)
	}

	decoded, err := protocol.Deserialize(data)
	if err != nil {
		return nil, false, err
	}
	return decoded, false, nil
}

// IsConnected reports the last-observed connection state.
func (t *WifiTransport) IsConnected() bool {
	return t.connected.Load()
}

// Channel reports ChannelWiFi.
func (t *WifiTransport) Channel() Channel {
	return ChannelWiFi
}

// PeerDeviceID reports the remote device this transport was created
// for.
func (t *WifiTransport) PeerDeviceID() string {
	return t.deviceID
}

// Close is idempotent; subsequent Send/Recv calls report
// ErrConnectionClosed.
func (t *WifiTransport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return errs.Wrap(errs.KindNetwork, "wifi_close", err)
	}
	return nil
}

var _ Transport = (*WifiTransport)(nil)
