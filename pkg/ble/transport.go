package ble

import (
	"context"
	"sync"
	"sync/atomic"

	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
	"nearclip/pkg/transport"
)

// Transport implements transport.Transport over a single connected
// peripheral, chunking outgoing messages and reassembling incoming
// ones. It drives an injected BleHardware so the
// chunk/reassemble logic here never touches platform BLE APIs
// directly — the generalization of BLEManager.sendLoop,
// which hard-coded both the GATT calls and the chat framing together.
type Transport struct {
	peripheral  PeripheralUUID
	peerDevice  string
	hardware    BleHardware
	reassembler *Reassembler

	connected atomic.Bool

	recvMu sync.Mutex
	recvCh chan *protocol.Message
	errCh  chan error
}

// NewTransport builds a BLE transport for an already-connected
// peripheral. peerDeviceID should be the device id learned during
// pairing, or the peripheral address as a placeholder until it is.
func NewTransport(hardware BleHardware, peripheral PeripheralUUID, peerDeviceID string) *Transport {
	t := &Transport{
		peripheral:  peripheral,
		peerDevice:  peerDeviceID,
		hardware:    hardware,
		reassembler: NewReassembler(),
		recvCh:      make(chan *protocol.Message, 8),
		errCh:       make(chan error, 1),
	}
	t.connected.Store(true)
	t.reassembler.OnExpire(func() {
		select {
		case t.errCh <- errs.ErrIncompleteMessage:
		default:
		}
	})
	return t
}

// HandleChunk feeds one inbound chunk (delivered via the hardware's
// OnChunk callback) into the reassembler, publishing a completed
// message to Recv once all its chunks have arrived.
func (t *Transport) HandleChunk(data []byte) {
	chunk, err := DecodeChunk(data)
	if err != nil {
		select {
		case t.errCh <- err:
		default:
		}
		return
	}

	full, done, err := t.reassembler.Feed(chunk)
	if err != nil {
		select {
		case t.errCh <- err:
		default:
		}
		return
	}
	if !done {
		return
	}

	msg, err := protocol.Deserialize(full)
	if err != nil {
		select {
		case t.errCh <- err:
		default:
		}
		return
	}

	select {
	case t.recvCh <- msg:
	default:
	}
}

// HandleDisconnect marks the transport closed and discards any
// partial reassemblies on disconnect.
func (t *Transport) HandleDisconnect() {
	t.connected.Store(false)
	t.reassembler.DropAll()
}

// Send serializes msg, chunks it to the peripheral's negotiated MTU,
// and writes every chunk in order.
func (t *Transport) Send(ctx context.Context, msg *protocol.Message) error {
	if !t.connected.Load() {
		return errs.ErrConnectionClosed
	}

	data, err := msg.Serialize()
	if err != nil {
		return errs.Wrap(errs.KindSync, "ble_send_serialize", err)
	}

	mtu, err := t.hardware.GetMTU(t.peripheral)
	if err != nil {
		return err
	}

	chunks, err := NewChunker(mtu).Split(data)
	if err != nil {
		return err
	}

	for _, chunk := range chunks {
		if _, err := t.hardware.WriteData(t.peripheral, chunk); err != nil {
			t.connected.Store(false)
			return err
		}
	}
	return nil
}

// Recv blocks until a full message has been reassembled, a decode,
// reassembly or expiry error occurs, or the context is canceled.
// Close and a disconnect do not wake a Recv that is already blocked.
func (t *Transport) Recv(ctx context.Context) (*protocol.Message, error) {
	select {
	case msg := <-t.recvCh:
		return msg, nil
	case err := <-t.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, errs.Wrap(errs.KindTimeout, "ble_recv_canceled", ctx.Err())
	}
}

// IsConnected reports the last-observed connection state.
func (t *Transport) IsConnected() bool {
	return t.connected.Load() && t.hardware.IsConnected(t.peripheral)
}

// Channel reports ChannelBLE.
func (t *Transport) Channel() transport.Channel {
	return transport.ChannelBLE
}

// PeerDeviceID reports the remote device id this transport targets.
func (t *Transport) PeerDeviceID() string {
	return t.peerDevice
}

// Close disconnects the underlying peripheral. It is idempotent.
func (t *Transport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	t.reassembler.Stop()
	return t.hardware.Disconnect(t.peripheral)
}

var _ transport.Transport = (*Transport)(nil)
