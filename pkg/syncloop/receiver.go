package syncloop

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
)

// DefaultMaxMessageSize bounds an inbound ClipboardSync payload. The
// original source's DEFAULT_MAX_MESSAGE_SIZE constant is not present
// in the retrieved sources, so this is sized conservatively below the
// transport's own 16MiB frame cap — a clipboard payload this large is
// already unusable in practice.
const DefaultMaxMessageSize = 1 * 1024 * 1024

// DefaultDedupWindow bounds how long a (sender, timestamp, hash)
// tuple is remembered to suppress a duplicate inbound delivery, e.g.
// a retransmit whose Ack was lost in transit.
const DefaultDedupWindow = 10 * time.Second

// ReceivedClipboard is delivered to a host callback once an inbound
// ClipboardSync clears the size and dedup checks.
type ReceivedClipboard struct {
	Payload  []byte
	From     string
	Received time.Time
}

// AckSender is the narrow surface Receiver needs to send an Ack back
// to the device that sent a ClipboardSync.
type AckSender interface {
	SendAck(deviceID string, ack *protocol.Message) error
}

// Receiver implements the inbound half of C10: validate, dedup,
// record the content in the loop guard, emit a callback, and ack.
type Receiver struct {
	localDeviceID string
	maxSize       int
	loopGuard     *LoopGuard
	acker         AckSender
	onReceive     func(ReceivedClipboard)

	mu    sync.Mutex
	dedup *ttlcache.Cache[dedupKey, struct{}]
}

type dedupKey struct {
	deviceID    string
	timestampMs uint64
	fp          fingerprint
}

// NewReceiver builds a receiver using the default size cap and dedup
// window. loopGuard and acker must not be nil; onReceive is invoked
// for every inbound message that survives validation.
func NewReceiver(localDeviceID string, loopGuard *LoopGuard, acker AckSender, onReceive func(ReceivedClipboard)) *Receiver {
	dedup := ttlcache.New[dedupKey, struct{}](
		ttlcache.WithTTL[dedupKey, struct{}](DefaultDedupWindow),
	)
	go dedup.Start()
	return &Receiver{
		localDeviceID: localDeviceID,
		maxSize:       DefaultMaxMessageSize,
		loopGuard:     loopGuard,
		acker:         acker,
		onReceive:     onReceive,
		dedup:         dedup,
	}
}

// SetMaxMessageSize overrides the default size cap.
func (r *Receiver) SetMaxMessageSize(n int) { r.maxSize = n }

// Stop halts the receiver's background dedup-eviction goroutine.
func (r *Receiver) Stop() {
	r.dedup.Stop()
}

// HandleClipboardSync processes one inbound ClipboardSync message.
func (r *Receiver) HandleClipboardSync(msg *protocol.Message) error {
	if msg.MsgType != protocol.MessageTypeClipboardSync {
		return errs.New(errs.KindLocal, "not_clipboard_sync")
	}
	if len(msg.Payload) > r.maxSize {
		return errs.ErrTooLarge
	}

	fp := fingerprintOf(msg.Payload)
	key := dedupKey{deviceID: msg.DeviceID, timestampMs: msg.TimestampMs, fp: fp}

	r.mu.Lock()
	if r.dedup.Get(key) != nil {
		r.mu.Unlock()
		return r.sendAck(msg)
	}
	r.dedup.Set(key, struct{}{}, ttlcache.DefaultTTL)
	r.mu.Unlock()

	r.loopGuard.RecordRemote(msg.Payload, msg.DeviceID)

	if r.onReceive != nil {
		r.onReceive(ReceivedClipboard{
			Payload:  msg.Payload,
			From:     msg.DeviceID,
			Received: time.Now(),
		})
	}

	return r.sendAck(msg)
}

func (r *Receiver) sendAck(msg *protocol.Message) error {
	ack := protocol.NewAck(r.localDeviceID, msg.TimestampMs)
	return r.acker.SendAck(msg.DeviceID, ack)
}
