package syncloop

import (
	"context"
	"sync"
	"time"

	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
	"nearclip/pkg/retry"
	"nearclip/pkg/transport"
)

// DefaultAckTimeout and DefaultRetryCount match the default
// timeouts table.
const (
	DefaultAckTimeout = 5 * time.Second
	DefaultRetryCount = 3
)

// SendResult describes the outcome of a ClipboardSync send: acked, or
// retries exhausted. SendClipboard does not produce one; it reports
// the outcome through its error return.
type SendResult struct {
	Success bool
	Err     error
}

// Sender drives the clipboard-sync half of C10: build the message,
// hand it to the transport manager, wait for a matching Ack, and
// retry through the shared retry executor on error or timeout.
type Sender struct {
	localDeviceID string
	manager       *transport.Manager
	ackTimeout    time.Duration
	retryCount    int

	mu      sync.Mutex
	pending map[pendingKey]chan struct{}
}

type pendingKey struct {
	deviceID    string
	timestampMs uint64
}

// NewSender builds a sender bound to manager, using the default ack
// timeout and retry count. localDeviceID is this device's own id, used
// as the ClipboardSync/Ack "from" field.
func NewSender(localDeviceID string, manager *transport.Manager) *Sender {
	return &Sender{
		localDeviceID: localDeviceID,
		manager:       manager,
		ackTimeout:    DefaultAckTimeout,
		retryCount:    DefaultRetryCount,
		pending:       make(map[pendingKey]chan struct{}),
	}
}

// SetAckTimeout overrides the default ack wait.
func (s *Sender) SetAckTimeout(d time.Duration) { s.ackTimeout = d }

// SetRetryCount overrides the stored retry count. SendClipboard does
// not read this value: its attempts are bounded only by the Strategy
// passed to it.
func (s *Sender) SetRetryCount(n int) { s.retryCount = n }

// HandleAck notifies a pending send that its Ack arrived. Called from
// the receive path when an Ack message comes in.
func (s *Sender) HandleAck(ack *protocol.Message) {
	ts, ok := ack.AckedTimestampMs()
	if !ok {
		return
	}
	key := pendingKey{deviceID: ack.DeviceID, timestampMs: ts}

	s.mu.Lock()
	ch, ok := s.pending[key]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// SendClipboard builds and sends a ClipboardSync message to deviceID,
// retrying per strategy until it is acked or attempts are exhausted.
func (s *Sender) SendClipboard(ctx context.Context, deviceID string, payload []byte, strategy retry.Strategy) error {
	// Every attempt resends the same message, so a retransmit carries
	// the original timestamp and the receiver's dedup recognises it.
	msg := protocol.NewClipboardSync(payload, s.localDeviceID)
	_, err := retry.Do(ctx, retry.Config{}, strategy, func(ctx context.Context) (struct{}, error) {
		key := pendingKey{deviceID: deviceID, timestampMs: msg.TimestampMs}
		ackCh := make(chan struct{}, 1)
		s.mu.Lock()
		s.pending[key] = ackCh
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.pending, key)
			s.mu.Unlock()
		}()

		if err := s.manager.SendToDevice(ctx, deviceID, msg); err != nil {
			return struct{}{}, err
		}

		select {
		case <-ackCh:
			return struct{}{}, nil
		case <-time.After(s.ackTimeout):
			return struct{}{}, errs.ErrAckTimeout
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	})

	return err
}
