package ble

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"nearclip/pkg/errs"
)

// DefaultReassembleTimeout bounds how long a partial message may sit
// incomplete before it is dropped.
const DefaultReassembleTimeout = 30 * time.Second

// MaxConcurrentMessages caps in-flight reassemblies; the oldest is
// evicted once this is exceeded.
const MaxConcurrentMessages = 8

type pendingMessage struct {
	total     uint16
	buffers   map[uint16][]byte
	firstSeen time.Time
}

func (p *pendingMessage) complete() bool {
	return len(p.buffers) == int(p.total)
}

func (p *pendingMessage) assemble() []byte {
	var out bytes.Buffer
	for i := uint16(0); i < p.total; i++ {
		out.Write(p.buffers[i])
	}
	return out.Bytes()
}

// Reassembler collects chunks keyed by message id and emits completed
// messages. It is backed by a ttlcache.Cache so that stale partial
// messages expire on their own (tracked via `first_seen`/
// `DEFAULT_REASSEMBLE_TIMEOUT`), the same way dc4eu-vc's
// EphemeralEncryptionKeyCache backs a TTL-bounded map.
type Reassembler struct {
	mu       sync.Mutex
	cache    *ttlcache.Cache[string, *pendingMessage]
	onExpire func()
}

// NewReassembler builds a reassembler with the default timeout and
// concurrency cap.
func NewReassembler() *Reassembler {
	return NewReassemblerWithOptions(DefaultReassembleTimeout, MaxConcurrentMessages)
}

// NewReassemblerWithOptions builds a reassembler with explicit
// tuning, primarily for tests.
func NewReassemblerWithOptions(timeout time.Duration, capacity uint64) *Reassembler {
	cache := ttlcache.New[string, *pendingMessage](
		ttlcache.WithTTL[string, *pendingMessage](timeout),
		ttlcache.WithCapacity[string, *pendingMessage](capacity),
		ttlcache.WithDisableTouchOnHit[string, *pendingMessage](),
	)

	r := &Reassembler{cache: cache}
	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *pendingMessage]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		if r.onExpire != nil {
			r.onExpire()
		}
	})

	go cache.Start()
	return r
}

// OnExpire registers the callback invoked once per partial message
// whose TTL elapses before every chunk arrived, the same eviction-
// callback pattern Controller's discovery cache uses to surface a
// peripheral going silent. Without this, a timed-out partial message
// just vanishes; a caller that wants that surfaced as
// errs.ErrIncompleteMessage hooks in here.
func (r *Reassembler) OnExpire(cb func()) {
	r.onExpire = cb
}

// Stop shuts down the cache's background eviction goroutine.
func (r *Reassembler) Stop() {
	r.cache.Stop()
}

// Feed ingests one decoded chunk. It returns the complete message
// bytes and true once every chunk for that message id has arrived;
// otherwise it returns nil, false. A mismatching duplicate (same
// index, different bytes) is treated as corruption and drops the
// whole in-flight entry, surfacing errs.ErrIncompleteMessage.
func (r *Reassembler) Feed(c *Chunk) ([]byte, bool, error) {
	key := string(c.MessageID[:])

	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.cache.Get(key)
	var msg *pendingMessage
	if item == nil {
		msg = &pendingMessage{
			total:     c.TotalChunks,
			buffers:   make(map[uint16][]byte),
			firstSeen: time.Now(),
		}
		r.cache.Set(key, msg, ttlcache.DefaultTTL)
	} else {
		msg = item.Value()
		if msg.total != c.TotalChunks {
			r.cache.Delete(key)
			return nil, false, errs.ErrIncompleteMessage
		}
	}

	if existing, ok := msg.buffers[c.ChunkIndex]; ok {
		if !bytes.Equal(existing, c.Payload) {
			r.cache.Delete(key)
			return nil, false, errs.ErrIncompleteMessage
		}
		return nil, false, nil
	}

	msg.buffers[c.ChunkIndex] = c.Payload

	if !msg.complete() {
		return nil, false, nil
	}

	full := msg.assemble()
	r.cache.Delete(key)
	return full, true, nil
}

// DropAll discards every in-flight reassembly, used when the
// underlying peer disconnects.
func (r *Reassembler) DropAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.DeleteAll()
}

// Len reports the number of in-flight (incomplete) messages.
func (r *Reassembler) Len() int {
	return r.cache.Len()
}
