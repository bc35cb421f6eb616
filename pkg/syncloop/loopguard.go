// Package syncloop implements the clipboard sync sender/receiver and
// the loop guard that suppresses echo loops.
package syncloop

import (
	"crypto/sha256"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultLoopGuardHistorySize and DefaultLoopGuardTTL match the
// original Rust source's LoopGuard defaults
// (nearclip-sync/src/loop_guard.rs: DEFAULT_HISTORY_SIZE=100,
// DEFAULT_EXPIRY_SECS=60).
const (
	DefaultLoopGuardHistorySize = 100
	DefaultLoopGuardTTLSeconds  = 60
)

type fingerprint [16]byte

func fingerprintOf(content []byte) fingerprint {
	sum := sha256.Sum256(content)
	var fp fingerprint
	copy(fp[:], sum[:16])
	return fp
}

// LoopGuard prevents a just-received clipboard write from being
// echoed straight back to its sender: record_remote marks the
// content's fingerprint as remote-origin, and should_sync checks
// whether the current content matches a still-live remote fingerprint.
// Bounded by a capacity-capped, TTL-expiring
// ttlcache.Cache, matching every other TTL-bounded map in this
// module.
type LoopGuard struct {
	cache *ttlcache.Cache[fingerprint, string]
}

// NewLoopGuard builds a guard with the default history size and TTL.
func NewLoopGuard() *LoopGuard {
	return NewLoopGuardWithOptions(DefaultLoopGuardHistorySize, DefaultLoopGuardTTLSeconds)
}

// NewLoopGuardWithOptions builds a guard with explicit capacity (oldest
// entry evicted once exceeded) and TTL in seconds.
func NewLoopGuardWithOptions(capacity uint64, ttlSeconds int64) *LoopGuard {
	cache := ttlcache.New[fingerprint, string](
		ttlcache.WithTTL[fingerprint, string](time.Duration(ttlSeconds)*time.Second),
		ttlcache.WithCapacity[fingerprint, string](capacity),
	)
	go cache.Start()
	return &LoopGuard{cache: cache}
}

// RecordRemote marks content's fingerprint as having just arrived
// from fromDevice, so a subsequent local echo of the same content is
// suppressed.
func (g *LoopGuard) RecordRemote(content []byte, fromDevice string) {
	g.cache.Set(fingerprintOf(content), fromDevice, ttlcache.DefaultTTL)
}

// ShouldSync reports whether content should be propagated: false iff
// a matching remote-origin fingerprint is still live.
func (g *LoopGuard) ShouldSync(content []byte) bool {
	return g.cache.Get(fingerprintOf(content)) == nil
}

// Stop halts the guard's background eviction goroutine.
func (g *LoopGuard) Stop() {
	g.cache.Stop()
}
