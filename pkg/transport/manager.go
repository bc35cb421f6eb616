package transport

import (
	"context"
	"sync"

	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
)

// PriorityWiFi and PriorityBLE are the default channel priorities
// ("WiFi priority > BLE priority").
const (
	PriorityWiFi = 10
	PriorityBLE  = 5
)

// TransportEntry pairs a live Transport with the priority it competes
// at when a device has more than one connected channel.
type TransportEntry struct {
	Channel     Channel
	Transport   Transport
	IsConnected bool
	Priority    int
}

// ChannelSelector picks which entry to use first, given every entry
// currently registered for a device — a small, swappable capability
// interface, like DeviceStore or BleHardware.
type ChannelSelector interface {
	Select(entries []*TransportEntry) *TransportEntry
}

// PriorityChannelSelector is the default selector: highest-priority
// connected entry wins.
type PriorityChannelSelector struct{}

// Select implements ChannelSelector.
func (PriorityChannelSelector) Select(entries []*TransportEntry) *TransportEntry {
	var best *TransportEntry
	for _, e := range entries {
		if !e.IsConnected {
			continue
		}
		if best == nil || e.Priority > best.Priority {
			best = e
		}
	}
	return best
}

// Manager is the per-device transport registry: it tracks every
// channel registered for a device, selects the best
// one to send on, and fails over to the next-best connected channel
// on a send error (except for Ack messages, which must never be
// duplicated by a failover retry).
type Manager struct {
	mu       sync.Mutex
	entries  map[string][]*TransportEntry
	selector ChannelSelector

	// FailoverOnError, when true, causes SendToDevice to retry
	// remaining connected entries (in priority order) after the best
	// entry's Send fails. Defaults to true; set false to disable.
	FailoverOnError bool
}

// NewManager builds a Manager using the default priority selector and
// failover enabled.
func NewManager() *Manager {
	return &Manager{
		entries:         make(map[string][]*TransportEntry),
		selector:        PriorityChannelSelector{},
		FailoverOnError: true,
	}
}

// SetSelector overrides the default channel selector.
func (m *Manager) SetSelector(s ChannelSelector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selector = s
}

// AddTransport registers (or replaces, if one exists for the same
// channel) a transport for deviceID, at the given priority.
func (m *Manager) AddTransport(deviceID string, t Transport, priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[deviceID]
	for i, e := range list {
		if e.Channel == t.Channel() {
			list[i] = &TransportEntry{Channel: t.Channel(), Transport: t, Priority: priority}
			return
		}
	}
	m.entries[deviceID] = append(list, &TransportEntry{Channel: t.Channel(), Transport: t, Priority: priority})
}

// RemoveTransport deregisters the entry for deviceID on the given
// channel, if any, and returns it so the caller may close it.
func (m *Manager) RemoveTransport(deviceID string, ch Channel) Transport {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[deviceID]
	for i, e := range list {
		if e.Channel == ch {
			m.entries[deviceID] = append(list[:i], list[i+1:]...)
			return e.Transport
		}
	}
	return nil
}

// RemoveDevice deregisters every transport for a device, e.g. on
// unpair, returning them so the caller may close each.
func (m *Manager) RemoveDevice(deviceID string) []Transport {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[deviceID]
	delete(m.entries, deviceID)

	out := make([]Transport, 0, len(list))
	for _, e := range list {
		out = append(out, e.Transport)
	}
	return out
}

// snapshot copies out deviceID's entries, refreshing each one's
// IsConnected against its Transport while still holding the lock so
// concurrent SendToDevice/GetBestTransport callers never race on that
// field. The copy is of the TransportEntry values themselves (not the
// pointers backing m.entries), so a caller's Select/filter pass reads
// a point-in-time view instead of state another goroutine could mutate
// underneath it.
func (m *Manager) snapshot(deviceID string) ([]*TransportEntry, ChannelSelector) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.entries[deviceID]
	entries := make([]*TransportEntry, len(src))
	for i, e := range src {
		copied := *e
		copied.IsConnected = e.Transport.IsConnected()
		entries[i] = &copied
	}
	return entries, m.selector
}

// GetBestTransport returns the highest-priority connected entry for a
// device, or nil if none is connected.
func (m *Manager) GetBestTransport(deviceID string) Transport {
	entries, selector := m.snapshot(deviceID)
	best := selector.Select(entries)
	if best == nil {
		return nil
	}
	return best.Transport
}

// SendToDevice sends on the best connected transport for deviceID.
// On failure, if FailoverOnError is enabled and msg is not an Ack, it
// falls through the remaining connected entries in priority order;
// the first success returns nil, exhaustion returns the last error.
// Ack messages never fail over (at-most-once semantics).
func (m *Manager) SendToDevice(ctx context.Context, deviceID string, msg *protocol.Message) error {
	entries, selector := m.snapshot(deviceID)
	if len(entries) == 0 {
		return errs.ErrDeviceNotFound
	}

	ordered := orderByPriority(entries, selector)
	connected := make([]*TransportEntry, 0, len(ordered))
	for _, e := range ordered {
		if e.IsConnected {
			connected = append(connected, e)
		}
	}
	if len(connected) == 0 {
		return errs.ErrDeviceNotFound
	}

	var lastErr error
	allowFailover := m.FailoverOnError && msg.MsgType != protocol.MessageTypeAck

	for _, e := range connected {
		err := e.Transport.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if !allowFailover {
			break
		}
	}
	return lastErr
}

// BroadcastResult is one device's outcome from Broadcast.
type BroadcastResult struct {
	DeviceID string
	Err      error
}

// Broadcast sends msg independently to every registered device,
// returning each device's result.
func (m *Manager) Broadcast(ctx context.Context, msg *protocol.Message) []BroadcastResult {
	m.mu.Lock()
	deviceIDs := make([]string, 0, len(m.entries))
	for id := range m.entries {
		deviceIDs = append(deviceIDs, id)
	}
	m.mu.Unlock()

	results := make([]BroadcastResult, len(deviceIDs))
	for i, id := range deviceIDs {
		results[i] = BroadcastResult{DeviceID: id, Err: m.SendToDevice(ctx, id, msg)}
	}
	return results
}

// orderByPriority sorts a copy of entries highest-priority first; the
// selector's own Select is still the authority for single-pick
// lookups, this just gives SendToDevice's failover loop a stable,
// deterministic fallback order.
func orderByPriority(entries []*TransportEntry, _ ChannelSelector) []*TransportEntry {
	out := make([]*TransportEntry, len(entries))
	copy(out, entries)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority > out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
