package ble

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jellydator/ttlcache/v3"

	"nearclip/pkg/errs"
)

// DefaultDiscoveryTTL bounds how long a scanned-but-unconnected
// peripheral stays in the discovery cache before it is considered
// lost (mirrors device_lost_timeout_ms, default 30s).
const DefaultDiscoveryTTL = 30 * time.Second

// DefaultHealthCheckInterval matches the health-check timeout.
const DefaultHealthCheckInterval = 30 * time.Second

// DiscoveredPeer is one entry in the controller's discovery cache.
type DiscoveredPeer struct {
	Peripheral PeripheralUUID
	LocalName  string
}

// Controller owns scanning, the peripheral-uuid <-> device-id
// identity map, and auto-reconnect for a BleHardware. Both the
// discovery cache and identity map are ttlcache
// instances. Discovery entries carry a TTL, so a peer that stops
// advertising expires on its own via OnEviction rather than a manual
// sweep goroutine; identity entries are stored without a TTL and stay
// until Close — the same pattern acceptData uses a plain
// map + manual sweep for, generalized here with the library the rest
// of this module already depends on.
type Controller struct {
	hardware BleHardware

	discovery *ttlcache.Cache[PeripheralUUID, DiscoveredPeer]
	identity  *ttlcache.Cache[PeripheralUUID, string] // peripheral -> device_id

	mu        sync.Mutex
	connected map[PeripheralUUID]bool

	onDeviceDiscovered func(DiscoveredPeer)
	onDeviceLost       func(PeripheralUUID)
	onConnectionEvent  func(ConnectionEvent)

	backoffFactory func() backoff.BackOff
}

// NewController builds a controller around hardware with the default
// discovery TTL.
func NewController(hardware BleHardware) *Controller {
	discovery := ttlcache.New[PeripheralUUID, DiscoveredPeer](
		ttlcache.WithTTL[PeripheralUUID, DiscoveredPeer](DefaultDiscoveryTTL),
	)
	identity := ttlcache.New[PeripheralUUID, string]()

	c := &Controller{
		hardware:  hardware,
		discovery: discovery,
		identity:  identity,
		connected: make(map[PeripheralUUID]bool),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}

	discovery.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[PeripheralUUID, DiscoveredPeer]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		if c.onDeviceLost != nil {
			c.onDeviceLost(item.Key())
		}
	})

	go discovery.Start()
	go identity.Start()

	hardware.OnConnectionEvent(c.handleConnectionEvent)

	return c
}

// OnDeviceDiscovered registers the callback invoked for each new scan
// result.
func (c *Controller) OnDeviceDiscovered(cb func(DiscoveredPeer)) {
	c.onDeviceDiscovered = cb
}

// OnDeviceLost registers the callback invoked when a discovered
// peripheral's entry expires without ever being bonded.
func (c *Controller) OnDeviceLost(cb func(PeripheralUUID)) {
	c.onDeviceLost = cb
}

// OnConnectionEvent registers a second subscriber for the hardware's
// connect/disconnect events, invoked after the controller's own
// IsConnected bookkeeping is updated. BleHardware.OnConnectionEvent
// only holds one callback slot, already claimed by the controller
// itself in NewController, so a caller that also needs connect/
// disconnect notifications (the facade, to stand up or tear down a
// data-plane Transport) hooks in here instead of fighting over that
// slot.
func (c *Controller) OnConnectionEvent(cb func(ConnectionEvent)) {
	c.onConnectionEvent = cb
}

// StartScan begins scanning, recording every result in the discovery
// cache and notifying onDeviceDiscovered for new ones.
func (c *Controller) StartScan(ctx context.Context) error {
	return c.hardware.StartScan(ctx, func(result ScanResult) {
		peer := DiscoveredPeer{Peripheral: result.Peripheral, LocalName: result.LocalName}
		isNew := c.discovery.Get(result.Peripheral) == nil
		c.discovery.Set(result.Peripheral, peer, ttlcache.DefaultTTL)
		if isNew && c.onDeviceDiscovered != nil {
			c.onDeviceDiscovered(peer)
		}
	})
}

// StopScan halts scanning.
func (c *Controller) StopScan() error {
	return c.hardware.StopScan()
}

// Bond records the device id a peripheral identified itself as during
// pairing, so future reconnects can be attributed to the right
// device.
func (c *Controller) Bond(peripheral PeripheralUUID, deviceID string) {
	c.identity.Set(peripheral, deviceID, ttlcache.NoTTL)
	c.discovery.Delete(peripheral)
}

// DeviceIDFor looks up the device id bonded to a peripheral.
func (c *Controller) DeviceIDFor(peripheral PeripheralUUID) (string, bool) {
	item := c.identity.Get(peripheral)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Connect establishes a connection to a bonded peripheral.
func (c *Controller) Connect(ctx context.Context, peripheral PeripheralUUID) error {
	return c.hardware.Connect(ctx, peripheral)
}

// ReconnectWithBackoff retries Connect against peripheral using an
// exponential backoff strategy until it succeeds or ctx is canceled
// (the controller's auto-reconnect duty).
func (c *Controller) ReconnectWithBackoff(ctx context.Context, peripheral PeripheralUUID) error {
	op := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return c.Connect(ctx, peripheral)
	}

	err := backoff.Retry(op, backoff.WithContext(c.backoffFactory(), ctx))
	if err != nil {
		return errs.Wrap(errs.KindBluetooth, "ble_reconnect_exhausted", err)
	}
	return nil
}

// IsConnected reports the controller's last-observed connection state
// for a peripheral.
func (c *Controller) IsConnected(peripheral PeripheralUUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected[peripheral]
}

func (c *Controller) handleConnectionEvent(evt ConnectionEvent) {
	c.mu.Lock()
	c.connected[evt.Peripheral] = evt.Connected
	c.mu.Unlock()

	if c.onConnectionEvent != nil {
		c.onConnectionEvent(evt)
	}
}

// Close stops the discovery and identity caches' background eviction
// goroutines.
func (c *Controller) Close() {
	c.discovery.Stop()
	c.identity.Stop()
}
