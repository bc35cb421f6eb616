// Package manager implements the facade that binds every collaborator
// (pairing, protocol, ble, transport, retry, syncloop) into one
// lifecycle: accept/connect loops, per-connection dispatch by message
// type, and the host callback surface. The facade
// owns no business logic beyond wiring — every decision still lives in
// the component it's grounded on.
package manager

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"sync"
	"time"

	"nearclip/pkg/ble"
	"nearclip/pkg/crypto"
	"nearclip/pkg/errs"
	"nearclip/pkg/pairing"
	"nearclip/pkg/protocol"
	"nearclip/pkg/retry"
	"nearclip/pkg/syncloop"
	"nearclip/pkg/transport"
)

// DefaultBlePairingTimeout bounds how long a freshly connected BLE
// peripheral has to complete the pairing handshake before the
// connection is abandoned, the BLE-channel analog of
// config.Config.TcpConnectTimeout.
const DefaultBlePairingTimeout = 10 * time.Second

// Manager binds every collaborator package into one running facade,
// grounded on main.go's accept-loop shape
// (runHost/handleConnection), generalized from a single RFCOMM chat
// socket to a multi-device, multi-channel transport registry with
// typed message dispatch.
type Manager struct {
	localDeviceID   string
	localDeviceName string
	localPlatform   protocol.DevicePlatform
	keypair         *crypto.EcdhKeyPair

	store        pairing.DeviceStore
	transports   *transport.Manager
	loopGuard    *syncloop.LoopGuard
	sender       *syncloop.Sender
	receiver     *syncloop.Receiver
	bleController *ble.Controller
	bleHardware  ble.BleHardware

	wifiListener  *transport.WifiListener
	wifiConnector *transport.WifiConnector

	callbacks Callbacks

	mu       sync.Mutex
	lastSeen map[string]struct{} // device ids that have sent a Heartbeat
	cancel   context.CancelFunc
	runCtx   context.Context // set by Start; used by BLE hardware callbacks, which carry no context of their own

	bleMu         sync.Mutex
	bleTransports map[ble.PeripheralUUID]*ble.Transport // peripherals with a live data-plane Transport, pre- or post-handshake
}

// Config bundles everything Manager needs to construct its
// collaborators.
type Config struct {
	LocalDeviceID   string
	LocalDeviceName string
	LocalPlatform   protocol.DevicePlatform
	Keypair         *crypto.EcdhKeyPair
	Store           pairing.DeviceStore
	WifiListener    *transport.WifiListener
	WifiConnector   *transport.WifiConnector
	BleHardware     ble.BleHardware
	Callbacks       Callbacks
}

// New builds a Manager and all of its internal collaborators, but
// does not yet bind listeners — call Start for that.
func New(cfg Config) *Manager {
	transports := transport.NewManager()
	loopGuard := syncloop.NewLoopGuard()

	m := &Manager{
		localDeviceID:   cfg.LocalDeviceID,
		localDeviceName: cfg.LocalDeviceName,
		localPlatform:   cfg.LocalPlatform,
		keypair:         cfg.Keypair,
		store:           cfg.Store,
		transports:      transports,
		loopGuard:       loopGuard,
		wifiListener:    cfg.WifiListener,
		wifiConnector:   cfg.WifiConnector,
		bleHardware:     cfg.BleHardware,
		callbacks:       cfg.Callbacks,
		lastSeen:        make(map[string]struct{}),
		bleTransports:   make(map[ble.PeripheralUUID]*ble.Transport),
	}

	m.sender = syncloop.NewSender(cfg.LocalDeviceID, transports)
	m.receiver = syncloop.NewReceiver(cfg.LocalDeviceID, loopGuard, &syncloop.ManagerAckSender{Manager: transports}, func(rc syncloop.ReceivedClipboard) {
		m.callbacks.clipboardReceived(rc.Payload, rc.From)
	})

	if cfg.BleHardware != nil {
		m.bleController = ble.NewController(cfg.BleHardware)
		m.bleController.OnDeviceDiscovered(func(peer ble.DiscoveredPeer) {
			if m.callbacks.OnDeviceDiscovered != nil {
				m.callbacks.OnDeviceDiscovered(DiscoveredDevice{Peripheral: string(peer.Peripheral), LocalName: peer.LocalName})
			}
		})
		m.bleController.OnDeviceLost(func(p ble.PeripheralUUID) {
			if m.callbacks.OnDeviceLost != nil {
				m.callbacks.OnDeviceLost(string(p))
			}
		})
		// The controller's own constructor already claimed
		// BleHardware.OnConnectionEvent's single callback slot, so the
		// facade rides along via Controller.OnConnectionEvent instead of
		// calling cfg.BleHardware.OnConnectionEvent a second time (which
		// would just overwrite the controller's registration). OnChunk's
		// slot is still free — nothing else in this package claims it —
		// so the facade takes it directly to feed inbound chunks to the
		// right data-plane Transport.
		m.bleController.OnConnectionEvent(m.handleBleConnectionEvent)
		cfg.BleHardware.OnChunk(m.handleBleChunk)
	}

	return m
}

// Start binds the WiFi accept loop (and BLE advertising/scanning, if
// configured) and returns once both are running; it does not block.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.runCtx = ctx

	if m.wifiListener != nil {
		go m.acceptLoop(ctx)
	}

	if m.bleHardware != nil {
		pubHash := sha256.Sum256(m.keypair.PublicKeyBytesCompressed())
		if err := m.bleHardware.Configure(m.localDeviceID, pubHash[:]); err != nil {
			return err
		}
		if err := m.bleHardware.StartAdvertising(advertiseName(m.localDeviceName)); err != nil {
			return err
		}
		if err := m.bleController.StartScan(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Stop cancels the run context, closes the WiFi listener and the BLE
// controller, stops advertising and scanning, and stops the loop
// guard and receiver caches. It does not close the transports already
// registered with the transport manager.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.wifiListener != nil {
		m.wifiListener.Close()
	}
	if m.bleController != nil {
		m.bleController.Close()
	}
	if m.bleHardware != nil {
		m.bleHardware.StopAdvertising()
		m.bleHardware.StopScan()
	}
	m.loopGuard.Stop()
	m.receiver.Stop()
}

// Connect dials a known or newly discovered WiFi peer, runs the
// pairing/re-key handshake, and on success registers the resulting
// encrypted transport and starts its receive loop.
func (m *Manager) Connect(ctx context.Context, addr string) (string, error) {
	t, err := m.wifiConnector.Connect(ctx, "", addr)
	if err != nil {
		return "", err
	}

	ownPayload, err := m.buildPairingPayload()
	if err != nil {
		t.Close()
		return "", err
	}
	marshaled, err := ownPayload.Marshal()
	if err != nil {
		t.Close()
		return "", err
	}
	if err := t.Send(ctx, protocol.NewPairingRequest(marshaled, m.localDeviceID)); err != nil {
		t.Close()
		return "", err
	}

	resp, err := t.Recv(ctx)
	if err != nil {
		t.Close()
		return "", err
	}
	if resp.MsgType != protocol.MessageTypePairingResponse {
		t.Close()
		return "", errs.New(errs.KindSync, "expected_pairing_response")
	}

	device, rawSecret, err := m.runHandshake(resp)
	if err != nil {
		t.Close()
		m.callbacks.pairingRejected(peerDeviceIDFromEnvelope(resp), err)
		return "", err
	}

	encT, err := transport.NewEncryptedTransport(t, rawSecret)
	if err != nil {
		t.Close()
		return "", err
	}

	m.transports.AddTransport(device.DeviceID, encT, transport.PriorityWiFi)
	m.callbacks.deviceConnected(DeviceInfo{DeviceID: device.DeviceID, DeviceName: device.DeviceName, Platform: device.Platform})
	go m.receiveLoop(ctx, encT, device.DeviceID)

	return device.DeviceID, nil
}

// advertiseName truncates name to the GATT advertisement's byte cap
// (max advertise name 29 bytes).
func advertiseName(name string) string {
	if len(name) <= ble.MaxAdvertiseNameBytes {
		return name
	}
	return name[:ble.MaxAdvertiseNameBytes]
}

func peerDeviceIDFromEnvelope(resp *protocol.Message) string {
	payload, err := protocol.UnmarshalPairingPayload(resp.Payload)
	if err != nil {
		return ""
	}
	return payload.DeviceID
}

func (m *Manager) acceptLoop(ctx context.Context) {
	for {
		t, err := m.wifiListener.Accept(ctx)
		if err != nil {
			return
		}
		go m.handleIncoming(ctx, t)
	}
}

func (m *Manager) handleIncoming(ctx context.Context, t transport.Transport) {
	req, err := t.Recv(ctx)
	if err != nil {
		t.Close()
		return
	}
	if req.MsgType != protocol.MessageTypePairingRequest {
		t.Close()
		return
	}

	ownPayload, err := m.buildPairingPayload()
	if err != nil {
		t.Close()
		return
	}
	marshaled, err := ownPayload.Marshal()
	if err != nil {
		t.Close()
		return
	}

	device, rawSecret, err := m.runHandshake(req)
	if err != nil {
		m.callbacks.pairingRejected(peerDeviceIDFromEnvelope(req), err)
		t.Close()
		return
	}

	if err := t.Send(ctx, protocol.NewPairingResponse(marshaled, m.localDeviceID)); err != nil {
		t.Close()
		return
	}

	encT, err := transport.NewEncryptedTransport(t, rawSecret)
	if err != nil {
		t.Close()
		return
	}

	m.transports.AddTransport(device.DeviceID, encT, transport.PriorityWiFi)
	m.callbacks.deviceConnected(DeviceInfo{DeviceID: device.DeviceID, DeviceName: device.DeviceName, Platform: device.Platform})
	go m.receiveLoop(ctx, encT, device.DeviceID)
}

// buildPairingPayload assembles this device's own PairingRequest/
// Response payload with a freshly generated nonce.
func (m *Manager) buildPairingPayload() (*protocol.PairingPayload, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "pairing_nonce", err)
	}
	return &protocol.PairingPayload{
		DeviceID:   m.localDeviceID,
		DeviceName: m.localDeviceName,
		Platform:   m.localPlatform,
		PublicKey:  m.keypair.PublicKeyBytes(),
		Nonce:      nonce,
	}, nil
}

// runHandshake processes the peer's PairingRequest/Response envelope
// against a fresh Session, then either completes a brand-new pairing
// or, for an already-known device, verifies the freshly derived
// secret against the stored hash before reusing it as this
// connection's session key — the re-key path the "PairingRequest/
// Response → feed PairingSession" dispatch implies for a reconnecting
// device, since only the hash (never the raw secret) is persisted.
func (m *Manager) runHandshake(envelope *protocol.Message) (*pairing.PairedDevice, []byte, error) {
	peerPayload, err := protocol.UnmarshalPairingPayload(envelope.Payload)
	if err != nil {
		return nil, nil, err
	}
	if err := peerPayload.Validate(); err != nil {
		return nil, nil, err
	}

	peerData := pairing.New(peerPayload.DeviceID, peerPayload.PublicKey)

	session := pairing.NewSession(m.keypair)
	if err := session.ProcessPeerData(peerData); err != nil {
		return nil, nil, err
	}

	rawSecret, ok := session.SharedSecret()
	if !ok {
		return nil, nil, errs.New(errs.KindCrypto, "pairing_no_shared_secret")
	}

	existing, found, err := m.store.Get(peerPayload.DeviceID)
	if err != nil {
		return nil, nil, err
	}
	if found {
		hash := sha256.Sum256(rawSecret)
		if !existing.VerifySharedSecret(hash[:]) {
			return nil, nil, errs.New(errs.KindCrypto, "pairing_secret_mismatch")
		}
		return existing, rawSecret, nil
	}

	device, err := session.Complete(peerPayload.DeviceName, peerPayload.Platform)
	if err != nil {
		return nil, nil, err
	}
	if err := m.store.Save(device); err != nil {
		return nil, nil, err
	}
	return device, rawSecret, nil
}

// handleBleConnectionEvent is Controller.OnConnectionEvent's
// subscriber: a connect stands up a data-plane ble.Transport and runs
// the pairing handshake over it, a disconnect tears the matching
// transport down. Mirrors how acceptLoop/handleIncoming stand up and
// receiveLoop tears down a WiFi connection, generalized to a hardware
// callback instead of a blocking Accept.
func (m *Manager) handleBleConnectionEvent(evt ble.ConnectionEvent) {
	if evt.Connected {
		m.handleBleConnected(evt.Peripheral)
		return
	}
	m.handleBleDisconnected(evt.Peripheral)
}

func (m *Manager) handleBleConnected(peripheral ble.PeripheralUUID) {
	t := ble.NewTransport(m.bleHardware, peripheral, string(peripheral))

	m.bleMu.Lock()
	m.bleTransports[peripheral] = t
	m.bleMu.Unlock()

	go m.runBlePairing(peripheral, t)
}

func (m *Manager) handleBleDisconnected(peripheral ble.PeripheralUUID) {
	m.bleMu.Lock()
	t, ok := m.bleTransports[peripheral]
	delete(m.bleTransports, peripheral)
	m.bleMu.Unlock()
	if !ok {
		return
	}

	t.HandleDisconnect()
	if deviceID, bonded := m.bleController.DeviceIDFor(peripheral); bonded {
		m.transports.RemoveTransport(deviceID, transport.ChannelBLE)
		m.callbacks.deviceDisconnected(deviceID)
		// A bonded peripheral dropping is a link loss, not an unpair;
		// the controller's backoff-supervised reconnect takes over so
		// the device comes back without the user re-initiating pairing.
		go m.reconnectBleDevice(peripheral)
	}
}

// reconnectBleDevice retries Connect against a just-dropped bonded
// peripheral until it succeeds or the facade shuts down. A successful
// Connect fires another hardware ConnectionEvent, which
// handleBleConnected picks up exactly like a first-time connect,
// re-running the handshake (now a reconnect, per runHandshake) and
// re-registering the transport.
func (m *Manager) reconnectBleDevice(peripheral ble.PeripheralUUID) {
	err := m.bleController.ReconnectWithBackoff(m.runCtx, peripheral)
	if err != nil && m.runCtx.Err() == nil {
		m.callbacks.syncError(err)
	}
}

// handleBleChunk is BleHardware.OnChunk's sole subscriber: it routes
// each inbound fragment to the Transport standing up for the
// peripheral it arrived from, which feeds its own reassembler and
// publishes the completed message to that Transport's Recv.
func (m *Manager) handleBleChunk(evt ble.ChunkEvent) {
	m.bleMu.Lock()
	t := m.bleTransports[evt.Peripheral]
	m.bleMu.Unlock()
	if t == nil {
		return
	}
	t.HandleChunk(evt.Data)
}

// runBlePairing is the BLE-channel mirror of Connect: a freshly
// connected peripheral gets this device's PairingRequest first (BLE
// connections here are always central-initiated, the same role WiFi's
// Connect plays), then the same runHandshake that the WiFi accept/
// connect paths share decides new-device-vs-reconnect. On success the
// peripheral is bonded to the resulting device id, the transport joins
// the registry at BLE priority, and its receive loop starts; on
// failure the transport is dropped and never registered.
func (m *Manager) runBlePairing(peripheral ble.PeripheralUUID, t *ble.Transport) {
	ctx, cancel := context.WithTimeout(m.runCtx, DefaultBlePairingTimeout)
	defer cancel()

	ownPayload, err := m.buildPairingPayload()
	if err != nil {
		t.Close()
		return
	}
	marshaled, err := ownPayload.Marshal()
	if err != nil {
		t.Close()
		return
	}
	if err := t.Send(ctx, protocol.NewPairingRequest(marshaled, m.localDeviceID)); err != nil {
		t.Close()
		return
	}

	resp, err := t.Recv(ctx)
	if err != nil {
		t.Close()
		return
	}
	if resp.MsgType != protocol.MessageTypePairingResponse {
		t.Close()
		return
	}

	device, rawSecret, err := m.runHandshake(resp)
	if err != nil {
		t.Close()
		m.callbacks.pairingRejected(peerDeviceIDFromEnvelope(resp), err)
		return
	}

	encT, err := transport.NewEncryptedTransport(t, rawSecret)
	if err != nil {
		t.Close()
		return
	}

	m.bleController.Bond(peripheral, device.DeviceID)
	m.transports.AddTransport(device.DeviceID, encT, transport.PriorityBLE)
	m.callbacks.deviceConnected(DeviceInfo{DeviceID: device.DeviceID, DeviceName: device.DeviceName, Platform: device.Platform})
	go m.receiveLoop(m.runCtx, encT, device.DeviceID)
}

// receiveLoop drains one device's transport until it errors, then
// marks the device disconnected and drops the transport from the
// registry.
func (m *Manager) receiveLoop(ctx context.Context, t transport.Transport, deviceID string) {
	for {
		msg, err := t.Recv(ctx)
		if err != nil {
			m.transports.RemoveTransport(deviceID, t.Channel())
			m.callbacks.deviceDisconnected(deviceID)
			return
		}
		m.dispatch(deviceID, msg)
	}
}

func (m *Manager) dispatch(deviceID string, msg *protocol.Message) {
	switch msg.MsgType {
	case protocol.MessageTypeClipboardSync:
		if err := m.receiver.HandleClipboardSync(msg); err != nil {
			m.callbacks.syncError(err)
		}
	case protocol.MessageTypeHeartbeat:
		m.mu.Lock()
		m.lastSeen[deviceID] = struct{}{}
		m.mu.Unlock()
	case protocol.MessageTypeAck:
		m.sender.HandleAck(msg)
	case protocol.MessageTypeUnpair:
		_ = m.store.Delete(deviceID)
		for _, dropped := range m.transports.RemoveDevice(deviceID) {
			dropped.Close()
		}
		m.callbacks.deviceUnpaired(deviceID)
	case protocol.MessageTypePairingRequest, protocol.MessageTypePairingResponse, protocol.MessageTypePairingConfirm:
		// Only expected during the handshake performed by Connect/
		// handleIncoming before this loop starts; anything arriving
		// here is out of band and is dropped.
	}
}

// SendClipboard pushes a clipboard payload to deviceID through the
// sync sender, consulting the loop guard first so a payload that just
// arrived from that same device isn't echoed straight back.
func (m *Manager) SendClipboard(ctx context.Context, deviceID string, payload []byte, strategy retry.Strategy) error {
	if !m.loopGuard.ShouldSync(payload) {
		return nil
	}
	return m.sender.SendClipboard(ctx, deviceID, payload, strategy)
}

// Unpair sends an Unpair message, drops the device's transports, and
// removes it from the store.
func (m *Manager) Unpair(ctx context.Context, deviceID string) error {
	err := m.transports.SendToDevice(ctx, deviceID, protocol.NewUnpair(m.localDeviceID))
	for _, dropped := range m.transports.RemoveDevice(deviceID) {
		dropped.Close()
	}
	_ = m.store.Delete(deviceID)
	m.callbacks.deviceUnpaired(deviceID)
	return err
}
