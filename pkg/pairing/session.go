package pairing

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"nearclip/pkg/crypto"
	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
)

type sessionState uint8

const (
	stateInitialized sessionState = iota
	statePeerProcessed
	stateCompleted
	stateFailed
)

// Session drives one side of a pairing exchange: it holds this
// device's keypair, accepts the peer's PairingData exactly once,
// derives the shared secret, and finally mints a PairedDevice
// (original Rust source: nearclip-crypto's PairingSession, exercised
// end-to-end by pairing_flow_integration.rs).
type Session struct {
	keypair      *crypto.EcdhKeyPair
	state        sessionState
	sharedSecret []byte
	peerData     *PairingData
}

// NewSession starts a pairing session around an existing keypair.
func NewSession(keypair *crypto.EcdhKeyPair) *Session {
	return &Session{keypair: keypair, state: stateInitialized}
}

// LocalPairingData builds the PairingData this device should encode
// into its own QR code.
func (s *Session) LocalPairingData(deviceID string, connInfo *ConnectionInfo) *PairingData {
	data := New(deviceID, s.keypair.PublicKeyBytes())
	if connInfo != nil {
		data.WithConnectionInfo(connInfo)
	}
	return data
}

// ProcessPeerData consumes the peer's scanned PairingData, validating
// it and deriving the shared secret. It may be called only once per
// session; a second call, or processing after Complete, fails.
func (s *Session) ProcessPeerData(peer *PairingData) error {
	if s.state != stateInitialized {
		s.state = stateFailed
		return errs.New(errs.KindSync, "pairing_session_already_processed")
	}
	if err := peer.Validate(); err != nil {
		s.state = stateFailed
		return err
	}

	peerKey, err := peer.PublicKeyBytes()
	if err != nil {
		s.state = stateFailed
		return err
	}

	secret, err := s.keypair.ComputeSharedSecret(peerKey)
	if err != nil {
		s.state = stateFailed
		return errs.Wrap(errs.KindCrypto, "pairing_session_ecdh_failed", err)
	}

	s.peerData = peer
	s.sharedSecret = secret
	s.state = statePeerProcessed
	return nil
}

// SharedSecret returns the derived secret, if peer data has been
// processed successfully.
func (s *Session) SharedSecret() ([]byte, bool) {
	if s.state != statePeerProcessed && s.state != stateCompleted {
		return nil, false
	}
	return s.sharedSecret, true
}

// Complete finalizes the session into a durable PairedDevice. It
// fails if the peer's data was never processed (the "incomplete
// session" edge case).
func (s *Session) Complete(deviceName string, platform protocol.DevicePlatform) (*PairedDevice, error) {
	if s.state != statePeerProcessed {
		s.state = stateFailed
		return nil, errs.New(errs.KindSync, "pairing_session_incomplete")
	}

	hash := sha256.Sum256(s.sharedSecret)
	peerKey, err := s.peerData.PublicKeyBytes()
	if err != nil {
		s.state = stateFailed
		return nil, err
	}

	device := &PairedDevice{
		DeviceID:         s.peerData.DeviceID,
		DeviceName:       deviceName,
		Platform:         platform,
		PublicKey:        base64.StdEncoding.EncodeToString(peerKey),
		SharedSecretHash: base64.StdEncoding.EncodeToString(hash[:]),
		PairedAt:         time.Now().UTC(),
	}
	if s.peerData.ConnectionInfo != nil {
		device.ConnectionInfo = s.peerData.ConnectionInfo
	}

	s.state = stateCompleted
	return device, nil
}
