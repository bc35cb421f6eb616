package transport

import (
	"context"

	"nearclip/pkg/crypto"
	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
)

// EncryptedTransport wraps any Transport with transparent AES-256-GCM.
// The inner Message is serialized, encrypted, and
// carried as the payload of a Heartbeat-tagged envelope so the
// underlying transport and its framing never see plaintext structure.
// Decryption failure is fatal only for that one message; the
// underlying transport stays usable.
type EncryptedTransport struct {
	inner  Transport
	cipher *crypto.Aes256Gcm
}

// NewEncryptedTransport wraps inner with an AEAD keyed by the pairing
// shared secret (or any 32-byte key).
func NewEncryptedTransport(inner Transport, key []byte) (*EncryptedTransport, error) {
	aead, err := crypto.NewAes256Gcm(key)
	if err != nil {
		return nil, err
	}
	return &EncryptedTransport{inner: inner, cipher: aead}, nil
}

// Send encrypts msg and transmits it as a Heartbeat envelope.
func (t *EncryptedTransport) Send(ctx context.Context, msg *protocol.Message) error {
	plain, err := msg.Serialize()
	if err != nil {
		return errs.Wrap(errs.KindSync, "encrypted_transport_serialize", err)
	}

	ct, err := t.cipher.Encrypt(plain)
	if err != nil {
		return err
	}

	envelope := protocol.NewHeartbeat(msg.DeviceID)
	envelope.Payload = ct
	return t.inner.Send(ctx, envelope)
}

// Recv receives one envelope, decrypts its payload, and deserializes
// the real inner message. A non-envelope message (unexpected type)
// or decryption failure is reported as a Sync/Crypto error without
// touching the underlying transport's connection state.
func (t *EncryptedTransport) Recv(ctx context.Context) (*protocol.Message, error) {
	envelope, err := t.inner.Recv(ctx)
	if err != nil {
		return nil, err
	}
	if envelope.MsgType != protocol.MessageTypeHeartbeat {
		return nil, errs.New(errs.KindSync, "encrypted_transport_unexpected_envelope")
	}

	plain, err := t.cipher.Decrypt(envelope.Payload)
	if err != nil {
		return nil, err
	}

	msg, err := protocol.Deserialize(plain)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// IsConnected delegates to the wrapped transport.
func (t *EncryptedTransport) IsConnected() bool {
	return t.inner.IsConnected()
}

// Channel delegates to the wrapped transport.
func (t *EncryptedTransport) Channel() Channel {
	return t.inner.Channel()
}

// PeerDeviceID delegates to the wrapped transport.
func (t *EncryptedTransport) PeerDeviceID() string {
	return t.inner.PeerDeviceID()
}

// Close delegates to the wrapped transport.
func (t *EncryptedTransport) Close() error {
	return t.inner.Close()
}

var _ Transport = (*EncryptedTransport)(nil)
