package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearclip/pkg/crypto"
	"nearclip/pkg/errs"
	"nearclip/pkg/protocol"
)

func TestWifiTransportRoundTrip(t *testing.T) {
	cert, err := crypto.Generate([]string{"localhost"})
	require.NoError(t, err)

	serverCfg, err := crypto.NewTlsServerConfig(cert)
	require.NoError(t, err)
	clientCfg, err := crypto.NewTlsClientConfig(cert.CertDER())
	require.NoError(t, err)

	ln, err := NewWifiListener("127.0.0.1:0", serverCfg)
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan *protocol.Message, 1)
	go func() {
		srv, err := ln.Accept(context.Background())
		if err != nil {
			return
		}
		msg, err := srv.Recv(context.Background())
		if err != nil {
			return
		}
		serverDone <- msg
		_ = srv.Send(context.Background(), protocol.NewAck("server", msg.TimestampMs))
	}()

	connector := NewWifiConnector(clientCfg)
	addr := ln.Addr().(*net.TCPAddr)
	client, err := connector.Connect(context.Background(), "server", addr.String())
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.IsConnected())
	assert.Equal(t, ChannelWiFi, client.Channel())

	sent := protocol.NewClipboardSync([]byte("hello over wifi"), "client")
	require.NoError(t, client.Send(context.Background(), sent))

	select {
	case got := <-serverDone:
		assert.Equal(t, sent.Payload, got.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive message")
	}

	ack, err := client.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.MessageTypeAck, ack.MsgType)
}

func TestWifiTransportOversizeFrameRejected(t *testing.T) {
	cert, err := crypto.Generate([]string{"localhost"})
	require.NoError(t, err)
	serverCfg, err := crypto.NewTlsServerConfig(cert)
	require.NoError(t, err)
	clientCfg, err := crypto.NewTlsClientConfig(cert.CertDER())
	require.NoError(t, err)

	ln, err := NewWifiListener("127.0.0.1:0", serverCfg)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan Transport, 1)
	go func() {
		srv, err := ln.Accept(context.Background())
		if err == nil {
			accepted <- srv
		}
	}()

	connector := NewWifiConnector(clientCfg)
	addr := ln.Addr().(*net.TCPAddr)
	client, err := connector.Connect(context.Background(), "server", addr.String())
	require.NoError(t, err)
	defer client.Close()

	srv := <-accepted

	wt := client.(*WifiTransport)
	oversized := make([]byte, 4)
	oversized[0] = 0xFF
	oversized[1] = 0xFF
	oversized[2] = 0xFF
	oversized[3] = 0xFF
	_, err = wt.conn.Write(oversized)
	require.NoError(t, err)

	_, err = srv.Recv(context.Background())
	assert.ErrorIs(t, err, errs.ErrTooLarge)
}

func TestEncryptedTransportRoundTrip(t *testing.T) {
	cert, err := crypto.Generate([]string{"localhost"})
	require.NoError(t, err)
	serverCfg, err := crypto.NewTlsServerConfig(cert)
	require.NoError(t, err)
	clientCfg, err := crypto.NewTlsClientConfig(cert.CertDER())
	require.NoError(t, err)

	ln, err := NewWifiListener("127.0.0.1:0", serverCfg)
	require.NoError(t, err)
	defer ln.Close()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	received := make(chan *protocol.Message, 1)
	go func() {
		srv, err := ln.Accept(context.Background())
		if err != nil {
			return
		}
		encSrv, err := NewEncryptedTransport(srv, key)
		if err != nil {
			return
		}
		msg, err := encSrv.Recv(context.Background())
		if err == nil {
			received <- msg
		}
	}()

	connector := NewWifiConnector(clientCfg)
	addr := ln.Addr().(*net.TCPAddr)
	client, err := connector.Connect(context.Background(), "server", addr.String())
	require.NoError(t, err)
	defer client.Close()

	encClient, err := NewEncryptedTransport(client, key)
	require.NoError(t, err)

	sent := protocol.NewClipboardSync([]byte("encrypted payload"), "client")
	require.NoError(t, encClient.Send(context.Background(), sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.Payload, got.Payload)
		assert.Equal(t, sent.MsgType, got.MsgType)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for encrypted message")
	}
}

type fakeTransport struct {
	channel     Channel
	deviceID    string
	connected   bool
	sendErr     error
	sentCount   int
	sentMsgType protocol.MessageType
}

func (f *fakeTransport) Send(ctx context.Context, msg *protocol.Message) error {
	f.sentCount++
	f.sentMsgType = msg.MsgType
	return f.sendErr
}
func (f *fakeTransport) Recv(ctx context.Context) (*protocol.Message, error) { return nil, nil }
func (f *fakeTransport) IsConnected() bool                                  { return f.connected }
func (f *fakeTransport) Channel() Channel                                   { return f.channel }
func (f *fakeTransport) PeerDeviceID() string                               { return f.deviceID }
func (f *fakeTransport) Close() error                                       { return nil }

func TestManagerFailoverOnWifiError(t *testing.T) {
	m := NewManager()

	wifi := &fakeTransport{channel: ChannelWiFi, deviceID: "device_1", connected: true, sendErr: errs.ErrConnectionClosed}
	ble := &fakeTransport{channel: ChannelBLE, deviceID: "device_1", connected: true}

	m.AddTransport("device_1", wifi, PriorityWiFi)
	m.AddTransport("device_1", ble, PriorityBLE)

	err := m.SendToDevice(context.Background(), "device_1", protocol.NewClipboardSync([]byte("x"), "device_1"))
	assert.NoError(t, err)
	assert.Equal(t, 1, wifi.sentCount)
	assert.Equal(t, 1, ble.sentCount)
}

func TestManagerNoFailoverWhenDisabled(t *testing.T) {
	m := NewManager()
	m.FailoverOnError = false

	wifi := &fakeTransport{channel: ChannelWiFi, deviceID: "device_1", connected: true, sendErr: errs.ErrConnectionClosed}
	ble := &fakeTransport{channel: ChannelBLE, deviceID: "device_1", connected: true}

	m.AddTransport("device_1", wifi, PriorityWiFi)
	m.AddTransport("device_1", ble, PriorityBLE)

	err := m.SendToDevice(context.Background(), "device_1", protocol.NewClipboardSync([]byte("x"), "device_1"))
	assert.Error(t, err)
	assert.Equal(t, 1, wifi.sentCount)
	assert.Equal(t, 0, ble.sentCount)
}

func TestManagerAckNeverFailsOver(t *testing.T) {
	m := NewManager()

	wifi := &fakeTransport{channel: ChannelWiFi, deviceID: "device_1", connected: true, sendErr: errs.ErrConnectionClosed}
	ble := &fakeTransport{channel: ChannelBLE, deviceID: "device_1", connected: true}

	m.AddTransport("device_1", wifi, PriorityWiFi)
	m.AddTransport("device_1", ble, PriorityBLE)

	err := m.SendToDevice(context.Background(), "device_1", protocol.NewAck("device_1", 1))
	assert.Error(t, err)
	assert.Equal(t, 1, wifi.sentCount)
	assert.Equal(t, 0, ble.sentCount)
}

func TestAddTransportReplacesSameChannel(t *testing.T) {
	m := NewManager()

	first := &fakeTransport{channel: ChannelWiFi, deviceID: "device_1", connected: true}
	second := &fakeTransport{channel: ChannelWiFi, deviceID: "device_1", connected: true}

	m.AddTransport("device_1", first, PriorityWiFi)
	m.AddTransport("device_1", second, PriorityWiFi)

	best := m.GetBestTransport("device_1")
	assert.Same(t, second, best)
}

func TestSendToUnknownDeviceFails(t *testing.T) {
	m := NewManager()
	err := m.SendToDevice(context.Background(), "ghost", protocol.NewHeartbeat("ghost"))
	assert.ErrorIs(t, err, errs.ErrDeviceNotFound)
}

func TestBroadcastReturnsPerDeviceResults(t *testing.T) {
	m := NewManager()
	m.AddTransport("device_1", &fakeTransport{channel: ChannelWiFi, deviceID: "device_1", connected: true}, PriorityWiFi)
	m.AddTransport("device_2", &fakeTransport{channel: ChannelBLE, deviceID: "device_2", connected: true}, PriorityBLE)

	results := m.Broadcast(context.Background(), protocol.NewHeartbeat("me"))
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}
