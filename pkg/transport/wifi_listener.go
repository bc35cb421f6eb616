package transport

import (
	"context"
	"crypto/tls"
	"net"

	"nearclip/pkg/errs"
)

// WifiConnector dials outbound TLS connections to remote devices
// (original Rust source: WifiTransportConnector).
type WifiConnector struct {
	clientConfig *tls.Config
}

// NewWifiConnector builds a connector around a TOFU-pinned client
// config (see pkg/crypto.NewTlsClientConfig).
func NewWifiConnector(clientConfig *tls.Config) *WifiConnector {
	return &WifiConnector{clientConfig: clientConfig}
}

// Connect dials address ("host:port") and wraps the resulting TLS
// connection as a Transport addressed to deviceID.
func (c *WifiConnector) Connect(ctx context.Context, deviceID, address string) (Transport, error) {
	dialer := &tls.Dialer{Config: c.clientConfig}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, "wifi_connect", err)
	}
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		conn.Close()
		return nil, errs.New(errs.KindNetwork, "wifi_connect_unexpected_conn_type")
	}
	return NewWifiTransport(deviceID, tlsConn), nil
}

// WifiListener accepts inbound TLS connections (original Rust source:
// WifiTransportListener). The device id of an accepted connection is
// not yet known — it arrives with the first PairingRequest — so
// accepted transports are temporarily addressed by peer address, the
// same placeholder the original source uses.
type WifiListener struct {
	ln net.Listener
}

// NewWifiListener binds addr ("host:port", or ":0" for an ephemeral
// port) with the given server TLS config.
func NewWifiListener(addr string, serverConfig *tls.Config) (*WifiListener, error) {
	ln, err := tls.Listen("tcp", addr, serverConfig)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, "wifi_listen", err)
	}
	return &WifiListener{ln: ln}, nil
}

// Accept blocks for the next inbound connection and wraps it as a
// Transport.
func (l *WifiListener) Accept(ctx context.Context) (Transport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, "wifi_accept", err)
	}
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		conn.Close()
		return nil, errs.New(errs.KindNetwork, "wifi_accept_unexpected_conn_type")
	}
	return NewWifiTransport(conn.RemoteAddr().String(), tlsConn), nil
}

// Addr reports the bound local address.
func (l *WifiListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections.
func (l *WifiListener) Close() error {
	if err := l.ln.Close(); err != nil {
		return errs.Wrap(errs.KindNetwork, "wifi_listener_close", err)
	}
	return nil
}
