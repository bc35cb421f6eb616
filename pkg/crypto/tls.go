package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"time"

	"nearclip/pkg/errs"
)

// TlsCertificate is a self-signed leaf certificate plus its private
// key, valid for the given SAN list. Used for TLS 1.3-only WiFi
// transport with trust-on-first-use pinning instead of a CA chain.
type TlsCertificate struct {
	certDER []byte
	key     *ecdsa.PrivateKey
}

// Generate produces a fresh self-signed leaf valid for the given
// DNS/IP subject alternative names.
func Generate(sans []string) (*TlsCertificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "cert_key_generate", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "cert_serial_generate", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "nearclip"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	for _, san := range sans {
		if ip := net.ParseIP(san); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, san)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "cert_create", err)
	}

	return &TlsCertificate{certDER: der, key: key}, nil
}

// CertDER returns the raw DER-encoded certificate bytes, the value a
// peer pins after trust-on-first-use.
func (c *TlsCertificate) CertDER() []byte {
	return c.certDER
}

func (c *TlsCertificate) tlsCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{c.certDER},
		PrivateKey:  c.key,
	}
}

// NewTlsServerConfig builds a TLS 1.3-only server config presenting
// the given leaf certificate.
func NewTlsServerConfig(cert *TlsCertificate) (*tls.Config, error) {
	return &tls.Config{
		Certificates: []tls.Certificate{cert.tlsCertificate()},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// NewTlsClientConfig builds a TLS 1.3-only client config that trusts
// exactly one certificate: pinnedCertDER, byte-for-byte. This is
// trust-on-first-use pinning, not CA validation — any other
// certificate, including one signed by a public CA, is rejected.
func NewTlsClientConfig(pinnedCertDER []byte) (*tls.Config, error) {
	pinned := make([]byte, len(pinnedCertDER))
	copy(pinned, pinnedCertDER)

	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true, // verification is replaced entirely below
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return errs.ErrTlsHandshake
			}
			if !bytes.Equal(rawCerts[0], pinned) {
				return errs.ErrTlsHandshake
			}
			return nil
		},
	}, nil
}
