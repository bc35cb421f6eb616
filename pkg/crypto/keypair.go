// Package crypto implements NearClip's cryptographic primitives:
// ECDH key agreement, AES-256-GCM AEAD, and TLS
// certificate generation with trust-on-first-use pinning.
//
// crypto/ecdh is used directly for key agreement rather than a
// third-party curve library: it is the same package dc4eu-vc reaches
// for (pkg/openid4vp/encryption_key_cache.go imports "crypto/ecdh"),
// and nothing in the example corpus wraps P-256 ECDH behind a
// friendlier API.
package crypto

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"nearclip/pkg/errs"
)

// EcdhKeyPair is a P-256 ECDH keypair. The private scalar is held in
// memory only; it is never serialized. Callers export PublicKeyBytes
// for use in a QR code or pairing message.
type EcdhKeyPair struct {
	priv *ecdh.PrivateKey
}

// Generate creates a fresh P-256 keypair using the system CSPRNG.
func Generate() (*EcdhKeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "keypair_generate", err)
	}
	return &EcdhKeyPair{priv: priv}, nil
}

// PublicKeyBytes returns the uncompressed (65-byte) SEC1 point.
func (k *EcdhKeyPair) PublicKeyBytes() []byte {
	return k.priv.PublicKey().Bytes()
}

// PublicKeyBytesCompressed returns the 33-byte compressed SEC1 point.
func (k *EcdhKeyPair) PublicKeyBytesCompressed() []byte {
	uncompressed := k.priv.PublicKey().Bytes()
	return compressP256Point(uncompressed)
}

// ComputeSharedSecret derives the 32-byte shared secret as
// SHA-256(ECDH(priv, peerPub).X). peerPub may be either the
// 33-byte compressed or 65-byte uncompressed encoding.
func (k *EcdhKeyPair) ComputeSharedSecret(peerPub []byte) ([]byte, error) {
	pub, err := decodeP256PublicKey(peerPub)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "invalid_public_key", err)
	}

	shared, err := k.priv.ECDH(pub)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "ecdh_failed", err)
	}

	// crypto/ecdh's ECDH already returns the X-coordinate for NIST
	// curves; hash it to get a fixed-size, uniformly distributed key.
	sum := sha256.Sum256(shared)
	return sum[:], nil
}

// decodeP256PublicKey parses either encoding form into a usable key,
// rejecting points not on the curve (crypto/ecdh validates the
// uncompressed form; decompression here validates the compressed one).
func decodeP256PublicKey(b []byte) (*ecdh.PublicKey, error) {
	switch len(b) {
	case 65:
		return ecdh.P256().NewPublicKey(b)
	case 33:
		uncompressed, err := decompressP256Point(b)
		if err != nil {
			return nil, err
		}
		return ecdh.P256().NewPublicKey(uncompressed)
	default:
		return nil, errs.New(errs.KindCrypto, "invalid_public_key_length")
	}
}

// decompressP256Point recovers the Y coordinate from a compressed
// SEC1 point (0x02/0x03 || X) using the P-256 curve equation
// y² = x³ - 3x + b mod p, since crypto/ecdh.NewPublicKey only accepts
// the uncompressed encoding.
func decompressP256Point(compressed []byte) ([]byte, error) {
	if len(compressed) != 33 || (compressed[0] != 0x02 && compressed[0] != 0x03) {
		return nil, errs.New(errs.KindCrypto, "invalid_compressed_point")
	}

	curve := elliptic.P256()
	params := curve.Params()
	x := new(big.Int).SetBytes(compressed[1:])
	if x.Cmp(params.P) >= 0 {
		return nil, errs.New(errs.KindCrypto, "invalid_compressed_point")
	}

	// y² = x³ - 3x + b (mod p)
	y2 := new(big.Int).Mul(x, x)
	y2.Mul(y2, x)
	threeX := new(big.Int).Lsh(x, 1)
	threeX.Add(threeX, x)
	y2.Sub(y2, threeX)
	y2.Add(y2, params.B)
	y2.Mod(y2, params.P)

	y := new(big.Int).ModSqrt(y2, params.P)
	if y == nil {
		return nil, errs.New(errs.KindCrypto, "point_not_on_curve")
	}

	wantOdd := compressed[0] == 0x03
	if y.Bit(0) == 1 != wantOdd {
		y.Sub(params.P, y)
	}

	if !curve.IsOnCurve(x, y) {
		return nil, errs.New(errs.KindCrypto, "point_not_on_curve")
	}

	out := make([]byte, 65)
	out[0] = 0x04
	x.FillBytes(out[1:33])
	y.FillBytes(out[33:65])
	return out, nil
}

// compressP256Point converts an uncompressed SEC1 point (0x04 || X || Y)
// into its compressed form (0x02/0x03 || X). crypto/ecdh only emits
// uncompressed points, but PairingData allows callers to carry the
// compressed form over the wire to save bytes.
func compressP256Point(uncompressed []byte) []byte {
	if len(uncompressed) != 65 || uncompressed[0] != 0x04 {
		return uncompressed
	}
	x := uncompressed[1:33]
	y := uncompressed[33:65]
	prefix := byte(0x02)
	if y[len(y)-1]&1 == 1 {
		prefix = 0x03
	}
	out := make([]byte, 33)
	out[0] = prefix
	copy(out[1:], x)
	return out
}
