package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"nearclip/pkg/errs"
)

// nonceSize is the standard GCM nonce length; CipherError wording in
// the source spec calls it out as 12 bytes.
const nonceSize = 12

// Aes256Gcm is a ready-to-use AEAD over a fixed 32-byte key. Nonces
// are drawn fresh from crypto/rand for every call to Encrypt and are
// never reused, satisfying invariant 6.
type Aes256Gcm struct {
	aead cipher.AEAD
}

// NewAes256Gcm builds an AEAD from a 32-byte key.
func NewAes256Gcm(key []byte) (*Aes256Gcm, error) {
	if len(key) != 32 {
		return nil, errs.New(errs.KindCrypto, "invalid_key_length")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "cipher_init", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "cipher_init", err)
	}

	return &Aes256Gcm{aead: aead}, nil
}

// Encrypt returns nonce(12) || ciphertext || tag(16).
func (a *Aes256Gcm) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "nonce_generation", err)
	}

	sealed := a.aead.Seal(nonce, nonce, plaintext, nil)
	return sealed, nil
}

// Decrypt recovers the plaintext from nonce||ciphertext||tag, or
// fails with ErrAuthenticationFail if the blob was tampered with.
func (a *Aes256Gcm) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < nonceSize+a.aead.Overhead() {
		return nil, errs.ErrAuthenticationFail
	}

	nonce := blob[:nonceSize]
	ciphertext := blob[nonceSize:]

	plaintext, err := a.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errs.ErrAuthenticationFail
	}

	return plaintext, nil
}
