package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"rchat/internal/domain"
)

// NonceBytes is the XChaCha20-Poly1305 nonce size prefixed to every box.
const NonceBytes = chacha20poly1305.NonceSizeX

// Seal encrypts plaintext with XChaCha20-Poly1305 under key and a fresh
// random nonce. The result is nonce || ciphertext, with the Poly1305 tag
// embedded at the end of the ciphertext. Associated data is empty; the
// payload carries its own signature and commitment.
func Seal(key *[32]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: seal: %v", domain.ErrAeadFailure, err)
	}
	box := make([]byte, NonceBytes, NonceBytes+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(box[:NonceBytes]); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNonceGeneration, err)
	}
	return aead.Seal(box, box[:NonceBytes], plaintext, nil), nil
}

// Open decrypts a nonce || ciphertext box produced by Seal. Any bit flip
// in nonce, ciphertext or key makes it fail.
func Open(key *[32]byte, box []byte) ([]byte, error) {
	if len(box) < NonceBytes+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: open: box too short", domain.ErrAeadFailure)
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", domain.ErrAeadFailure, err)
	}
	pt, err := aead.Open(nil, box[:NonceBytes], box[NonceBytes:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open", domain.ErrAeadFailure)
	}
	return pt, nil
}
