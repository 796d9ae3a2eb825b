package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"rchat/internal/domain"
	"rchat/internal/util/memzero"
)

// Identity is a per-session Ed25519 signing key pair. The public key
// accompanies every outbound message; the private key never leaves the
// process and is wiped on Zeroize.
type Identity struct {
	priv domain.Ed25519Private
	pub  domain.Ed25519Public
}

// NewIdentity generates a fresh Ed25519 key pair.
func NewIdentity() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	id := new(Identity)
	copy(id.priv[:], priv)
	copy(id.pub[:], pub)
	return id, nil
}

// Public returns the verifying key.
func (id *Identity) Public() domain.Ed25519Public { return id.pub }

// Fingerprint returns a hex SHA-256 digest of the public key for
// out-of-band comparison.
func (id *Identity) Fingerprint() string {
	sum := sha256.Sum256(id.pub.Slice())
	return hex.EncodeToString(sum[:])
}

// Sign signs msg with the private key.
func (id *Identity) Sign(msg []byte) domain.Signature {
	var sig domain.Signature
	copy(sig[:], ed25519.Sign(ed25519.PrivateKey(id.priv.Slice()), msg))
	return sig
}

// Zeroize wipes the private key. The Identity must not sign afterwards.
func (id *Identity) Zeroize() {
	memzero.Zero(id.priv[:])
}

// Verify reports whether sig is a valid signature over msg by pub.
func Verify(pub domain.Ed25519Public, msg []byte, sig domain.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub.Slice()), msg, sig.Slice())
}

// SignedBytes builds the exact byte string the sender signs:
// content || LE64(timestamp) || LE64(sequence_number).
func SignedBytes(content string, timestamp int64, sequence uint64) []byte {
	buf := make([]byte, 0, len(content)+16)
	buf = append(buf, content...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(timestamp))
	buf = binary.LittleEndian.AppendUint64(buf, sequence)
	return buf
}
