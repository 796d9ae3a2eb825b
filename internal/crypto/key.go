package crypto

import (
	"golang.org/x/crypto/argon2"
	"lukechampine.com/blake3"

	"rchat/internal/util/memzero"
)

const rootSaltContext = "rchat-e2ee-v2-salt:"

// ChatKey is the symmetric encryption root derived from a chat code: a
// 32-byte root key plus the monotonically increasing chain index. Only
// holders of the chat code can reconstruct it.
type ChatKey struct {
	root  [32]byte
	index uint64
}

// DeriveChatKey derives the encryption root from a chat code.
//
// The code is normalized to the 64-byte chat secret s, the Argon2id salt
// is BLAKE3("rchat-e2ee-v2-salt:" || s) truncated to 32 bytes, and the
// root is Argon2id(s, salt) with the heavy parameter set. The chain index
// starts at zero.
func DeriveChatKey(code string) (*ChatKey, error) {
	secret, err := chatSecret(code)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(secret)

	h := blake3.New(32, nil)
	h.Write([]byte(rootSaltContext))
	h.Write(secret)
	salt := h.Sum(nil)

	root := argon2.IDKey(secret, salt, 4, 128*1024, 8, 32)
	defer memzero.Zero(root)

	ck := new(ChatKey)
	copy(ck.root[:], root)
	return ck, nil
}

// Root returns the 32-byte root key.
func (k *ChatKey) Root() [32]byte { return k.root }

// Index returns the current chain index.
func (k *ChatKey) Index() uint64 { return k.index }

// AdvanceIndex bumps the chain index after a successful send.
func (k *ChatKey) AdvanceIndex() { k.index++ }

// Seal encrypts plaintext under the root key. Per-message traffic should
// prefer chain keys from a Chain; this is the base-key path.
func (k *ChatKey) Seal(plaintext []byte) ([]byte, error) {
	return Seal(&k.root, plaintext)
}

// Open decrypts a nonce||ciphertext box sealed under the root key.
func (k *ChatKey) Open(box []byte) ([]byte, error) {
	return Open(&k.root, box)
}

// Zeroize wipes the root key. The ChatKey must not be used afterwards.
func (k *ChatKey) Zeroize() {
	memzero.Zero(k.root[:])
	k.index = 0
}
