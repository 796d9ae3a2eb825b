package crypto

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"lukechampine.com/blake3"

	"rchat/internal/domain"
	"rchat/internal/util/memzero"
)

const (
	chainInitSalt  = "chain-key-init"
	ratchetContext = "rchat-chain-ratchet:"

	// MaxChainSkip caps how far a receiver will step a peer's chain
	// forward for a single message.
	MaxChainSkip = 1000
)

// Chain is the deterministic hash ratchet. Message i is encrypted with
// k_i = BLAKE3("rchat-chain-ratchet:" || K_i || LE64(i)), and the chain
// key steps forward to K_{i+1} = k_i. Old chain keys are wiped on every
// step, so compromise of the current key reveals nothing about earlier
// traffic.
//
// A Chain is not safe for concurrent use.
type Chain struct {
	key   [32]byte
	index uint64
}

// NewChain seeds a chain from a chat code:
// K_0 = Argon2id(code, "chain-key-init") with the heavy parameter set.
// Both ends of a room derive bit-identical chains.
func NewChain(code string) (*Chain, error) {
	if err := ValidateChatCode(code); err != nil {
		return nil, err
	}
	k0 := argon2.IDKey([]byte(code), []byte(chainInitSalt), 4, 128*1024, 8, 32)
	defer memzero.Zero(k0)

	c := new(Chain)
	copy(c.key[:], k0)
	return c, nil
}

// Index returns the index of the next message key this chain will derive.
func (c *Chain) Index() uint64 { return c.index }

// Next derives the per-message key for the current index and steps the
// chain. The caller owns the returned copy and should wipe it after use.
func (c *Chain) Next() (key [32]byte, index uint64) {
	index = c.index
	c.advance()
	return c.key, index
}

// KeyAt steps the chain forward to target and returns that message key.
// Indices older than the chain position are rejected: once a key has been
// consumed the ratchet cannot go back. Skips beyond MaxChainSkip are
// rejected to bound the work an attacker-chosen index can cause.
func (c *Chain) KeyAt(target uint64) ([32]byte, error) {
	var key [32]byte
	if target < c.index {
		return key, fmt.Errorf("%w: chain index %d already consumed (at %d)", domain.ErrReplayOrReorder, target, c.index)
	}
	if target-c.index > MaxChainSkip {
		return key, fmt.Errorf("%w: chain skip of %d exceeds bound", domain.ErrReplayOrReorder, target-c.index)
	}
	for c.index < target {
		c.advance()
	}
	key, _ = c.Next()
	return key, nil
}

// Fork returns an independent chain at the same position. Receivers fork
// a seed chain per sender so the expensive Argon2id init runs once.
func (c *Chain) Fork() *Chain {
	n := new(Chain)
	n.key = c.key
	n.index = c.index
	return n
}

// Zeroize wipes the chain key. The Chain must not be used afterwards.
func (c *Chain) Zeroize() {
	memzero.Zero(c.key[:])
	c.index = 0
}

// advance replaces K_i with K_{i+1}, wiping the old key.
func (c *Chain) advance() {
	h := blake3.New(32, nil)
	h.Write([]byte(ratchetContext))
	h.Write(c.key[:])
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], c.index)
	h.Write(le[:])
	next := h.Sum(nil)

	memzero.Zero(c.key[:])
	copy(c.key[:], next)
	memzero.Zero(next)
	c.index++
}
