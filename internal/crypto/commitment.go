package crypto

import (
	"crypto/subtle"
	"encoding/binary"

	"lukechampine.com/blake3"

	"rchat/internal/domain"
)

const commitmentContext = "rchat-v3-message-commitment:"

// MessageCommitment binds a message's fields into a 32-byte BLAKE3 hash.
// Receivers recompute it and compare byte for byte; any field change
// alters the digest.
func MessageCommitment(username domain.Username, content string, sequence, chainIndex uint64) domain.Hash32 {
	h := blake3.New(32, nil)
	h.Write([]byte(commitmentContext))
	h.Write([]byte(username))
	h.Write([]byte(content))

	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], sequence)
	h.Write(le[:])
	binary.LittleEndian.PutUint64(le[:], chainIndex)
	h.Write(le[:])

	var out domain.Hash32
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyCommitment recomputes the commitment for p and compares it in
// constant time against the carried hash.
func VerifyCommitment(p *domain.MessagePayload) bool {
	want := MessageCommitment(p.Username, p.Content, p.SequenceNumber, p.ChainKeyIndex)
	return subtle.ConstantTimeCompare(want.Slice(), p.MessageHash.Slice()) == 1
}
