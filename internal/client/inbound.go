package client

import (
	"time"

	"go.uber.org/zap"

	"rchat/internal/crypto"
	"rchat/internal/domain"
	"rchat/internal/util/memzero"
	"rchat/internal/wire"
)

// receive runs the inbound pipeline on a fanned-out ciphertext. Every
// failure drops the message silently; nothing unverified reaches the
// event channel. The relay-stamped outer timestamp is ignored for all
// security decisions; only the signed inner timestamp counts.
func (e *Engine) receive(m wire.MessageReceived) {
	if m.RoomID != e.roomID {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	payload, index, ok := e.openLocked(m.EncryptedPayload)
	if !ok {
		e.log.Debug("undecryptable message dropped")
		return
	}

	if !crypto.Verify(payload.SenderPublicKey,
		crypto.SignedBytes(payload.Content, payload.Timestamp, payload.SequenceNumber),
		payload.Signature) {
		e.dropLocked(payload.SenderPublicKey, domain.ErrSignatureFailure)
		return
	}
	if !crypto.VerifyCommitment(payload) {
		e.dropLocked(payload.SenderPublicKey, domain.ErrCommitmentMismatch)
		return
	}

	now := time.Now().Unix()
	if delta := now - payload.Timestamp; delta > int64(e.cfg.FreshnessWindow/time.Second) ||
		-delta > int64(e.cfg.FreshnessWindow/time.Second) {
		e.dropLocked(payload.SenderPublicKey, domain.ErrStaleOrFutureMessage)
		return
	}

	p := e.peers[payload.SenderPublicKey]
	if p == nil {
		p = &peer{chain: e.seed.Fork()}
		e.peers[payload.SenderPublicKey] = p
	}

	// Ordering: the chain may never move backwards, and sequence
	// numbers are strictly monotonic per sender key.
	if index < p.chain.Index() {
		e.dropLocked(payload.SenderPublicKey, domain.ErrReplayOrReorder)
		return
	}
	if payload.SequenceNumber <= p.lastSeq {
		e.dropLocked(payload.SenderPublicKey, domain.ErrReplayOrReorder)
		return
	}

	// Advance the mirror past the consumed index.
	key, err := p.chain.KeyAt(index)
	if err != nil {
		e.dropLocked(payload.SenderPublicKey, domain.ErrReplayOrReorder)
		return
	}
	memzero.Zero(key[:])
	p.lastSeq = payload.SequenceNumber

	e.emitLocked(Message{
		Timestamp: payload.Timestamp,
		Username:  payload.Username,
		Content:   payload.Content,
	})
}

// openLocked finds the chain key that opens box. The chain index rides
// inside the ciphertext, so candidates are tried: each known sender
// mirror from its current position, and the seed chain for senders not
// seen before, each up to the skip bound. Keys depend only on the
// index, so indices already tried are skipped.
func (e *Engine) openLocked(box []byte) (*domain.MessagePayload, uint64, bool) {
	chains := make([]*crypto.Chain, 0, len(e.peers)+1)
	chains = append(chains, e.seed)
	for _, p := range e.peers {
		chains = append(chains, p.chain)
	}

	tried := make(map[uint64]struct{})
	for _, c := range chains {
		f := c.Fork()
		for n := 0; n <= crypto.MaxChainSkip; n++ {
			index := f.Index()
			key, _ := f.Next()
			if _, dup := tried[index]; dup {
				memzero.Zero(key[:])
				continue
			}
			tried[index] = struct{}{}

			plain, err := crypto.Open(&key, box)
			memzero.Zero(key[:])
			if err != nil {
				continue
			}
			f.Zeroize()

			payload, err := wire.DecodePayload(plain)
			memzero.Zero(plain)
			if err != nil {
				e.log.Debug("payload decode failed", zap.Error(err))
				return nil, 0, false
			}
			if payload.ChainKeyIndex != index {
				// The payload lies about the key that opened it.
				return nil, 0, false
			}
			return payload, index, true
		}
		f.Zeroize()
	}
	return nil, 0, false
}

// dropLocked records a rejected message against its claimed sender.
func (e *Engine) dropLocked(sender domain.Ed25519Public, reason error) {
	if p := e.peers[sender]; p != nil {
		p.dropped++
	}
	e.log.Debug("message dropped", zap.String("reason", reason.Error()))
}
