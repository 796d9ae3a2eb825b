package client

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rchat/internal/crypto"
	"rchat/internal/domain"
	"rchat/internal/util/memzero"
	"rchat/internal/wire"
)

// Send runs the outbound pipeline for one message: build the payload
// with the next sequence number, sign, commit, encode, ratchet, seal and
// frame. The returned MessageID is acknowledged by the relay with
// MessageAck; until then the plaintext sits in the retry table.
func (e *Engine) Send(content string) (domain.MessageID, error) {
	id := domain.MessageID(uuid.NewString())
	if err := e.sendWithID(id, content); err != nil {
		return "", err
	}
	return id, nil
}

func (e *Engine) sendWithID(id domain.MessageID, content string) error {
	e.mu.Lock()
	if e.state != InRoom {
		e.mu.Unlock()
		return fmt.Errorf("%w: send in state %s", domain.ErrUnexpectedMessage, e.state)
	}
	e.seq++
	seq := e.seq
	key, chainIndex := e.send.Next()
	e.chatKey.AdvanceIndex()
	if _, ok := e.pending[id]; !ok {
		e.pending[id] = &pendingSend{content: content}
	}
	e.mu.Unlock()
	defer memzero.Zero(key[:])

	timestamp := time.Now().Unix()
	payload := &domain.MessagePayload{
		Username:        e.cfg.Username,
		Content:         content,
		Timestamp:       timestamp,
		SequenceNumber:  seq,
		SenderPublicKey: e.identity.Public(),
		Signature:       e.identity.Sign(crypto.SignedBytes(content, timestamp, seq)),
		ChainKeyIndex:   chainIndex,
		MessageHash:     crypto.MessageCommitment(e.cfg.Username, content, seq, chainIndex),
	}

	plain := wire.EncodePayload(payload)
	box, err := crypto.Seal(&key, plain)
	memzero.Zero(plain)
	if err != nil {
		return err
	}

	e.log.Debug("message sealed",
		zap.Uint64("seq", seq), zap.Uint64("chain_index", chainIndex))
	return e.writeMessage(wire.SendMessage{
		RoomID:           e.roomID,
		EncryptedPayload: box,
		MessageID:        id,
	})
}
