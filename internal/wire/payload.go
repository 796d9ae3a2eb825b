package wire

import (
	"fmt"

	"rchat/internal/domain"
)

// EncodePayload serializes a plaintext message payload in the canonical
// field order. The result is what gets sealed with the per-message key.
func EncodePayload(p *domain.MessagePayload) []byte {
	var e encoder
	e.str(p.Username.String())
	e.str(p.Content)
	e.i64(p.Timestamp)
	e.u64(p.SequenceNumber)
	e.bytes(p.SenderPublicKey.Slice())
	e.bytes(p.Signature.Slice())
	e.u64(p.ChainKeyIndex)
	e.bytes(p.MessageHash.Slice())
	return e.buf
}

// DecodePayload parses a decrypted payload, enforcing the fixed sizes of
// the key, signature and commitment fields.
func DecodePayload(b []byte) (*domain.MessagePayload, error) {
	d := decoder{buf: b}
	p := new(domain.MessagePayload)

	username, err := d.str()
	if err != nil {
		return nil, err
	}
	p.Username = domain.Username(username)

	if p.Content, err = d.str(); err != nil {
		return nil, err
	}
	if p.Timestamp, err = d.i64(); err != nil {
		return nil, err
	}
	if p.SequenceNumber, err = d.u64(); err != nil {
		return nil, err
	}

	pub, err := d.bytes()
	if err != nil {
		return nil, err
	}
	if len(pub) != len(p.SenderPublicKey) {
		return nil, fmt.Errorf("%w: sender public key is %d bytes", domain.ErrMalformedFrame, len(pub))
	}
	copy(p.SenderPublicKey[:], pub)

	sig, err := d.bytes()
	if err != nil {
		return nil, err
	}
	if len(sig) != len(p.Signature) {
		return nil, fmt.Errorf("%w: signature is %d bytes", domain.ErrMalformedFrame, len(sig))
	}
	copy(p.Signature[:], sig)

	if p.ChainKeyIndex, err = d.u64(); err != nil {
		return nil, err
	}

	hash, err := d.bytes()
	if err != nil {
		return nil, err
	}
	if len(hash) != len(p.MessageHash) {
		return nil, fmt.Errorf("%w: message hash is %d bytes", domain.ErrMalformedFrame, len(hash))
	}
	copy(p.MessageHash[:], hash)

	if err := d.finish(); err != nil {
		return nil, err
	}
	return p, nil
}
