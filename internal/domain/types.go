package domain

// RoomID is the opaque routing token the relay sees: the URL-safe base64
// encoding (no padding) of a 64-byte double hash of the chat code. The
// chat code itself never appears on the wire.
type RoomID string

// String returns the string form of the room identifier.
func (r RoomID) String() string { return string(r) }

// Username is a self-declared display name, unique within a room but not
// authenticated by the relay.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// MessageID identifies an in-flight send for acknowledgement matching.
type MessageID string

// String returns the string form of the message identifier.
func (id MessageID) String() string { return string(id) }

// RoomKind describes a room's capacity class.
//
// A zero RoomKind is OneToOne. For Group rooms MaxParticipants optionally
// caps the room size; nil leaves the cap to the relay default.
type RoomKind struct {
	Group           bool
	MaxParticipants *uint64
}

// OneToOne returns the two-party room kind.
func OneToOne() RoomKind { return RoomKind{} }

// GroupKind returns a group room kind with an optional participant cap.
func GroupKind(max *uint64) RoomKind { return RoomKind{Group: true, MaxParticipants: max} }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// Signature is an Ed25519 signature.
type Signature [64]byte

// Slice returns the signature as a []byte.
func (s Signature) Slice() []byte { return s[:] }

// Hash32 is a 32-byte BLAKE3 digest, used for message commitments.
type Hash32 [32]byte

// Slice returns the digest as a []byte.
func (h Hash32) Slice() []byte { return h[:] }

// MessagePayload is the plaintext that gets signed, committed to,
// encrypted and fanned out. Field order matches the canonical encoding.
type MessagePayload struct {
	Username        Username
	Content         string
	Timestamp       int64
	SequenceNumber  uint64
	SenderPublicKey Ed25519Public
	Signature       Signature
	ChainKeyIndex   uint64
	MessageHash     Hash32
}
