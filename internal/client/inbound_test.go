package client_test

import (
	"bytes"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"rchat/internal/client"
	"rchat/internal/crypto"
	"rchat/internal/domain"
	"rchat/internal/util/memzero"
	"rchat/internal/wire"
)

// rawPeer speaks the framed protocol directly, standing in for an
// attacker or a foreign implementation.
type rawPeer struct {
	t    *testing.T
	conn net.Conn
}

func dialRawPeer(t *testing.T, addr string, roomID domain.RoomID, username string) *rawPeer {
	t.Helper()
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("raw peer dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	p := &rawPeer{t: t, conn: conn}
	p.write(wire.JoinChat{RoomID: roomID, Username: domain.Username(username)})
	for {
		msg := p.read()
		switch m := msg.(type) {
		case wire.JoinedChat:
			return p
		case wire.Error:
			t.Fatalf("raw peer join rejected: %s", m.Message)
		}
	}
}

func (p *rawPeer) write(m wire.ClientMessage) {
	p.t.Helper()
	if err := wire.WriteFrame(p.conn, wire.EncodeClientMessage(m), 0); err != nil {
		p.t.Fatalf("raw peer write: %v", err)
	}
}

func (p *rawPeer) read() wire.ServerMessage {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	body, err := wire.ReadFrame(p.conn, 0)
	if err != nil {
		p.t.Fatalf("raw peer read: %v", err)
	}
	msg, err := wire.DecodeServerMessage(body)
	if err != nil {
		p.t.Fatalf("raw peer decode: %v", err)
	}
	return msg
}

// sealMessage runs the outbound pipeline by hand.
func sealMessage(t *testing.T, chain *crypto.Chain, id *crypto.Identity, asKey domain.Ed25519Public, username, content string, seq uint64, ts int64) []byte {
	t.Helper()
	key, index := chain.Next()
	defer memzero.Zero(key[:])

	payload := &domain.MessagePayload{
		Username:        domain.Username(username),
		Content:         content,
		Timestamp:       ts,
		SequenceNumber:  seq,
		SenderPublicKey: asKey,
		Signature:       id.Sign(crypto.SignedBytes(content, ts, seq)),
		ChainKeyIndex:   index,
		MessageHash:     crypto.MessageCommitment(domain.Username(username), content, seq, index),
	}
	box, err := crypto.Seal(&key, wire.EncodePayload(payload))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return box
}

// victimSetup puts an engine ("bob") and a raw peer ("mallory") in a
// OneToOne room and returns mallory's chain and identity.
func victimSetup(t *testing.T) (bob *client.Engine, mallory *rawPeer, chain *crypto.Chain, id *crypto.Identity) {
	t.Helper()
	addr := startRelay(t)
	code := testCode(t)

	bob = newEngine(t, addr, "bob", code)
	if err := bob.Connect(); err != nil {
		t.Fatalf("bob connect: %v", err)
	}
	if err := bob.CreateRoom(domain.OneToOne()); err != nil {
		t.Fatalf("create: %v", err)
	}
	waitFor[client.RoomCreated](t, bob)

	mallory = dialRawPeer(t, addr, bob.RoomID(), "mallory")
	waitFor[client.PeerJoined](t, bob)

	var err error
	chain, err = crypto.NewChain(code)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	t.Cleanup(chain.Zeroize)
	id, err = crypto.NewIdentity()
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	return bob, mallory, chain, id
}

// A frame replayed byte for byte must be delivered to the application
// exactly once.
func TestInbound_ReplayDropped(t *testing.T) {
	bob, mallory, chain, id := victimSetup(t)
	now := time.Now().Unix()

	box := sealMessage(t, chain, id, id.Public(), "mallory", "one", 1, now)
	send := wire.SendMessage{RoomID: bob.RoomID(), EncryptedPayload: box, MessageID: "m1"}
	mallory.write(send)

	msg := waitFor[client.Message](t, bob)
	if msg.Content != "one" {
		t.Fatalf("got %q, want one", msg.Content)
	}

	// Inject the identical frame again, then a fresh message. Per-sender
	// order guarantees the replay is processed first; the next delivered
	// message must be the fresh one.
	mallory.write(send)
	box2 := sealMessage(t, chain, id, id.Public(), "mallory", "two", 2, time.Now().Unix())
	mallory.write(wire.SendMessage{RoomID: bob.RoomID(), EncryptedPayload: box2, MessageID: "m2"})

	msg = waitFor[client.Message](t, bob)
	if msg.Content != "two" {
		t.Fatalf("after replay got %q, want two", msg.Content)
	}
}

// A single flipped ciphertext byte must fail the AEAD open and leave
// the receiver's state untouched.
func TestInbound_TamperDropped(t *testing.T) {
	bob, mallory, chain, id := victimSetup(t)
	now := time.Now().Unix()

	box := sealMessage(t, chain, id, id.Public(), "mallory", "secret", 1, now)
	tampered := bytes.Clone(box)
	tampered[len(tampered)/2] ^= 0x01
	mallory.write(wire.SendMessage{RoomID: bob.RoomID(), EncryptedPayload: tampered, MessageID: "m1"})

	good := sealMessage(t, chain, id, id.Public(), "mallory", "intact", 2, time.Now().Unix())
	mallory.write(wire.SendMessage{RoomID: bob.RoomID(), EncryptedPayload: good, MessageID: "m2"})

	msg := waitFor[client.Message](t, bob)
	if msg.Content != "intact" {
		t.Fatalf("got %q, want the untampered message only", msg.Content)
	}
}

// Holding the chat code is not enough to impersonate: a payload whose
// signature does not verify under its claimed sender key is dropped.
func TestInbound_ForgeryDropped(t *testing.T) {
	bob, mallory, chain, id := victimSetup(t)
	now := time.Now().Unix()

	claimed, err := crypto.NewIdentity()
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	// Signed by mallory's key, claiming someone else's.
	forged := sealMessage(t, chain, id, claimed.Public(), "alice", "trust me", 1, now)
	mallory.write(wire.SendMessage{RoomID: bob.RoomID(), EncryptedPayload: forged, MessageID: "m1"})

	honest := sealMessage(t, chain, id, id.Public(), "mallory", "honest", 2, time.Now().Unix())
	mallory.write(wire.SendMessage{RoomID: bob.RoomID(), EncryptedPayload: honest, MessageID: "m2"})

	msg := waitFor[client.Message](t, bob)
	if msg.Content != "honest" {
		t.Fatalf("got %q, forged message was delivered", msg.Content)
	}
}

// Messages outside the freshness window are dropped on the signed inner
// timestamp; the relay-stamped outer timestamp is irrelevant.
func TestInbound_StaleTimestampDropped(t *testing.T) {
	bob, mallory, chain, id := victimSetup(t)

	stale := sealMessage(t, chain, id, id.Public(), "mallory", "old news", 1, time.Now().Unix()-400)
	mallory.write(wire.SendMessage{RoomID: bob.RoomID(), EncryptedPayload: stale, MessageID: "m1"})

	fresh := sealMessage(t, chain, id, id.Public(), "mallory", "fresh", 2, time.Now().Unix())
	mallory.write(wire.SendMessage{RoomID: bob.RoomID(), EncryptedPayload: fresh, MessageID: "m2"})

	msg := waitFor[client.Message](t, bob)
	if msg.Content != "fresh" {
		t.Fatalf("got %q, stale message was delivered", msg.Content)
	}
}

// An unknown variant is a protocol violation; the relay closes the
// connection.
func TestRelay_ClosesOnUnknownVariant(t *testing.T) {
	addr := startRelay(t)
	code := testCode(t)

	bob := newEngine(t, addr, "bob", code)
	if err := bob.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := bob.CreateRoom(domain.OneToOne()); err != nil {
		t.Fatalf("create: %v", err)
	}
	waitFor[client.RoomCreated](t, bob)

	mallory := dialRawPeer(t, addr, bob.RoomID(), "mallory")
	if err := wire.WriteFrame(mallory.conn, []byte{99, 0, 0, 0}, 0); err != nil {
		t.Fatalf("write bogus frame: %v", err)
	}
	mallory.conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	for {
		if _, err := wire.ReadFrame(mallory.conn, 0); err != nil {
			return // connection closed, as required
		}
	}
}
