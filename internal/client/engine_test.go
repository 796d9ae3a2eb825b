package client_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"rchat/internal/client"
	"rchat/internal/crypto"
	"rchat/internal/domain"
	"rchat/internal/relay"
	"rchat/internal/relay/config"
)

func testCode(t *testing.T) string {
	t.Helper()
	b := make([]byte, 64)
	for i := range b {
		b[i] = byte(0x5A ^ i)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// writeTestCert writes a self-signed certificate for 127.0.0.1, the
// test-mode deployment the protocol explicitly allows.
func writeTestCert(t *testing.T) (certFile, keyFile string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate cert key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "relay.crt")
	keyFile = filepath.Join(dir, "relay.key")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certFile, keyFile
}

func startRelay(t *testing.T) string {
	t.Helper()
	certFile, keyFile := writeTestCert(t)
	cfg := &config.Config{}
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Server.CertFile = certFile
	cfg.Server.KeyFile = keyFile
	if err := cfg.FixupAndValidate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	srv, err := relay.New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("relay.New: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv.Addr().String()
}

func newEngine(t *testing.T, addr, name, code string) *client.Engine {
	t.Helper()
	eng, err := client.New(client.Config{
		Addr:     addr,
		Username: domain.Username(name),
		ChatCode: code,
		Insecure: true,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("client.New(%s): %v", name, err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

// waitFor consumes events until one of type T arrives. An unexpected
// relay error fails the test immediately.
func waitFor[T client.Event](t *testing.T, eng *client.Engine) T {
	t.Helper()
	deadline := time.After(15 * time.Second)
	for {
		select {
		case ev := <-eng.Events():
			if v, ok := ev.(T); ok {
				return v
			}
			if e, ok := ev.(client.RelayError); ok {
				t.Fatalf("unexpected relay error: %s", e.Message)
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestSession_OneToOneRoundTrip(t *testing.T) {
	addr := startRelay(t)
	code := testCode(t)

	alice := newEngine(t, addr, "alice", code)
	if err := alice.Connect(); err != nil {
		t.Fatalf("alice connect: %v", err)
	}
	if err := alice.CreateRoom(domain.OneToOne()); err != nil {
		t.Fatalf("create room: %v", err)
	}
	created := waitFor[client.RoomCreated](t, alice)

	wantRoom, err := crypto.DeriveRoomID(code)
	if err != nil {
		t.Fatalf("DeriveRoomID: %v", err)
	}
	if created.RoomID != wantRoom {
		t.Fatalf("room ID %q, want %q", created.RoomID, wantRoom)
	}
	if alice.State() != client.InRoom {
		t.Fatalf("alice state = %s, want in-room", alice.State())
	}

	bob := newEngine(t, addr, "bob", code)
	if err := bob.Connect(); err != nil {
		t.Fatalf("bob connect: %v", err)
	}
	if err := bob.JoinRoom(); err != nil {
		t.Fatalf("join room: %v", err)
	}
	joined := waitFor[client.RoomJoined](t, bob)
	if joined.ParticipantCount != 2 {
		t.Fatalf("participant count %d, want 2", joined.ParticipantCount)
	}
	if pj := waitFor[client.PeerJoined](t, alice); pj.Username != "bob" {
		t.Fatalf("alice saw %q join, want bob", pj.Username)
	}

	if _, err := alice.Send("Hello"); err != nil {
		t.Fatalf("alice send: %v", err)
	}
	msg := waitFor[client.Message](t, bob)
	if msg.Username != "alice" || msg.Content != "Hello" {
		t.Fatalf("bob got %+v, want Hello from alice", msg)
	}
	waitFor[client.Delivered](t, alice)

	if _, err := bob.Send("Hi back"); err != nil {
		t.Fatalf("bob send: %v", err)
	}
	reply := waitFor[client.Message](t, alice)
	if reply.Username != "bob" || reply.Content != "Hi back" {
		t.Fatalf("alice got %+v, want Hi back from bob", reply)
	}

	if err := bob.Leave(); err != nil {
		t.Fatalf("bob leave: %v", err)
	}
	if pl := waitFor[client.PeerLeft](t, alice); pl.Username != "bob" {
		t.Fatalf("alice saw %q leave, want bob", pl.Username)
	}
}

func TestSession_RoomFull(t *testing.T) {
	addr := startRelay(t)
	code := testCode(t)

	alice := newEngine(t, addr, "alice", code)
	if err := alice.Connect(); err != nil {
		t.Fatalf("alice connect: %v", err)
	}
	if err := alice.CreateRoom(domain.OneToOne()); err != nil {
		t.Fatalf("create: %v", err)
	}
	waitFor[client.RoomCreated](t, alice)

	bob := newEngine(t, addr, "bob", code)
	if err := bob.Connect(); err != nil {
		t.Fatalf("bob connect: %v", err)
	}
	if err := bob.JoinRoom(); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	waitFor[client.RoomJoined](t, bob)

	carol := newEngine(t, addr, "carol", code)
	if err := carol.Connect(); err != nil {
		t.Fatalf("carol connect: %v", err)
	}
	if err := carol.JoinRoom(); err != nil {
		t.Fatalf("carol join: %v", err)
	}
	relErr := waitFor[client.RelayError](t, carol)
	if relErr.Message != "room full" {
		t.Fatalf("carol got %q, want room full", relErr.Message)
	}
}

func TestSession_DuplicateCreate(t *testing.T) {
	addr := startRelay(t)
	code := testCode(t)

	alice := newEngine(t, addr, "alice", code)
	if err := alice.Connect(); err != nil {
		t.Fatalf("alice connect: %v", err)
	}
	if err := alice.CreateRoom(domain.OneToOne()); err != nil {
		t.Fatalf("create: %v", err)
	}
	waitFor[client.RoomCreated](t, alice)

	bob := newEngine(t, addr, "bob", code)
	if err := bob.Connect(); err != nil {
		t.Fatalf("bob connect: %v", err)
	}
	if err := bob.CreateRoom(domain.OneToOne()); err != nil {
		t.Fatalf("bob create: %v", err)
	}
	relErr := waitFor[client.RelayError](t, bob)
	if relErr.Message != "room exists" {
		t.Fatalf("bob got %q, want room exists", relErr.Message)
	}
}
