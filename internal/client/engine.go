package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"rchat/internal/crypto"
	"rchat/internal/domain"
	"rchat/internal/wire"
)

// State is the session lifecycle position.
type State int

// Session states, in the order a session moves through them.
const (
	Disconnected State = iota
	Connecting
	Connected
	InRoom
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case InRoom:
		return "in-room"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config wires an engine to a relay and a room.
type Config struct {
	// Addr is the relay host:port.
	Addr string

	// Username is the self-declared display name.
	Username domain.Username

	// ChatCode is the shared room secret. It is consumed during New and
	// not retained.
	ChatCode string

	// Insecure skips TLS certificate verification (test mode with
	// self-signed relay certificates).
	Insecure bool

	// MaxFrame bounds inbound frames; zero means the 1 MiB default.
	MaxFrame uint32

	// MaxSendAttempts bounds how often an unacknowledged message is
	// written, counting the first send and each retry after a reconnect;
	// zero means 3.
	MaxSendAttempts int

	// FreshnessWindow bounds |now - timestamp| on inbound messages;
	// zero means 300 seconds.
	FreshnessWindow time.Duration

	Logger *zap.Logger
}

// peer tracks receive-side state for one sender identity key.
type peer struct {
	chain   *crypto.Chain
	lastSeq uint64
	dropped uint64
}

// pendingSend is an unacknowledged message awaiting MessageAck.
type pendingSend struct {
	content  string
	attempts int
}

// Engine drives one chat session against a relay.
type Engine struct {
	cfg    Config
	log    *zap.Logger
	roomID domain.RoomID

	chatKey  *crypto.ChatKey
	identity *crypto.Identity
	seed     *crypto.Chain
	send     *crypto.Chain

	mu      sync.Mutex
	state   State
	conn    net.Conn
	seq     uint64
	pending map[domain.MessageID]*pendingSend
	peers   map[domain.Ed25519Public]*peer
	closed  bool

	writeMu sync.Mutex

	events chan Event
}

// New derives the session's key material from the chat code and returns
// a disconnected engine. The Argon2id derivations are CPU-bound and can
// take noticeable time; call it off any latency-sensitive path.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxSendAttempts == 0 {
		cfg.MaxSendAttempts = 3
	}
	if cfg.FreshnessWindow == 0 {
		cfg.FreshnessWindow = 300 * time.Second
	}

	roomID, err := crypto.DeriveRoomID(cfg.ChatCode)
	if err != nil {
		return nil, err
	}
	chatKey, err := crypto.DeriveChatKey(cfg.ChatCode)
	if err != nil {
		return nil, err
	}
	seed, err := crypto.NewChain(cfg.ChatCode)
	if err != nil {
		chatKey.Zeroize()
		return nil, err
	}
	identity, err := crypto.NewIdentity()
	if err != nil {
		chatKey.Zeroize()
		seed.Zeroize()
		return nil, err
	}
	cfg.ChatCode = ""

	return &Engine{
		cfg:      cfg,
		log:      cfg.Logger,
		roomID:   roomID,
		chatKey:  chatKey,
		identity: identity,
		seed:     seed,
		send:     seed.Fork(),
		state:    Disconnected,
		pending:  make(map[domain.MessageID]*pendingSend),
		peers:    make(map[domain.Ed25519Public]*peer),
		events:   make(chan Event, 64),
	}, nil
}

// RoomID returns the routing identifier derived from the chat code.
func (e *Engine) RoomID() domain.RoomID { return e.roomID }

// Fingerprint returns the identity key fingerprint for display.
func (e *Engine) Fingerprint() string { return e.identity.Fingerprint() }

// Events is the channel of verified messages and session notifications.
func (e *Engine) Events() <-chan Event { return e.events }

// State returns the current session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Connect dials the relay over TLS and starts the receive pipeline.
func (e *Engine) Connect() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrConnectionLost
	}
	if e.state != Disconnected {
		e.mu.Unlock()
		return fmt.Errorf("%w: connect in state %s", domain.ErrUnexpectedMessage, e.state)
	}
	e.state = Connecting
	e.mu.Unlock()

	conn, err := tls.Dial("tcp", e.cfg.Addr, &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: e.cfg.Insecure,
	})
	if err != nil {
		e.setState(Disconnected)
		return fmt.Errorf("%w: %v", domain.ErrHandshakeFailed, err)
	}

	e.mu.Lock()
	e.conn = conn
	e.state = Connected
	e.mu.Unlock()

	go e.readLoop(conn)
	return nil
}

// CreateRoom asks the relay to create this engine's room.
func (e *Engine) CreateRoom(kind domain.RoomKind) error {
	return e.writeMessage(wire.CreateChat{
		RoomID:   e.roomID,
		Kind:     kind,
		Username: e.cfg.Username,
	})
}

// JoinRoom asks the relay to add this engine to its room.
func (e *Engine) JoinRoom() error {
	return e.writeMessage(wire.JoinChat{
		RoomID:   e.roomID,
		Username: e.cfg.Username,
	})
}

// Leave exits the room; the session drops back to Connected.
func (e *Engine) Leave() error {
	err := e.writeMessage(wire.LeaveChat{RoomID: e.roomID})
	e.mu.Lock()
	if e.state == InRoom {
		e.state = Connected
	}
	e.mu.Unlock()
	return err
}

// Reconnect re-dials after a connection loss, rejoins the room, and
// retries pending sends. Sends that exhaust their attempt budget are
// surfaced as SendFailed and abandoned.
func (e *Engine) Reconnect() error {
	if err := e.Connect(); err != nil {
		return err
	}
	if err := e.JoinRoom(); err != nil {
		return err
	}
	// Retries need the room confirmation; wait for it.
	if err := e.waitForState(InRoom, 10*time.Second); err != nil {
		return err
	}

	e.mu.Lock()
	retry := make(map[domain.MessageID]string)
	for id, p := range e.pending {
		p.attempts++
		if p.attempts >= e.cfg.MaxSendAttempts {
			delete(e.pending, id)
			e.emitLocked(SendFailed{MessageID: id, Content: p.content})
			continue
		}
		retry[id] = p.content
	}
	e.mu.Unlock()

	for id, content := range retry {
		if err := e.sendWithID(id, content); err != nil {
			return err
		}
	}
	return nil
}

// Close leaves the room, tears the connection down and wipes every key.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	conn := e.conn
	inRoom := e.state == InRoom
	e.state = Disconnected
	e.mu.Unlock()

	if conn != nil {
		if inRoom {
			body := wire.EncodeClientMessage(wire.LeaveChat{RoomID: e.roomID})
			e.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			_ = wire.WriteFrame(conn, body, e.cfg.MaxFrame)
			e.writeMu.Unlock()
		}
		conn.Close()
	}

	e.mu.Lock()
	e.chatKey.Zeroize()
	e.identity.Zeroize()
	e.seed.Zeroize()
	e.send.Zeroize()
	for _, p := range e.peers {
		p.chain.Zeroize()
	}
	e.peers = make(map[domain.Ed25519Public]*peer)
	e.mu.Unlock()
	return nil
}

// writeMessage frames and writes one client message.
func (e *Engine) writeMessage(m wire.ClientMessage) error {
	e.mu.Lock()
	conn := e.conn
	st := e.state
	e.mu.Unlock()
	if conn == nil || st == Disconnected || st == Connecting {
		return domain.ErrConnectionLost
	}

	body := wire.EncodeClientMessage(m)
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	if err := wire.WriteFrame(conn, body, e.cfg.MaxFrame); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
	}
	return nil
}

// waitForState polls until the session reaches want or the deadline
// passes.
func (e *Engine) waitForState(want State, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.State() == want {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("%w: state %s not reached", domain.ErrConnectionLost, want)
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// emitLocked queues an event without blocking the pipelines; the oldest
// unread event is dropped when the consumer lags.
func (e *Engine) emitLocked(ev Event) {
	select {
	case e.events <- ev:
	default:
		select {
		case <-e.events:
		default:
		}
		select {
		case e.events <- ev:
		default:
		}
	}
}

func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	e.emitLocked(ev)
	e.mu.Unlock()
}

// readLoop is the inbound frame pump. It exits on connection loss.
func (e *Engine) readLoop(conn net.Conn) {
	for {
		body, err := wire.ReadFrame(conn, e.cfg.MaxFrame)
		if err != nil {
			e.onDisconnect(conn, err)
			return
		}
		msg, err := wire.DecodeServerMessage(body)
		if err != nil {
			// Protocol violation from the relay; drop the connection.
			e.log.Warn("malformed relay frame", zap.Error(err))
			conn.Close()
			e.onDisconnect(conn, err)
			return
		}
		e.handleServer(msg)
	}
}

func (e *Engine) onDisconnect(conn net.Conn, err error) {
	e.mu.Lock()
	stale := e.conn != conn
	if !stale {
		e.conn = nil
		e.state = Disconnected
	}
	closed := e.closed
	e.mu.Unlock()
	conn.Close()
	if stale || closed {
		return
	}
	if errors.Is(err, io.EOF) {
		err = domain.ErrConnectionLost
	}
	e.emit(ConnectionLost{Err: err})
}

func (e *Engine) handleServer(msg wire.ServerMessage) {
	switch m := msg.(type) {
	case wire.ChatCreated:
		if m.RoomID != e.roomID {
			return
		}
		e.setState(InRoom)
		e.emit(RoomCreated{RoomID: m.RoomID})
	case wire.JoinedChat:
		if m.RoomID != e.roomID {
			return
		}
		e.setState(InRoom)
		e.emit(RoomJoined{RoomID: m.RoomID, ParticipantCount: m.ParticipantCount})
	case wire.Error:
		e.emit(RelayError{Message: m.Message})
	case wire.MessageAck:
		e.mu.Lock()
		delete(e.pending, m.MessageID)
		e.emitLocked(Delivered{MessageID: m.MessageID})
		e.mu.Unlock()
	case wire.UserJoined:
		if m.RoomID != e.roomID {
			return
		}
		e.emit(PeerJoined{Username: m.Username})
	case wire.UserLeft:
		if m.RoomID != e.roomID {
			return
		}
		e.emit(PeerLeft{Username: m.Username})
	case wire.MessageReceived:
		e.receive(m)
	}
}
