package relay

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"rchat/internal/domain"
	"rchat/internal/wire"
)

const writeTimeout = 30 * time.Second

// conn is one client connection: a reader loop processing framed
// requests in order, and a writer goroutine draining the outbound queue.
type conn struct {
	id  uint64
	nc  net.Conn
	srv *Server
	log *zap.Logger

	out      chan wire.ServerMessage
	kick     chan struct{}
	kickOnce sync.Once

	// room and username are owned by the reader loop.
	room     domain.RoomID
	username domain.Username
}

func newConn(id uint64, nc net.Conn, srv *Server) *conn {
	return &conn{
		id:   id,
		nc:   nc,
		srv:  srv,
		log:  srv.log.With(zap.Uint64("conn", id), zap.String("remote", nc.RemoteAddr().String())),
		out:  make(chan wire.ServerMessage, srv.queueDepth),
		kick: make(chan struct{}),
	}
}

// enqueue implements sink. It never blocks: a full queue kicks the
// connection, which the registry treats as a leave.
func (c *conn) enqueue(m wire.ServerMessage) bool {
	select {
	case <-c.kick:
		return false
	default:
	}
	select {
	case c.out <- m:
		return true
	default:
		c.log.Warn("outbound queue full, dropping participant")
		c.shutdown()
		return false
	}
}

// shutdown makes the writer exit and unblocks the reader.
func (c *conn) shutdown() {
	c.kickOnce.Do(func() {
		close(c.kick)
		c.nc.Close()
	})
}

// run services the connection until it drops, then cleans up room state.
func (c *conn) run() {
	defer c.srv.wg.Done()

	var writerDone sync.WaitGroup
	writerDone.Add(1)
	go func() {
		defer writerDone.Done()
		c.writeLoop()
	}()

	c.readLoop()

	c.shutdown()
	writerDone.Wait()
	c.leaveCurrentRoom()
	c.log.Debug("connection closed")
}

// writeLoop drains the outbound queue sequentially, preserving
// per-sender order to this recipient.
func (c *conn) writeLoop() {
	for {
		select {
		case <-c.kick:
			return
		case m := <-c.out:
			body := wire.EncodeServerMessage(m)
			c.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wire.WriteFrame(c.nc, body, c.srv.maxFrame); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.shutdown()
				return
			}
		}
	}
}

// readLoop processes framed requests in order. Malformed or oversize
// frames and unknown variants terminate the connection; business errors
// are reported via Error frames and the session continues.
func (c *conn) readLoop() {
	for {
		body, err := wire.ReadFrame(c.nc, c.srv.maxFrame)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		msg, err := wire.DecodeClientMessage(body)
		if err != nil {
			c.log.Warn("protocol violation", zap.Error(err))
			return
		}
		c.handle(msg)
	}
}

func (c *conn) handle(msg wire.ClientMessage) {
	switch m := msg.(type) {
	case wire.CreateChat:
		c.handleCreate(m)
	case wire.JoinChat:
		c.handleJoin(m)
	case wire.SendMessage:
		c.handleSend(m)
	case wire.LeaveChat:
		c.handleLeave(m)
	}
}

func (c *conn) handleCreate(m wire.CreateChat) {
	if c.room != "" {
		c.enqueue(wire.Error{Message: "already in a room"})
		return
	}
	me := &member{connID: c.id, username: m.Username, out: c}
	if err := c.srv.state.Create(m.RoomID, m.Kind, me); err != nil {
		c.enqueue(wire.Error{Message: err.Error()})
		return
	}
	c.room = m.RoomID
	c.username = m.Username
	c.log.Info("room created", zap.String("room", truncRoom(m.RoomID)))
	// No UserJoined for the creator; nobody else is in the room yet.
	c.enqueue(wire.ChatCreated{RoomID: m.RoomID, Kind: m.Kind})
}

func (c *conn) handleJoin(m wire.JoinChat) {
	if c.room != "" {
		c.enqueue(wire.Error{Message: "already in a room"})
		return
	}
	me := &member{connID: c.id, username: m.Username, out: c}
	kind, count, err := c.srv.state.Join(m.RoomID, me)
	if err != nil {
		c.enqueue(wire.Error{Message: err.Error()})
		return
	}
	c.room = m.RoomID
	c.username = m.Username
	c.log.Info("participant joined",
		zap.String("room", truncRoom(m.RoomID)), zap.Uint64("count", count))
	c.enqueue(wire.JoinedChat{RoomID: m.RoomID, Kind: kind, ParticipantCount: count})
	dropped := c.srv.state.NotifyJoined(m.RoomID, m.Username, c.id)
	c.reportLeaves(m.RoomID, dropped)
}

func (c *conn) handleSend(m wire.SendMessage) {
	if c.room != m.RoomID {
		c.enqueue(wire.Error{Message: domain.ErrRoomNotFound.Error()})
		return
	}
	ok, dropped := c.srv.state.FanOut(m.RoomID, c.id, m.EncryptedPayload, m.MessageID)
	if !ok {
		c.enqueue(wire.Error{Message: domain.ErrRoomNotFound.Error()})
		return
	}
	c.enqueue(wire.MessageAck{MessageID: m.MessageID})
	c.reportLeaves(m.RoomID, dropped)
}

func (c *conn) handleLeave(m wire.LeaveChat) {
	if c.room != m.RoomID {
		c.enqueue(wire.Error{Message: domain.ErrRoomNotFound.Error()})
		return
	}
	c.leaveCurrentRoom()
}

// leaveCurrentRoom removes this connection from its room, if any, and
// notifies the remaining participants.
func (c *conn) leaveCurrentRoom() {
	if c.room == "" {
		return
	}
	id := c.room
	c.room = ""
	username, found := c.srv.state.Leave(id, c.id)
	if !found {
		// Already dropped by a broadcast failure; the leave was reported.
		return
	}
	c.log.Info("participant left", zap.String("room", truncRoom(id)))
	dropped := c.srv.state.NotifyLeft(id, username)
	c.reportLeaves(id, dropped)
}

// reportLeaves announces participants dropped by a broadcast, following
// any cascade of further drops until delivery is stable.
func (c *conn) reportLeaves(id domain.RoomID, dropped []*member) {
	for len(dropped) > 0 {
		next := dropped[0]
		dropped = dropped[1:]
		c.log.Info("participant dropped", zap.String("room", truncRoom(id)))
		dropped = append(dropped, c.srv.state.NotifyLeft(id, next.username)...)
	}
}

// truncRoom shortens a room ID for log fields. Room IDs are public, but
// 86 characters drown log lines.
func truncRoom(id domain.RoomID) string {
	s := id.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
