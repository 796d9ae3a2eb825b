package client

import "rchat/internal/domain"

// Event is a notification the engine delivers to its consumer.
type Event interface{ event() }

// RoomCreated confirms room creation; the session is now in the room.
type RoomCreated struct {
	RoomID domain.RoomID
}

// RoomJoined confirms a join with the room size including this client.
type RoomJoined struct {
	RoomID           domain.RoomID
	ParticipantCount uint64
}

// Message is a fully verified inbound message.
type Message struct {
	Timestamp int64
	Username  domain.Username
	Content   string
}

// Delivered reports relay acceptance of a send.
type Delivered struct {
	MessageID domain.MessageID
}

// SendFailed reports a message that exhausted its retry budget.
type SendFailed struct {
	MessageID domain.MessageID
	Content   string
}

// PeerJoined and PeerLeft mirror the relay's room notifications.
type PeerJoined struct {
	Username domain.Username
}

// PeerLeft reports a departed participant.
type PeerLeft struct {
	Username domain.Username
}

// RelayError carries a business error reported by the relay.
type RelayError struct {
	Message string
}

// ConnectionLost reports loss of the relay connection. Pending sends
// are retried on the next successful Reconnect.
type ConnectionLost struct {
	Err error
}

func (RoomCreated) event()    {}
func (RoomJoined) event()     {}
func (Message) event()        {}
func (Delivered) event()      {}
func (SendFailed) event()     {}
func (PeerJoined) event()     {}
func (PeerLeft) event()       {}
func (RelayError) event()     {}
func (ConnectionLost) event() {}
