package wire

import (
	"fmt"

	"rchat/internal/domain"
)

// Client-to-relay variant tags. Stable wire contract.
const (
	tagCreateChat  uint32 = 0
	tagJoinChat    uint32 = 1
	tagSendMessage uint32 = 2
	tagLeaveChat   uint32 = 3
)

// Relay-to-client variant tags. Stable wire contract.
const (
	tagChatCreated     uint32 = 0
	tagJoinedChat      uint32 = 1
	tagError           uint32 = 2
	tagMessageReceived uint32 = 3
	tagMessageAck      uint32 = 4
	tagUserJoined      uint32 = 5
	tagUserLeft        uint32 = 6
)

// Room kind variant tags.
const (
	tagOneToOne uint32 = 0
	tagGroup    uint32 = 1
)

// ClientMessage is a request from a client to the relay.
type ClientMessage interface{ clientMessage() }

// CreateChat asks the relay to create a room and join the creator to it.
type CreateChat struct {
	RoomID   domain.RoomID
	Kind     domain.RoomKind
	Username domain.Username
}

// JoinChat asks the relay to add the sender to an existing room.
type JoinChat struct {
	RoomID   domain.RoomID
	Username domain.Username
}

// SendMessage carries an opaque encrypted payload for fan-out.
type SendMessage struct {
	RoomID           domain.RoomID
	EncryptedPayload []byte
	MessageID        domain.MessageID
}

// LeaveChat removes the sender from a room.
type LeaveChat struct {
	RoomID domain.RoomID
}

func (CreateChat) clientMessage()  {}
func (JoinChat) clientMessage()    {}
func (SendMessage) clientMessage() {}
func (LeaveChat) clientMessage()   {}

// ServerMessage is a response or notification from the relay.
type ServerMessage interface{ serverMessage() }

// ChatCreated confirms room creation to the creator.
type ChatCreated struct {
	RoomID domain.RoomID
	Kind   domain.RoomKind
}

// JoinedChat confirms a join, with the room size including the joiner.
type JoinedChat struct {
	RoomID           domain.RoomID
	Kind             domain.RoomKind
	ParticipantCount uint64
}

// Error reports a business failure; the connection stays open.
type Error struct {
	Message string
}

// MessageReceived fans an encrypted payload out to a room participant.
// Timestamp is relay wall-clock, for display ordering only; recipients
// must never use it for freshness decisions.
type MessageReceived struct {
	RoomID           domain.RoomID
	EncryptedPayload []byte
	Timestamp        int64
	MessageID        domain.MessageID
}

// MessageAck confirms relay acceptance of a send to its originator.
type MessageAck struct {
	MessageID domain.MessageID
}

// UserJoined notifies existing participants of a new member.
type UserJoined struct {
	RoomID   domain.RoomID
	Username domain.Username
}

// UserLeft notifies remaining participants of a departure.
type UserLeft struct {
	RoomID   domain.RoomID
	Username domain.Username
}

func (ChatCreated) serverMessage()     {}
func (JoinedChat) serverMessage()      {}
func (Error) serverMessage()           {}
func (MessageReceived) serverMessage() {}
func (MessageAck) serverMessage()      {}
func (UserJoined) serverMessage()      {}
func (UserLeft) serverMessage()        {}

func encodeKind(e *encoder, k domain.RoomKind) {
	if !k.Group {
		e.u32(tagOneToOne)
		return
	}
	e.u32(tagGroup)
	e.optU64(k.MaxParticipants)
}

func decodeKind(d *decoder) (domain.RoomKind, error) {
	tag, err := d.u32()
	if err != nil {
		return domain.RoomKind{}, err
	}
	switch tag {
	case tagOneToOne:
		return domain.OneToOne(), nil
	case tagGroup:
		max, err := d.optU64()
		if err != nil {
			return domain.RoomKind{}, err
		}
		return domain.GroupKind(max), nil
	default:
		return domain.RoomKind{}, fmt.Errorf("%w: room kind %d", domain.ErrUnknownVariant, tag)
	}
}

// EncodeClientMessage serializes a client request body.
func EncodeClientMessage(m ClientMessage) []byte {
	var e encoder
	switch v := m.(type) {
	case CreateChat:
		e.u32(tagCreateChat)
		e.str(v.RoomID.String())
		encodeKind(&e, v.Kind)
		e.str(v.Username.String())
	case JoinChat:
		e.u32(tagJoinChat)
		e.str(v.RoomID.String())
		e.str(v.Username.String())
	case SendMessage:
		e.u32(tagSendMessage)
		e.str(v.RoomID.String())
		e.bytes(v.EncryptedPayload)
		e.str(v.MessageID.String())
	case LeaveChat:
		e.u32(tagLeaveChat)
		e.str(v.RoomID.String())
	default:
		panic(fmt.Sprintf("wire: unhandled client message %T", m))
	}
	return e.buf
}

// DecodeClientMessage parses a client request body. Unknown variants are
// a protocol violation that must close the connection.
func DecodeClientMessage(b []byte) (ClientMessage, error) {
	d := decoder{buf: b}
	tag, err := d.u32()
	if err != nil {
		return nil, err
	}

	var m ClientMessage
	switch tag {
	case tagCreateChat:
		var v CreateChat
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		if v.Kind, err = decodeKind(&d); err != nil {
			return nil, err
		}
		username, err := d.str()
		if err != nil {
			return nil, err
		}
		v.Username = domain.Username(username)
		m = v
	case tagJoinChat:
		var v JoinChat
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		username, err := d.str()
		if err != nil {
			return nil, err
		}
		v.Username = domain.Username(username)
		m = v
	case tagSendMessage:
		var v SendMessage
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		if v.EncryptedPayload, err = d.bytes(); err != nil {
			return nil, err
		}
		msgID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.MessageID = domain.MessageID(msgID)
		m = v
	case tagLeaveChat:
		var v LeaveChat
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		m = v
	default:
		return nil, fmt.Errorf("%w: client message %d", domain.ErrUnknownVariant, tag)
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeServerMessage serializes a relay response body.
func EncodeServerMessage(m ServerMessage) []byte {
	var e encoder
	switch v := m.(type) {
	case ChatCreated:
		e.u32(tagChatCreated)
		e.str(v.RoomID.String())
		encodeKind(&e, v.Kind)
	case JoinedChat:
		e.u32(tagJoinedChat)
		e.str(v.RoomID.String())
		encodeKind(&e, v.Kind)
		e.u64(v.ParticipantCount)
	case Error:
		e.u32(tagError)
		e.str(v.Message)
	case MessageReceived:
		e.u32(tagMessageReceived)
		e.str(v.RoomID.String())
		e.bytes(v.EncryptedPayload)
		e.i64(v.Timestamp)
		e.str(v.MessageID.String())
	case MessageAck:
		e.u32(tagMessageAck)
		e.str(v.MessageID.String())
	case UserJoined:
		e.u32(tagUserJoined)
		e.str(v.RoomID.String())
		e.str(v.Username.String())
	case UserLeft:
		e.u32(tagUserLeft)
		e.str(v.RoomID.String())
		e.str(v.Username.String())
	default:
		panic(fmt.Sprintf("wire: unhandled server message %T", m))
	}
	return e.buf
}

// DecodeServerMessage parses a relay response body.
func DecodeServerMessage(b []byte) (ServerMessage, error) {
	d := decoder{buf: b}
	tag, err := d.u32()
	if err != nil {
		return nil, err
	}

	var m ServerMessage
	switch tag {
	case tagChatCreated:
		var v ChatCreated
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		if v.Kind, err = decodeKind(&d); err != nil {
			return nil, err
		}
		m = v
	case tagJoinedChat:
		var v JoinedChat
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		if v.Kind, err = decodeKind(&d); err != nil {
			return nil, err
		}
		if v.ParticipantCount, err = d.u64(); err != nil {
			return nil, err
		}
		m = v
	case tagError:
		var v Error
		if v.Message, err = d.str(); err != nil {
			return nil, err
		}
		m = v
	case tagMessageReceived:
		var v MessageReceived
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		if v.EncryptedPayload, err = d.bytes(); err != nil {
			return nil, err
		}
		if v.Timestamp, err = d.i64(); err != nil {
			return nil, err
		}
		msgID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.MessageID = domain.MessageID(msgID)
		m = v
	case tagMessageAck:
		var v MessageAck
		msgID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.MessageID = domain.MessageID(msgID)
		m = v
	case tagUserJoined:
		var v UserJoined
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		username, err := d.str()
		if err != nil {
			return nil, err
		}
		v.Username = domain.Username(username)
		m = v
	case tagUserLeft:
		var v UserLeft
		roomID, err := d.str()
		if err != nil {
			return nil, err
		}
		v.RoomID = domain.RoomID(roomID)
		username, err := d.str()
		if err != nil {
			return nil, err
		}
		v.Username = domain.Username(username)
		m = v
	default:
		return nil, fmt.Errorf("%w: server message %d", domain.ErrUnknownVariant, tag)
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return m, nil
}
