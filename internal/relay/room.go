package relay

import (
	"sync"
	"time"

	"rchat/internal/domain"
	"rchat/internal/wire"
)

// sink is a participant's outbound queue. enqueue must never block; it
// reports false when the queue is full or the peer is dead, which the
// registry treats as that participant leaving.
type sink interface {
	enqueue(m wire.ServerMessage) bool
}

// member is one participant of a room.
type member struct {
	connID   uint64
	username domain.Username
	out      sink
}

// room holds a participant list ordered by join time. Mutations happen
// under mu, which is always acquired after the registry lookup.
type room struct {
	kind     domain.RoomKind
	capacity int
	created  time.Time

	mu      sync.Mutex
	members []*member
	// dead marks a room already removed from the registry, so a racing
	// join cannot land in a zombie room.
	dead bool
}

func (r *room) indexOfLocked(connID uint64) int {
	for i, m := range r.members {
		if m.connID == connID {
			return i
		}
	}
	return -1
}

func (r *room) hasUsernameLocked(u domain.Username) bool {
	for _, m := range r.members {
		if m.username == u {
			return true
		}
	}
	return false
}

// State is the relay's room registry, the only shared mutable structure.
type State struct {
	maxGroup uint64

	mu    sync.Mutex
	rooms map[domain.RoomID]*room
}

// NewState returns an empty registry. maxGroup caps group room capacity.
func NewState(maxGroup uint64) *State {
	if maxGroup == 0 {
		maxGroup = 8
	}
	return &State{
		maxGroup: maxGroup,
		rooms:    make(map[domain.RoomID]*room),
	}
}

func (s *State) lookup(id domain.RoomID) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

// Create makes a room and inserts the creator as its first participant.
func (s *State) Create(id domain.RoomID, kind domain.RoomKind, creator *member) error {
	capacity := 2
	if kind.Group {
		max := s.maxGroup
		if kind.MaxParticipants != nil && *kind.MaxParticipants < max {
			max = *kind.MaxParticipants
		}
		if max == 0 {
			max = 1
		}
		capacity = int(max)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; ok {
		return domain.ErrRoomAlreadyExists
	}
	s.rooms[id] = &room{
		kind:     kind,
		capacity: capacity,
		created:  time.Now(),
		members:  []*member{creator},
	}
	return nil
}

// Join adds a participant to an existing room and returns the room kind
// and the participant count including the joiner.
func (s *State) Join(id domain.RoomID, joiner *member) (domain.RoomKind, uint64, error) {
	r := s.lookup(id)
	if r == nil {
		return domain.RoomKind{}, 0, domain.ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return domain.RoomKind{}, 0, domain.ErrRoomNotFound
	}
	if len(r.members) >= r.capacity {
		return domain.RoomKind{}, 0, domain.ErrRoomFull
	}
	if r.hasUsernameLocked(joiner.username) {
		return domain.RoomKind{}, 0, domain.ErrUsernameTaken
	}
	r.members = append(r.members, joiner)
	return r.kind, uint64(len(r.members)), nil
}

// Leave removes a connection's participant from a room. It reports the
// username and whether the participant was present; an emptied room is
// destroyed.
func (s *State) Leave(id domain.RoomID, connID uint64) (domain.Username, bool) {
	s.mu.Lock()
	r := s.rooms[id]
	if r == nil {
		s.mu.Unlock()
		return "", false
	}

	r.mu.Lock()
	i := r.indexOfLocked(connID)
	if i < 0 {
		r.mu.Unlock()
		s.mu.Unlock()
		return "", false
	}
	username := r.members[i].username
	r.members = append(r.members[:i], r.members[i+1:]...)
	empty := len(r.members) == 0
	if empty {
		r.dead = true
	}
	r.mu.Unlock()

	if empty {
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	return username, true
}

// FanOut delivers a MessageReceived to every participant except the
// sender, stamping the relay's wall clock (display ordering only). It
// reports whether the sender is a participant, and returns any members
// whose queue was full or dead; those have already been removed from
// the room and must be reported as leaves by the caller.
func (s *State) FanOut(id domain.RoomID, senderConnID uint64, payload []byte, msgID domain.MessageID) (bool, []*member) {
	r := s.lookup(id)
	if r == nil {
		return false, nil
	}

	msg := wire.MessageReceived{
		RoomID:           id,
		EncryptedPayload: payload,
		Timestamp:        time.Now().Unix(),
		MessageID:        msgID,
	}

	r.mu.Lock()
	if r.indexOfLocked(senderConnID) < 0 {
		r.mu.Unlock()
		return false, nil
	}
	dropped := r.broadcastLocked(msg, senderConnID)
	r.mu.Unlock()

	s.reapIfEmpty(id, r)
	return true, dropped
}

// NotifyJoined broadcasts UserJoined to everyone but the joiner.
func (s *State) NotifyJoined(id domain.RoomID, username domain.Username, joinerConnID uint64) []*member {
	return s.notify(id, wire.UserJoined{RoomID: id, Username: username}, joinerConnID)
}

// NotifyLeft broadcasts UserLeft to all remaining participants.
func (s *State) NotifyLeft(id domain.RoomID, username domain.Username) []*member {
	return s.notify(id, wire.UserLeft{RoomID: id, Username: username}, 0)
}

func (s *State) notify(id domain.RoomID, msg wire.ServerMessage, excludeConnID uint64) []*member {
	r := s.lookup(id)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	dropped := r.broadcastLocked(msg, excludeConnID)
	r.mu.Unlock()

	s.reapIfEmpty(id, r)
	return dropped
}

// broadcastLocked enqueues msg to every member except excludeConnID.
// Members that cannot accept are removed; delivery to the rest is
// unaffected (partial-failure isolation).
func (r *room) broadcastLocked(msg wire.ServerMessage, excludeConnID uint64) []*member {
	var dropped []*member
	kept := r.members[:0]
	for _, m := range r.members {
		if m.connID == excludeConnID {
			kept = append(kept, m)
			continue
		}
		if m.out.enqueue(msg) {
			kept = append(kept, m)
			continue
		}
		dropped = append(dropped, m)
	}
	r.members = kept
	return dropped
}

// reapIfEmpty destroys a room once broadcast drops emptied it.
func (s *State) reapIfEmpty(id domain.RoomID, r *room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rooms[id]; ok && cur == r {
		r.mu.Lock()
		empty := len(r.members) == 0
		if empty {
			r.dead = true
		}
		r.mu.Unlock()
		if empty {
			delete(s.rooms, id)
		}
	}
}

// RoomCount reports the number of live rooms.
func (s *State) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
