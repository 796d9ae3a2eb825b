// Package relay implements the rchat relay: an untrusted forwarder of
// opaque ciphertext between the participants of a room.
//
// The relay never sees plaintext, keys, or chat codes; it routes by the
// room identifier, which is a one-way hash of the code. All state is
// volatile: a room exists from creation until its last participant
// leaves, and nothing survives process exit.
//
// # Concurrency
//
// Each accepted connection runs a reader goroutine (frames processed in
// order) and a writer goroutine draining a buffered outbound queue.
// Room mutations take short critical sections on the registry and room
// locks and never block on I/O while holding them; fan-out enqueues
// non-blocking, and a participant whose queue is full or dead is
// removed from the room as if it had left.
package relay
