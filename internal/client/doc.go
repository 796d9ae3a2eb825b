// Package client implements the rchat client engine: the outgoing send
// pipeline (serialize, sign, commit, ratchet, encrypt, frame), the
// incoming receive pipeline (unframe, decrypt, deserialize, verify,
// ordering check), and the per-session state machine.
//
// The engine is transport-facing but UI-agnostic: verified messages and
// room notifications are delivered on an event channel, and everything
// the engine rejects is dropped silently, never surfaced as plaintext.
//
// Key material (chat key, identity key, chain states) lives for the
// session and is wiped on Close, including error paths.
package client
