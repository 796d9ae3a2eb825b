// Package wire implements the canonical binary encoding of rchat: the
// plaintext message payload, the client and relay protocol messages, and
// the length-prefixed framing that carries them over a stream.
//
// # Encoding rules
//
// All integers are little-endian. Byte strings and UTF-8 strings carry a
// u64 length prefix. Variant tags are u32. Option values carry a u8 tag
// (0 absent, 1 present) followed by the value. Every frame is a u32
// length followed by exactly that many body bytes; frames whose declared
// length exceeds the configured maximum are rejected before any
// allocation.
//
// The encoding is a wire contract shared with other implementations and
// must stay bit-exact; variant numbers are stable.
package wire
