// Package domain holds the types shared by every layer of rchat: room
// identifiers and kinds, the plaintext message payload, fixed-size key
// types, and the sentinel errors the protocol surfaces.
//
// Fixed-size array types expose Slice() accessors to avoid accidental
// reallocation of key material. Nothing in this package performs I/O.
package domain
