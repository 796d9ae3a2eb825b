package crypto

import (
	"encoding/base64"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"rchat/internal/domain"
)

const (
	roomIDBlakeContext = "rchat-room-id-v2:"
	roomIDSHA3Context  = "rchat-double-hash:"
)

// DeriveRoomID maps a chat code to the routing identifier the relay sees.
//
// The code is hashed with BLAKE3 under a room-id context, then the digest
// is hashed again with SHA3-512 under a second context. The double hash is
// one-way: the relay can route by it but cannot recover the code or any
// key material. The wire form is URL-safe base64 without padding.
func DeriveRoomID(code string) (domain.RoomID, error) {
	// Derivation only needs the code text, but an unparseable code must
	// fail here rather than route to a junk room.
	if err := ValidateChatCode(code); err != nil {
		return "", err
	}

	h := blake3.New(32, nil)
	h.Write([]byte(roomIDBlakeContext))
	h.Write([]byte(code))
	inner := h.Sum(nil)

	outer := sha3.New512()
	outer.Write([]byte(roomIDSHA3Context))
	outer.Write(inner)
	sum := outer.Sum(nil)

	return domain.RoomID(base64.RawURLEncoding.EncodeToString(sum)), nil
}
