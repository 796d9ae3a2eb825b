package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"rchat/internal/domain"
)

// DefaultMaxFrame bounds frame bodies at 1 MiB.
const DefaultMaxFrame = 1 << 20

// WriteFrame writes a u32 little-endian length prefix followed by body.
func WriteFrame(w io.Writer, body []byte, maxFrame uint32) error {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	if uint64(len(body)) > uint64(maxFrame) {
		return fmt.Errorf("%w: %d bytes", domain.ErrFrameTooLarge, len(body))
	}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed frame body. A declared length of
// zero or above maxFrame is rejected before anything is allocated.
func ReadFrame(r io.Reader, maxFrame uint32) ([]byte, error) {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(prefix[:])
	if n == 0 {
		return nil, fmt.Errorf("%w: empty frame", domain.ErrMalformedFrame)
	}
	if n > maxFrame {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", domain.ErrFrameTooLarge, n, maxFrame)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
