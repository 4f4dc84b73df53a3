// Package tlv implements the nested, 4-byte-aligned, big-endian
// type-length-value chunk format used inside SDE payloads.
package tlv

import (
	"encoding/binary"
	"errors"
)

// ErrOutOfMemory is returned by Append when growing the backing buffer
// would exceed the caller-imposed capacity.
var ErrOutOfMemory = errors.New("tlv: out of memory")

const headerSize = 8

// Chunk is a reference to a single TLV chunk inside a buffer.
// Type and Length are the decoded header fields; Length is always the
// unpadded size of Value. Value aliases the buffer it was read from.
type Chunk struct {
	Type   uint32
	Length uint32
	Value  []byte
}

// RawBytes re-encodes the chunk's header and value (with alignment
// padding) into a standalone buffer, suitable for concatenating several
// chunks selected out of a larger buffer into a new one.
func (c Chunk) RawBytes() []byte {
	out, _ := Append(nil, c.Type, c.Value, 0)
	return out
}

// roundUp4 rounds n up to the next multiple of 4.
func roundUp4(n int) int {
	return (n + 3) &^ 3
}

// PaddedSize returns the total on-wire size of a chunk with the given
// unpadded value length, header included.
func PaddedSize(valueLen int) int {
	return headerSize + roundUp4(valueLen)
}

// Append encodes a new chunk of the given type and value onto buf and
// returns the extended buffer. maxSize, if non-zero, caps the resulting
// buffer length; exceeding it returns ErrOutOfMemory and the original
// buffer is returned unchanged.
func Append(buf []byte, typ uint32, value []byte, maxSize int) ([]byte, error) {
	added := PaddedSize(len(value))
	if maxSize > 0 && len(buf)+added > maxSize {
		return buf, ErrOutOfMemory
	}
	out := make([]byte, len(buf)+added)
	copy(out, buf)
	chunk := out[len(buf):]
	binary.BigEndian.PutUint32(chunk[0:4], typ)
	binary.BigEndian.PutUint32(chunk[4:8], uint32(len(value)))
	copy(chunk[headerSize:], value)
	// Padding bytes are already zero from make().
	return out, nil
}

// Next reads the chunk starting at offset cursor in buf. It returns the
// decoded chunk and the cursor position of the chunk following it. ok is
// false when there is no further complete chunk at cursor: either cursor
// has reached the end of buf, or the chunk header declares a size that
// would run past the end of buf. Both are treated identically as "end of
// iteration" per the wire format's contract -- the codec does not
// distinguish a clean end from a torn chunk; callers that need to tell
// them apart must validate sizes before iterating.
func Next(buf []byte, cursor int) (chunk Chunk, nextCursor int, ok bool) {
	if cursor < 0 || cursor+headerSize > len(buf) {
		return Chunk{}, cursor, false
	}
	typ := binary.BigEndian.Uint32(buf[cursor : cursor+4])
	length := binary.BigEndian.Uint32(buf[cursor+4 : cursor+8])
	padded := roundUp4(int(length))
	valueStart := cursor + headerSize
	valueEnd := valueStart + int(length)
	chunkEnd := cursor + headerSize + padded
	if length > uint32(len(buf)) || valueEnd > len(buf) || chunkEnd > len(buf) {
		return Chunk{}, cursor, false
	}
	return Chunk{Type: typ, Length: length, Value: buf[valueStart:valueEnd]}, chunkEnd, true
}

// All iterates every top-level chunk in buf, calling fn for each. It stops
// at the first malformed or truncated chunk (see Next) without error --
// iteration termination is not distinguishable from a clean end of buffer.
func All(buf []byte, fn func(Chunk) bool) {
	cursor := 0
	for {
		chunk, next, ok := Next(buf, cursor)
		if !ok {
			return
		}
		if !fn(chunk) {
			return
		}
		cursor = next
	}
}
