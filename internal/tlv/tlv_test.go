package tlv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendRoundTrip(t *testing.T) {
	var buf []byte
	var err error

	buf, err = Append(buf, 1, []byte("abc"), 0)
	assert.Nil(t, err)
	buf, err = Append(buf, 2, []byte{}, 0)
	assert.Nil(t, err)
	buf, err = Append(buf, 3, []byte("abcdefgh"), 0)
	assert.Nil(t, err)

	var got []Chunk
	All(buf, func(c Chunk) bool {
		// Copy value since it aliases buf.
		v := append([]byte(nil), c.Value...)
		got = append(got, Chunk{Type: c.Type, Length: c.Length, Value: v})
		return true
	})

	assert.Len(t, got, 3)
	assert.Equal(t, uint32(1), got[0].Type)
	assert.Equal(t, "abc", string(got[0].Value))
	assert.Equal(t, uint32(3), got[0].Length)

	assert.Equal(t, uint32(2), got[1].Type)
	assert.Equal(t, uint32(0), got[1].Length)

	assert.Equal(t, uint32(3), got[2].Type)
	assert.Equal(t, "abcdefgh", string(got[2].Value))
}

func TestAppendPadding(t *testing.T) {
	buf, err := Append(nil, 1, []byte("ab"), 0)
	assert.Nil(t, err)
	// header(8) + padded value (4, since 2 rounds up to 4)
	assert.Len(t, buf, 12)
}

func TestAppendOutOfMemory(t *testing.T) {
	buf, err := Append(nil, 1, make([]byte, 100), 16)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Nil(t, buf)
}

func TestNextEndOfBuffer(t *testing.T) {
	buf, _ := Append(nil, 1, []byte("x"), 0)
	_, cursor, ok := Next(buf, 0)
	assert.True(t, ok)
	_, _, ok = Next(buf, cursor)
	assert.False(t, ok)
}

func TestNextCorruptLengthTerminates(t *testing.T) {
	buf := make([]byte, headerSize)
	// Declare a length far larger than the buffer holds.
	buf[4], buf[5], buf[6], buf[7] = 0, 0, 0xFF, 0xFF
	_, _, ok := Next(buf, 0)
	assert.False(t, ok)
}

func TestNesting(t *testing.T) {
	var inner []byte
	inner, _ = Append(inner, 10, []byte("inner-a"), 0)
	inner, _ = Append(inner, 11, []byte("inner-b"), 0)

	outer, err := Append(nil, 99, inner, 0)
	assert.Nil(t, err)

	chunk, _, ok := Next(outer, 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(99), chunk.Type)

	var innerTypes []uint32
	All(chunk.Value, func(c Chunk) bool {
		innerTypes = append(innerTypes, c.Type)
		return true
	})
	assert.Equal(t, []uint32{10, 11}, innerTypes)
}
