// Package cgiwrite implements the owner-facing CGI write path: a
// net/http handler that serves a static catalog editor on GET and, on
// POST, decodes a TLV-over-URL body and atomically replaces the
// published service list.
package cgiwrite

import (
	"errors"
	"strconv"

	"github.com/sdebeacon/sdebeacon/internal/sdeproto"
)

// bodyPrefix is the literal prefix every write request body begins with.
const bodyPrefix = "serializedServices="

// ErrMissingPrefix is returned when the POST body does not begin with
// bodyPrefix.
var ErrMissingPrefix = errors.New("cgiwrite: body missing serializedServices= prefix")

// ErrMalformedTriple is returned when the ASCII "type:length:bytes"
// framing inside the decoded body cannot be parsed.
var ErrMalformedTriple = errors.New("cgiwrite: malformed type:length:bytes triple")

// urlDecode decodes raw per the rules of spec.md §4.4: '+' becomes a
// space, '%HH' becomes the byte with hex value HH, every other byte
// passes through unchanged. Decoding stops at the first unescaped '&' or
// the end of raw.
func urlDecode(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '&':
			return out
		case '+':
			out = append(out, ' ')
		case '%':
			if i+2 < len(raw) {
				if v, err := strconv.ParseUint(string(raw[i+1:i+3]), 16, 8); err == nil {
					out = append(out, byte(v))
					i += 2
					continue
				}
			}
			out = append(out, raw[i])
		default:
			out = append(out, raw[i])
		}
	}
	return out
}

// triple is one ASCII "<type>:<length>:<bytes>" element of the body
// grammar.
type triple struct {
	typ   int
	value []byte
}

// tripleScanner walks a decoded body, yielding one triple per call to
// next.
type tripleScanner struct {
	buf    []byte
	cursor int
}

func newTripleScanner(buf []byte) *tripleScanner {
	return &tripleScanner{buf: buf}
}

// next returns the next triple, or ok=false at end of buffer, or an error
// if the framing is malformed.
func (s *tripleScanner) next() (t triple, ok bool, err error) {
	if s.cursor >= len(s.buf) {
		return triple{}, false, nil
	}
	typ, pos, err := s.readDecimalField(s.cursor)
	if err != nil {
		return triple{}, false, err
	}
	length, valueStart, err := s.readDecimalField(pos)
	if err != nil {
		return triple{}, false, err
	}
	valueEnd := valueStart + length
	if length < 0 || valueEnd > len(s.buf) {
		return triple{}, false, ErrMalformedTriple
	}
	value := s.buf[valueStart:valueEnd]
	s.cursor = valueEnd
	return triple{typ: typ, value: value}, true, nil
}

// readDecimalField reads a ':'-terminated ASCII decimal field starting at
// offset from, returning its value and the offset immediately after the
// separator.
func (s *tripleScanner) readDecimalField(from int) (int, int, error) {
	sep := indexByte(s.buf[from:], ':')
	if sep < 0 {
		return 0, 0, ErrMalformedTriple
	}
	n, err := strconv.Atoi(string(s.buf[from : from+sep]))
	if err != nil {
		return 0, 0, ErrMalformedTriple
	}
	return n, from + sep + 1, nil
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}

// ParsedRecord is one service's fields as decoded from the body grammar,
// keyed by the same TLV type tags used in the binary SDE codec
// (internal/sdeproto): SERVICE_CAT_ID, SERVICE_URI, SERVICE_DESC,
// SERVICE_LONG_DESC, delimited by DESCRIPTION markers.
type ParsedRecord struct {
	CatID    uint32
	URI      string
	Desc     *string
	LongDesc *string
}

// decodeBody implements the full algorithm of spec.md §4.4 steps 1-2: it
// strips bodyPrefix, URL-decodes the remainder, and skims the ASCII TLV
// grammar into one ParsedRecord per DESCRIPTION triple encountered.
func decodeBody(body []byte) ([]ParsedRecord, error) {
	if len(body) < len(bodyPrefix) || string(body[:len(bodyPrefix)]) != bodyPrefix {
		return nil, ErrMissingPrefix
	}
	decoded := urlDecode(body[len(bodyPrefix):])

	scanner := newTripleScanner(decoded)
	var records []ParsedRecord
	var current *ParsedRecord

	for {
		t, ok, err := scanner.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		switch uint32(t.typ) {
		case sdeproto.TagDescription:
			records = append(records, ParsedRecord{})
			current = &records[len(records)-1]
		case sdeproto.TagServiceCatID:
			if current == nil {
				continue
			}
			v, err := decodeUint32Field(t.value)
			if err != nil {
				return nil, err
			}
			current.CatID = v
		case sdeproto.TagServiceURI:
			if current == nil {
				continue
			}
			current.URI = string(t.value)
		case sdeproto.TagServiceShortDesc:
			if current == nil {
				continue
			}
			s := string(t.value)
			current.Desc = &s
		case sdeproto.TagServiceLongDesc:
			if current == nil {
				continue
			}
			s := string(t.value)
			current.LongDesc = &s
		default:
			// Unknown field types are ignored; the grammar is forward
			// extensible.
		}
	}
	return records, nil
}

func decodeUint32Field(value []byte) (uint32, error) {
	n, err := strconv.ParseUint(string(value), 10, 32)
	if err != nil {
		return 0, ErrMalformedTriple
	}
	return uint32(n), nil
}
