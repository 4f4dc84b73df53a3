// Package sdeproto defines the wire types of the Service Description
// Exchange protocol: the common packet header, the announce/data packet
// pairs, and the nested TLV field tags carried inside a service
// description. It is shared by the UDP responder and the diagnostic
// client so both sides of the exchange agree on a single encoding.
package sdeproto

import "encoding/binary"

// Port is the well-known UDP port the responder listens on.
const Port = 30003

// HeaderSize is the size in bytes of the common packet header
// (type + seq), present at the start of every SDE packet.
const HeaderSize = 8

// Packet type tags, assigned in the order given by the specification.
const (
	TypeGetMetadata uint32 = iota
	TypeMetadata
	TypeMetadataData
	TypeGetServiceDesc
	TypeGetServiceDescData
	TypeServiceDesc
	TypeServiceDescData
)

// TLV field tags nested inside a SERVICE_DESC_DATA payload.
const (
	TagDescription uint32 = iota + 1
	TagServicePos
	TagServiceTS
	TagServiceCatID
	TagServiceShortDesc
	TagServiceLongDesc
	TagServiceURI
)

// Header is the 8-byte prefix common to every SDE packet.
type Header struct {
	Type uint32
	Seq  uint32
}

func (h Header) encode(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], h.Type)
	binary.BigEndian.PutUint32(buf[4:8], h.Seq)
}

func decodeHeader(buf []byte) Header {
	return Header{
		Type: binary.BigEndian.Uint32(buf[0:4]),
		Seq:  binary.BigEndian.Uint32(buf[4:8]),
	}
}

// PeekHeader decodes only the common header from buf, without requiring
// the full packet to be present. ok is false if buf is shorter than
// HeaderSize.
func PeekHeader(buf []byte) (h Header, ok bool) {
	if len(buf) < HeaderSize {
		return Header{}, false
	}
	return decodeHeader(buf), true
}

// Metadata is the announce packet for a metadata exchange: header + count.
type Metadata struct {
	Header
	Count uint32
}

// Encode serializes the announce packet.
func (m Metadata) Encode() []byte {
	buf := make([]byte, HeaderSize+4)
	m.Header.encode(buf)
	binary.BigEndian.PutUint32(buf[HeaderSize:], m.Count)
	return buf
}

// MetadataData is the data packet for a metadata exchange: header + count +
// 4 bytes padding (for 8-byte alignment of the timestamp array) +
// timestamps.
type MetadataData struct {
	Header
	Count      uint32
	Timestamps []uint64
}

const metadataDataFixedSize = HeaderSize + 4 + 4 // header + count + pad

// Size returns the total byte size of the encoded packet.
func (m MetadataData) Size() int {
	return metadataDataFixedSize + 8*len(m.Timestamps)
}

// Encode serializes the data packet.
func (m MetadataData) Encode() []byte {
	buf := make([]byte, m.Size())
	m.Header.encode(buf)
	binary.BigEndian.PutUint32(buf[HeaderSize:HeaderSize+4], m.Count)
	// buf[HeaderSize+4:HeaderSize+8] is the unused alignment padding, left zero.
	off := metadataDataFixedSize
	for _, ts := range m.Timestamps {
		binary.BigEndian.PutUint64(buf[off:off+8], ts)
		off += 8
	}
	return buf
}

// DecodeMetadataData parses a MetadataData packet. The packet must have
// already passed the responder's size check.
func DecodeMetadataData(buf []byte) (MetadataData, bool) {
	h, ok := PeekHeader(buf)
	if !ok || len(buf) < metadataDataFixedSize {
		return MetadataData{}, false
	}
	count := binary.BigEndian.Uint32(buf[HeaderSize : HeaderSize+4])
	want := metadataDataFixedSize + 8*int(count)
	if len(buf) < want {
		return MetadataData{}, false
	}
	ts := make([]uint64, count)
	off := metadataDataFixedSize
	for i := range ts {
		ts[i] = binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
	}
	return MetadataData{Header: h, Count: count, Timestamps: ts}, true
}

// GetServiceDesc is the announce packet for a description request: header +
// count.
type GetServiceDesc struct {
	Header
	Count uint32
}

// Encode serializes the announce packet.
func (g GetServiceDesc) Encode() []byte {
	buf := make([]byte, HeaderSize+4)
	g.Header.encode(buf)
	binary.BigEndian.PutUint32(buf[HeaderSize:], g.Count)
	return buf
}

// GetServiceDescData is the data packet for a description request: header +
// count + positions (one byte each, unpadded).
type GetServiceDescData struct {
	Header
	Count     uint32
	Positions []byte
}

const getServiceDescDataFixedSize = HeaderSize + 4

// Size returns the total byte size of the encoded packet.
func (g GetServiceDescData) Size() int {
	return getServiceDescDataFixedSize + len(g.Positions)
}

// Encode serializes the data packet.
func (g GetServiceDescData) Encode() []byte {
	buf := make([]byte, g.Size())
	g.Header.encode(buf)
	binary.BigEndian.PutUint32(buf[HeaderSize:getServiceDescDataFixedSize], g.Count)
	copy(buf[getServiceDescDataFixedSize:], g.Positions)
	return buf
}

// MinSizeGetServiceDescData returns the minimum total packet size for a
// GET_SERVICE_DESC_DATA packet declaring count positions, used by the
// responder's pre-receive size check.
func MinSizeGetServiceDescData(count uint32) int {
	return getServiceDescDataFixedSize + int(count)
}

// DecodeGetServiceDescData parses a GetServiceDescData packet. The packet
// must have already passed the responder's size check.
func DecodeGetServiceDescData(buf []byte) (GetServiceDescData, bool) {
	h, ok := PeekHeader(buf)
	if !ok || len(buf) < getServiceDescDataFixedSize {
		return GetServiceDescData{}, false
	}
	count := binary.BigEndian.Uint32(buf[HeaderSize:getServiceDescDataFixedSize])
	want := getServiceDescDataFixedSize + int(count)
	if len(buf) < want {
		return GetServiceDescData{}, false
	}
	positions := append([]byte(nil), buf[getServiceDescDataFixedSize:want]...)
	return GetServiceDescData{Header: h, Count: count, Positions: positions}, true
}

// ServiceDesc is the announce packet for a description reply: header + size
// (bytes in the companion data packet).
type ServiceDesc struct {
	Header
	Size uint32
}

// Encode serializes the announce packet.
func (s ServiceDesc) Encode() []byte {
	buf := make([]byte, HeaderSize+4)
	s.Header.encode(buf)
	binary.BigEndian.PutUint32(buf[HeaderSize:], s.Size)
	return buf
}

// ServiceDescData is the data packet for a description reply: header + size
// + TLV blob.
type ServiceDescData struct {
	Header
	PayloadSize uint32
	Payload     []byte
}

const serviceDescDataFixedSize = HeaderSize + 4

// Encode serializes the data packet.
func (s ServiceDescData) Encode() []byte {
	buf := make([]byte, serviceDescDataFixedSize+len(s.Payload))
	s.Header.encode(buf)
	binary.BigEndian.PutUint32(buf[HeaderSize:serviceDescDataFixedSize], s.PayloadSize)
	copy(buf[serviceDescDataFixedSize:], s.Payload)
	return buf
}

// DecodeServiceDescData parses a ServiceDescData packet.
func DecodeServiceDescData(buf []byte) (ServiceDescData, bool) {
	h, ok := PeekHeader(buf)
	if !ok || len(buf) < serviceDescDataFixedSize {
		return ServiceDescData{}, false
	}
	size := binary.BigEndian.Uint32(buf[HeaderSize:serviceDescDataFixedSize])
	want := serviceDescDataFixedSize + int(size)
	if len(buf) < want {
		return ServiceDescData{}, false
	}
	payload := append([]byte(nil), buf[serviceDescDataFixedSize:want]...)
	return ServiceDescData{Header: h, PayloadSize: size, Payload: payload}, true
}

// FixedSizeForType returns the minimum packet size for known packet types
// whose size does not depend on a declared count/length field, and false
// for types that require reading a field first (GET_SERVICE_DESC_DATA) or
// are unknown.
func FixedSizeForType(t uint32) (int, bool) {
	switch t {
	case TypeGetMetadata:
		return HeaderSize, true
	case TypeMetadata:
		return HeaderSize + 4, true
	case TypeMetadataData:
		return metadataDataFixedSize, true
	case TypeGetServiceDesc:
		return HeaderSize + 4, true
	case TypeServiceDesc:
		return HeaderSize + 4, true
	case TypeServiceDescData:
		return serviceDescDataFixedSize, true
	default:
		return 0, false
	}
}
