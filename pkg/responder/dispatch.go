package responder

import (
	"net"
	"sort"

	"github.com/sdebeacon/sdebeacon/internal/sdeproto"
)

// dispatch routes a validated, fully-received packet to its handler.
// GET_SERVICE_DESC alone (no data) is accepted and silently ignored --
// its positions travel in the companion _DATA datagram, matched by seq.
// Every other unhandled type is ignored too.
func (r *Responder) dispatch(hdr sdeproto.Header, buf []byte, sender *net.UDPAddr) {
	switch hdr.Type {
	case sdeproto.TypeGetMetadata:
		r.sendMetadata(sender, hdr.Seq)
	case sdeproto.TypeGetServiceDescData:
		data, ok := sdeproto.DecodeGetServiceDescData(buf)
		if !ok {
			return
		}
		r.sendServiceDesc(sender, hdr.Seq, data.Positions)
	case sdeproto.TypeGetServiceDesc:
		// Companion announce only; nothing to send until the _DATA
		// packet with the same seq arrives.
	default:
		// METADATA, METADATA_DATA, SERVICE_DESC, SERVICE_DESC_DATA are
		// reply types the responder never expects to receive; anything
		// else is simply unknown. Both are ignored.
	}
}

// sendMetadata answers GET_METADATA with the METADATA announce followed by
// the METADATA_DATA packet carrying every service's mod_time, in position
// order.
func (r *Responder) sendMetadata(sender *net.UDPAddr, seq uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.list.Open()
	defer h.Close()

	if _, err := r.cache.refresh(h); err != nil {
		r.logger.WithError(err).Warn("failed to refresh metadata cache")
		return
	}

	count := uint32(len(r.cache.metadata) / 8)
	announce := sdeproto.Metadata{Header: sdeproto.Header{Type: sdeproto.TypeMetadata, Seq: seq}, Count: count}
	if err := r.send(sender, announce.Encode()); err != nil {
		r.logger.WithError(err).Warn("failed to send metadata announce")
		return
	}

	timestamps := make([]uint64, count)
	for i := range timestamps {
		timestamps[i] = beUint64(r.cache.metadata[i*8 : i*8+8])
	}
	data := sdeproto.MetadataData{
		Header:     sdeproto.Header{Type: sdeproto.TypeMetadataData, Seq: seq},
		Count:      count,
		Timestamps: timestamps,
	}
	if err := r.send(sender, data.Encode()); err != nil {
		r.logger.WithError(err).Warn("failed to send metadata data")
	}
}

// sendServiceDesc answers a GET_SERVICE_DESC/GET_SERVICE_DESC_DATA pair
// with the SERVICE_DESC announce followed by the SERVICE_DESC_DATA
// packet. Positions are sorted ascending, then each requested position is
// looked up by ordinal in the cached TLV blob's offset table and its
// DESCRIPTION chunk appended -- per spec.md §4.3, the reply is built in
// ascending position order regardless of the order positions were
// requested in.
func (r *Responder) sendServiceDesc(sender *net.UDPAddr, seq uint32, positions []byte) {
	sorted := append([]byte(nil), positions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.list.Open()
	defer h.Close()

	if _, err := r.cache.refresh(h); err != nil {
		r.logger.WithError(err).Warn("failed to refresh description cache")
		return
	}

	var payload []byte
	for _, pos := range sorted {
		chunk, ok := r.cache.descriptionChunkAt(int(pos))
		if !ok {
			// Position no longer exists (e.g. the list shrank since the
			// client's last metadata fetch); per spec.md §9, positions
			// are not stable across commits and the client is
			// responsible for cross-checking SERVICE_TS. Skip it.
			continue
		}
		payload = append(payload, chunk.RawBytes()...)
	}

	announce := sdeproto.ServiceDesc{Header: sdeproto.Header{Type: sdeproto.TypeServiceDesc, Seq: seq}, Size: uint32(len(payload))}
	if err := r.send(sender, announce.Encode()); err != nil {
		r.logger.WithError(err).Warn("failed to send service desc announce")
		return
	}

	data := sdeproto.ServiceDescData{
		Header:      sdeproto.Header{Type: sdeproto.TypeServiceDescData, Seq: seq},
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}
	if err := r.send(sender, data.Encode()); err != nil {
		r.logger.WithError(err).Warn("failed to send service desc data")
	}
}

func (r *Responder) send(to *net.UDPAddr, buf []byte) error {
	_, err := r.conn.WriteToUDP(buf, to)
	return err
}

func beUint64(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}
