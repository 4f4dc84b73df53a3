package responder

import (
	"encoding/binary"
	"fmt"

	"github.com/sdebeacon/sdebeacon/internal/sdeproto"
	"github.com/sdebeacon/sdebeacon/internal/tlv"
	"github.com/sdebeacon/sdebeacon/pkg/servicelist"
)

// descCache holds the two derived artifacts the responder keeps, each
// tagged with the list mod_time they were built from. A rebuild is
// triggered whenever the list's current mod_time no longer matches the
// tag, per spec.md §3's "SDE cache state".
type descCache struct {
	tag            int64
	built          bool
	metadata       []byte // packed vector of 8-byte big-endian mod_times
	descriptionTLV []byte // concatenated DESCRIPTION chunks, one per service, in position order
	positionOffset []int  // byte offset of the Nth DESCRIPTION chunk within descriptionTLV
}

// refresh rebuilds the cache from handle h if its tag no longer matches
// the list's current mod_time. It reports whether a rebuild happened.
func (c *descCache) refresh(h *servicelist.Handle) (rebuilt bool, err error) {
	current, err := h.LastPublishedModTime()
	if err != nil {
		return false, err
	}
	if c.built && current == c.tag {
		return false, nil
	}

	n, err := h.Count()
	if err != nil {
		return false, err
	}

	metadata := make([]byte, 0, 8*n)
	var descBlob []byte
	offsets := make([]int, 0, n)

	for i := 0; i < n; i++ {
		rec, err := h.Get(i)
		if err != nil {
			return false, err
		}
		ts := make([]byte, 8)
		binary.BigEndian.PutUint64(ts, uint64(rec.ModTime))
		metadata = append(metadata, ts...)

		inner, err := encodeDescriptionFields(rec)
		if err != nil {
			return false, err
		}
		offsets = append(offsets, len(descBlob))
		descBlob, err = tlv.Append(descBlob, sdeproto.TagDescription, inner, 0)
		if err != nil {
			return false, err
		}
	}

	c.tag = current
	c.built = true
	c.metadata = metadata
	c.descriptionTLV = descBlob
	c.positionOffset = offsets
	return true, nil
}

// encodeDescriptionFields builds the nested TLV value of one DESCRIPTION
// chunk: SERVICE_POS, SERVICE_TS, SERVICE_CAT_ID, optional
// SERVICE_SHORT_DESC/SERVICE_LONG_DESC, then SERVICE_URI.
func encodeDescriptionFields(rec servicelist.Record) ([]byte, error) {
	var buf []byte
	var err error

	if rec.Position < 0 || rec.Position > 0xFF {
		return nil, fmt.Errorf("responder: position %d does not fit in SERVICE_POS", rec.Position)
	}
	buf, err = tlv.Append(buf, sdeproto.TagServicePos, []byte{byte(rec.Position)}, 0)
	if err != nil {
		return nil, err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(rec.ModTime))
	buf, err = tlv.Append(buf, sdeproto.TagServiceTS, ts, 0)
	if err != nil {
		return nil, err
	}

	catID := make([]byte, 4)
	binary.BigEndian.PutUint32(catID, rec.CatID)
	buf, err = tlv.Append(buf, sdeproto.TagServiceCatID, catID, 0)
	if err != nil {
		return nil, err
	}

	if rec.Desc != nil {
		buf, err = tlv.Append(buf, sdeproto.TagServiceShortDesc, []byte(*rec.Desc), 0)
		if err != nil {
			return nil, err
		}
	}
	if rec.LongDesc != nil {
		buf, err = tlv.Append(buf, sdeproto.TagServiceLongDesc, []byte(*rec.LongDesc), 0)
		if err != nil {
			return nil, err
		}
	}

	buf, err = tlv.Append(buf, sdeproto.TagServiceURI, []byte(rec.URI), 0)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// descriptionChunkAt returns the raw DESCRIPTION chunk (header included)
// for the Nth service in position order, or false if ordinal is out of
// range.
func (c *descCache) descriptionChunkAt(ordinal int) (tlv.Chunk, bool) {
	if ordinal < 0 || ordinal >= len(c.positionOffset) {
		return tlv.Chunk{}, false
	}
	chunk, _, ok := tlv.Next(c.descriptionTLV, c.positionOffset[ordinal])
	return chunk, ok
}
