package responder

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdebeacon/sdebeacon/internal/sdeproto"
	"github.com/sdebeacon/sdebeacon/internal/tlv"
	"github.com/sdebeacon/sdebeacon/internal/wifi"
	"github.com/sdebeacon/sdebeacon/pkg/servicelist"
)

func startTestResponder(t *testing.T) (*Responder, *servicelist.List, func()) {
	t.Helper()
	binding, err := wifi.NewBinding("virtual", "")
	require.NoError(t, err)
	list, err := servicelist.OpenStore(filepath.Join(t.TempDir(), "services.db"), binding, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	resp, err := New("127.0.0.1:0", list, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		resp.Serve(ctx)
		close(done)
	}()

	cleanup := func() {
		cancel()
		resp.Close()
		list.Close()
		<-done
	}
	return resp, list, cleanup
}

func strp(s string) *string { return &s }

func TestMetadataRoundTrip(t *testing.T) {
	resp, list, cleanup := startTestResponder(t)
	defer cleanup()

	h := list.Open()
	require.NoError(t, h.AddLast(servicelist.Record{CatID: 1, URI: "http://a"}))
	require.NoError(t, h.AddLast(servicelist.Record{CatID: 2, URI: "http://b"}))
	require.NoError(t, h.Commit())
	h.Close()

	conn, err := net.Dial("udp", resp.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	announce := sdeproto.Metadata{Header: sdeproto.Header{Type: sdeproto.TypeGetMetadata, Seq: 7}}
	_, err = conn.Write(announce.Encode()[:sdeproto.HeaderSize])
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	hdr, ok := sdeproto.PeekHeader(buf[:n])
	require.True(t, ok)
	assert.Equal(t, sdeproto.TypeMetadata, hdr.Type)
	assert.Equal(t, uint32(7), hdr.Seq)

	n, err = conn.Read(buf)
	require.NoError(t, err)
	data, ok := sdeproto.DecodeMetadataData(buf[:n])
	require.True(t, ok)
	assert.Equal(t, uint32(2), data.Count)
	require.Len(t, data.Timestamps, 2)
}

func TestServiceDescRoundTripSortsPositions(t *testing.T) {
	resp, list, cleanup := startTestResponder(t)
	defer cleanup()

	h := list.Open()
	require.NoError(t, h.AddLast(servicelist.Record{CatID: 10, URI: "http://a", Desc: strp("first")}))
	require.NoError(t, h.AddLast(servicelist.Record{CatID: 20, URI: "http://b", Desc: strp("second")}))
	require.NoError(t, h.Commit())
	h.Close()

	conn, err := net.Dial("udp", resp.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	announce := sdeproto.GetServiceDesc{Header: sdeproto.Header{Type: sdeproto.TypeGetServiceDesc, Seq: 3}}
	_, err = conn.Write(announce.Encode()[:sdeproto.HeaderSize])
	require.NoError(t, err)

	// Request positions out of order; the responder must reply in
	// ascending position order regardless.
	data := sdeproto.GetServiceDescData{
		Header:    sdeproto.Header{Type: sdeproto.TypeGetServiceDescData, Seq: 3},
		Count:     2,
		Positions: []byte{1, 0},
	}
	_, err = conn.Write(data.Encode())
	require.NoError(t, err)

	buf := make([]byte, 16*1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	hdr, ok := sdeproto.PeekHeader(buf[:n])
	require.True(t, ok)
	assert.Equal(t, sdeproto.TypeServiceDesc, hdr.Type)

	n, err = conn.Read(buf)
	require.NoError(t, err)
	reply, ok := sdeproto.DecodeServiceDescData(buf[:n])
	require.True(t, ok)
	assert.Equal(t, uint32(3), reply.Header.Seq)
	assert.NotEmpty(t, reply.Payload)

	var replied []byte
	tlv.All(reply.Payload, func(outer tlv.Chunk) bool {
		if outer.Type != sdeproto.TagDescription {
			return true
		}
		field, _, ok := tlv.Next(outer.Value, 0)
		if ok && field.Type == sdeproto.TagServicePos {
			replied = append(replied, field.Value[0])
		}
		return true
	})
	assert.Equal(t, []byte{0, 1}, replied)
}
