// Command sdeclient is an interactive diagnostic client for the SDE
// protocol: it sends GET_METADATA or GET_SERVICE_DESC requests and prints
// the decoded reply. Unlike the original tool this specification is
// drawn from, it always sends the announce-declared size for its data
// packet, not the size of a pointer (see spec.md §9).
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sdebeacon/sdebeacon/internal/sdeproto"
	"github.com/sdebeacon/sdebeacon/internal/tlv"
)

var defaultServerAddr = fmt.Sprintf("127.0.0.1:%d", sdeproto.Port)

func main() {
	log.SetLevel(log.InfoLevel)

	server := flag.String("s", defaultServerAddr, "SDE server address, host:port")
	mode := flag.String("m", "metadata", "request mode: metadata, or a comma-separated list of positions e.g. '0,2'")
	seq := flag.Uint("seq", 1, "sequence number to send")
	timeout := flag.Duration("timeout", 2*time.Second, "reply timeout")
	flag.Parse()

	conn, err := net.Dial("udp", *server)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to server")
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(*timeout)); err != nil {
		log.WithError(err).Fatal("failed to set deadline")
	}

	if *mode == "metadata" {
		if err := requestMetadata(conn, uint32(*seq)); err != nil {
			log.WithError(err).Fatal("metadata request failed")
		}
		return
	}

	positions, err := parsePositions(*mode)
	if err != nil {
		log.WithError(err).Fatal("invalid -m positions")
	}
	if err := requestServiceDesc(conn, uint32(*seq), positions); err != nil {
		log.WithError(err).Fatal("service description request failed")
	}
}

func parsePositions(s string) ([]byte, error) {
	parts := strings.Split(s, ",")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 0xFF {
			return nil, fmt.Errorf("bad position %q", p)
		}
		out = append(out, byte(n))
	}
	return out, nil
}

func requestMetadata(conn net.Conn, seq uint32) error {
	announce := sdeproto.Metadata{Header: sdeproto.Header{Type: sdeproto.TypeGetMetadata, Seq: seq}}
	if _, err := conn.Write(announce.Encode()[:sdeproto.HeaderSize]); err != nil {
		return err
	}

	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read METADATA announce: %w", err)
	}
	announceHdr, ok := sdeproto.PeekHeader(buf[:n])
	if !ok || announceHdr.Type != sdeproto.TypeMetadata || announceHdr.Seq != seq {
		return fmt.Errorf("unexpected announce reply")
	}
	count := binary.BigEndian.Uint32(buf[sdeproto.HeaderSize : sdeproto.HeaderSize+4])

	n, err = conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read METADATA_DATA: %w", err)
	}
	data, ok := sdeproto.DecodeMetadataData(buf[:n])
	if !ok || data.Header.Seq != seq {
		return fmt.Errorf("malformed METADATA_DATA reply")
	}

	fmt.Printf("metadata: count=%d\n", count)
	for i, ts := range data.Timestamps {
		fmt.Printf("  [%d] mod_time=%d\n", i, ts)
	}
	return nil
}

func requestServiceDesc(conn net.Conn, seq uint32, positions []byte) error {
	announce := sdeproto.GetServiceDesc{Header: sdeproto.Header{Type: sdeproto.TypeGetServiceDesc, Seq: seq}}
	if _, err := conn.Write(announce.Encode()[:sdeproto.HeaderSize]); err != nil {
		return err
	}
	data := sdeproto.GetServiceDescData{
		Header:    sdeproto.Header{Type: sdeproto.TypeGetServiceDescData, Seq: seq},
		Count:     uint32(len(positions)),
		Positions: positions,
	}
	if _, err := conn.Write(data.Encode()); err != nil {
		return err
	}

	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read SERVICE_DESC announce: %w", err)
	}
	announceHdr, ok := sdeproto.PeekHeader(buf[:n])
	if !ok || announceHdr.Type != sdeproto.TypeServiceDesc || announceHdr.Seq != seq {
		return fmt.Errorf("unexpected announce reply")
	}

	n, err = conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read SERVICE_DESC_DATA: %w", err)
	}
	reply, ok := sdeproto.DecodeServiceDescData(buf[:n])
	if !ok || reply.Header.Seq != seq {
		return fmt.Errorf("malformed SERVICE_DESC_DATA reply")
	}

	tlv.All(reply.Payload, func(outer tlv.Chunk) bool {
		if outer.Type != sdeproto.TagDescription {
			return true
		}
		fmt.Println("service:")
		tlv.All(outer.Value, func(field tlv.Chunk) bool {
			printField(field)
			return true
		})
		return true
	})
	return nil
}

func printField(field tlv.Chunk) {
	switch field.Type {
	case sdeproto.TagServicePos:
		fmt.Printf("  position: %d\n", field.Value[0])
	case sdeproto.TagServiceTS:
		fmt.Printf("  mod_time: %d\n", binary.BigEndian.Uint64(field.Value))
	case sdeproto.TagServiceCatID:
		fmt.Printf("  cat_id: %d\n", binary.BigEndian.Uint32(field.Value))
	case sdeproto.TagServiceShortDesc:
		fmt.Printf("  desc: %s\n", field.Value)
	case sdeproto.TagServiceLongDesc:
		fmt.Printf("  long_desc: %s\n", field.Value)
	case sdeproto.TagServiceURI:
		fmt.Printf("  uri: %s\n", field.Value)
	}
}

var _ = os.Stdout
