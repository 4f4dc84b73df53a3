// Package responder implements the SDE UDP protocol handler: a
// single-socket server that answers GET_METADATA and
// GET_SERVICE_DESC/GET_SERVICE_DESC_DATA requests from a fingerprint-cached
// response pipeline keyed on the service list's last-modification
// timestamp.
package responder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/sdebeacon/sdebeacon/internal/sdeproto"
	"github.com/sdebeacon/sdebeacon/pkg/servicelist"
)

// maxDatagram bounds the receive buffer; large enough for any realistic
// SDE exchange, which is itself bounded by the OS MTU.
const maxDatagram = 64 * 1024

// pollInterval is how often the receive loop wakes to re-check ctx.Done()
// even with no datagram pending. It stands in for the specification's
// signal-interrupted blocking recv: a short read deadline makes
// ReadFromUDP return control promptly instead of blocking forever.
const pollInterval = 250 * time.Millisecond

// Responder is the SDE protocol handler. One Responder owns one UDP
// socket for its entire lifetime.
type Responder struct {
	conn   *net.UDPConn
	list   *servicelist.List
	logger *logrus.Entry

	mu    sync.Mutex
	cache descCache
}

// New binds a UDP socket on addr (host:port, conventionally
// fmt.Sprintf(":%d", sdeproto.Port)) and returns a Responder serving list.
func New(addr string, list *servicelist.List, logger *logrus.Entry) (*Responder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("responder: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("responder: listen %q: %w", addr, err)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	setReceiveBufferSize(conn, logger)
	return &Responder{conn: conn, list: list, logger: logger.WithField("component", "sde.responder")}, nil
}

// setReceiveBufferSize raises SO_RCVBUF on the listening socket's file
// descriptor via golang.org/x/sys/unix, the same direct-fd-option style
// the teacher's raw CAN transports use to tune their sockets. Failure is
// logged and otherwise ignored -- the kernel default is still usable.
func setReceiveBufferSize(conn *net.UDPConn, logger *logrus.Entry) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		logger.WithError(err).Debug("could not obtain raw conn for SO_RCVBUF tuning")
		return
	}
	const wantBufBytes = 1 << 20
	err = rawConn.Control(func(fd uintptr) {
		if setErr := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, wantBufBytes); setErr != nil {
			logger.WithError(setErr).Debug("SO_RCVBUF not applied")
		}
	})
	if err != nil {
		logger.WithError(err).Debug("raw conn control failed")
	}
}

// Close releases the responder's socket.
func (r *Responder) Close() error {
	return r.conn.Close()
}

// Addr returns the responder's bound local address, useful when New was
// given an ephemeral port ("127.0.0.1:0").
func (r *Responder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Serve runs the responder's event loop until ctx is cancelled. It is the
// single-threaded event loop described in spec.md §4.3/§5: one blocking
// receive at a time, dispatched synchronously, with ctx.Done() checked at
// the top of every iteration and again whenever the receive times out
// with nothing pending.
func (r *Responder) Serve(ctx context.Context) error {
	r.logger.Info("sde responder listening")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sde responder stopping")
			return nil
		default:
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("responder: set read deadline: %w", err)
		}

		handled, err := r.serveOne()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// No packet within this poll window; treated identically
				// to an interrupted blocking recv -- loop around.
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.WithError(err).Warn("sde responder receive error")
			continue
		}
		_ = handled
	}
}

// serveOne executes one iteration of the response-building pipeline of
// spec.md §4.3: peek the next datagram's header and total size
// non-destructively, size-check it by type, and only then pull it off the
// socket with the sender's address for dispatch.
func (r *Responder) serveOne() (bool, error) {
	hdr, total, ok, err := r.peekHeaderAndSize()
	if err != nil {
		return false, err
	}
	if !ok {
		// Header shorter than common header size: discard and continue.
		return false, r.discard()
	}

	minSize, err := r.minSizeFor(hdr)
	if err != nil {
		return false, err
	}
	if minSize < 0 || total < minSize {
		// Unknown type, or declared/actual size mismatch: discard.
		return false, r.discard()
	}

	buf := make([]byte, total)
	n, sender, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		return false, err
	}
	buf = buf[:n]

	r.dispatch(hdr, buf, sender)
	return true, nil
}

// minSizeFor returns the minimum total packet size required for hdr's
// type, or -1 for an unknown type. GET_SERVICE_DESC_DATA's minimum
// depends on its count field, which requires peeking past the common
// header.
func (r *Responder) minSizeFor(hdr sdeproto.Header) (int, error) {
	if hdr.Type == sdeproto.TypeGetServiceDescData {
		count, ok, err := r.peekGetServiceDescDataCount()
		if err != nil {
			return 0, err
		}
		if !ok {
			return -1, nil
		}
		return sdeproto.MinSizeGetServiceDescData(count), nil
	}
	size, ok := sdeproto.FixedSizeForType(hdr.Type)
	if !ok {
		return -1, nil
	}
	return size, nil
}
