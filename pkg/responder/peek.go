package responder

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/sdebeacon/sdebeacon/internal/sdeproto"
)

// peekRaw performs a non-destructive MSG_PEEK|MSG_TRUNC read of up to
// len(into) bytes from the next pending datagram, returning the true
// total size of that datagram (which may exceed len(into) -- MSG_TRUNC is
// what lets us learn the real size without consuming it) and whether a
// datagram was available without blocking.
func (r *Responder) peekRaw(into []byte) (total int, ok bool, err error) {
	rawConn, err := r.conn.SyscallConn()
	if err != nil {
		return 0, false, err
	}
	var size int
	var peekErr error
	var available bool
	ctrlErr := rawConn.Read(func(fd uintptr) bool {
		for {
			n, _, errno := unix.Recvfrom(int(fd), into, unix.MSG_PEEK|unix.MSG_TRUNC)
			switch errno {
			case 0:
				size = n
				available = true
				return true
			case unix.EINTR:
				// Transient signal interruption: not a "no packet"
				// condition by itself, retry immediately.
				continue
			case unix.EAGAIN:
				// Nothing pending right now; let the runtime poller wait
				// for readiness (or our read deadline) before retrying.
				return false
			default:
				peekErr = fmt.Errorf("responder: peek: %w", errno)
				return true
			}
		}
	})
	if ctrlErr != nil {
		return 0, false, ctrlErr
	}
	if peekErr != nil {
		return 0, false, peekErr
	}
	return size, available, nil
}

// peekHeaderAndSize peeks the common header and the total datagram size.
// ok is false when the datagram is shorter than the common header.
func (r *Responder) peekHeaderAndSize() (hdr sdeproto.Header, total int, ok bool, err error) {
	buf := make([]byte, sdeproto.HeaderSize)
	total, available, err := r.peekRaw(buf)
	if err != nil {
		return sdeproto.Header{}, 0, false, err
	}
	if !available {
		return sdeproto.Header{}, 0, false, timeoutSentinel{}
	}
	if total < sdeproto.HeaderSize {
		return sdeproto.Header{}, total, false, nil
	}
	hdr, _ = sdeproto.PeekHeader(buf)
	return hdr, total, true, nil
}

// peekGetServiceDescDataCount peeks far enough to read the count field of
// the pending GET_SERVICE_DESC_DATA packet.
func (r *Responder) peekGetServiceDescDataCount() (count uint32, ok bool, err error) {
	const need = sdeproto.HeaderSize + 4
	buf := make([]byte, need)
	total, available, err := r.peekRaw(buf)
	if err != nil {
		return 0, false, err
	}
	if !available || total < need {
		return 0, false, nil
	}
	count = uint32(buf[8])<<24 | uint32(buf[9])<<16 | uint32(buf[10])<<8 | uint32(buf[11])
	return count, true, nil
}

// discard destructively reads and drops the next pending datagram.
func (r *Responder) discard() error {
	buf := make([]byte, maxDatagram)
	_, _, err := r.conn.ReadFromUDP(buf)
	return err
}

// timeoutSentinel satisfies net.Error so Serve's timeout handling treats
// "nothing pending at peek time" identically to a ReadFromUDP deadline
// timeout: both mean "no packet, loop around and recheck ctx.Done()".
type timeoutSentinel struct{}

func (timeoutSentinel) Error() string   { return "responder: no datagram pending" }
func (timeoutSentinel) Timeout() bool   { return true }
func (timeoutSentinel) Temporary() bool { return true }
