package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/google/uuid"
)

// wire layout per frame:
//   mID byte | hasFD byte | paramCount byte | (paramLen uint32 | paramBytes)*
// Lengths are little-endian to match the host's native byte order; RAP and
// its front-end always run on the same machine.

const headerLen = 3 // mID + hasFD + paramCount

// Channel frames Messages over a Unix domain socket, passing at most one
// descriptor per frame via SCM_RIGHTS ancillary data.
type Channel struct {
	conn *net.UnixConn
	log  *slog.Logger
}

// NewChannel wraps an already-connected Unix socket (typically inherited as
// a specific fd from the process that spawned this worker).
func NewChannel(conn *net.UnixConn, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{conn: conn, log: log}
}

// ChannelFromFD adopts an inherited file descriptor as the control channel.
func ChannelFromFD(fd int, log *slog.Logger) (*Channel, error) {
	f := os.NewFile(uintptr(fd), "control-channel")
	c, err := net.FileConn(f)
	_ = f.Close() // FileConn dup'd the fd; release our copy
	if err != nil {
		return nil, fmt.Errorf("adopt control channel fd %d: %w", fd, err)
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		_ = c.Close()
		return nil, fmt.Errorf("control channel fd %d is not a unix socket", fd)
	}
	return NewChannel(uc, log), nil
}

// Outcome classifies the result of a transport-level operation per §4.1:
// positive byte counts collapse to Transferred, zero to Closed (orderly
// shutdown), and transport errors surface through the returned error instead
// of a negative sentinel — idiomatic Go prefers error values to magic ints.
type Outcome int

const (
	Transferred Outcome = iota
	Closed
)

// ErrTransport wraps any I/O failure on the control channel; callers treat
// it as fatal and terminate the outer loop (§7 "Transport" error kind).
var ErrTransport = errors.New("transport error")

// Send marshals and writes msg, including ancillary fd data when msg.FD is
// set. Send never closes msg.FD; ownership transfer is the caller's
// responsibility once Send returns successfully (invariant 3, §3).
func (c *Channel) Send(msg Message) error {
	if len(msg.Params) > MaxParams {
		return fmt.Errorf("%w: %d params exceeds cap %d", ErrTransport, len(msg.Params), MaxParams)
	}

	buf := make([]byte, 0, headerLen+64)
	hasFD := byte(0)
	if msg.FD != NoFD {
		hasFD = 1
	}
	buf = append(buf, byte(msg.ID), hasFD, byte(len(msg.Params)))
	for _, p := range msg.Params {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, p...)
	}

	var oob []byte
	if msg.FD != NoFD {
		oob = unixRights(msg.FD)
	}

	n, oobn, err := c.conn.WriteMsgUnix(buf, oob, nil)
	if err != nil {
		return fmt.Errorf("%w: send %s: %w", ErrTransport, msg.ID, err)
	}
	if n != len(buf) || oobn != len(oob) {
		return fmt.Errorf("%w: send %s: short write", ErrTransport, msg.ID)
	}
	c.log.Debug("sent message", "mid", msg.ID.String(), "trace", shortTrace())
	return nil
}

// Recv reads the next frame into scratch (resizing it if needed) and
// returns a Message whose Params are slice views into scratch — no copy,
// matching §4.1. The control channel is a SOCK_SEQPACKET socket, so the
// sender's single WriteMsgUnix call (see Send) is delivered as exactly one
// datagram, preserving both the frame boundary and the ancillary fd data;
// one ReadMsgUnix is therefore sufficient to receive a whole frame. The
// caller must not reuse scratch until done with the returned Message.
func (c *Channel) Recv(scratch *[]byte) (Message, Outcome, error) {
	if cap(*scratch) < 65536 {
		*scratch = make([]byte, 65536)
	}
	buf := (*scratch)[:cap(*scratch)]
	oob := make([]byte, unixRightsBufSize(1))

	n, oobn, flags, _, err := c.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, Closed, nil
		}
		return Message{}, Closed, fmt.Errorf("%w: recv: %w", ErrTransport, err)
	}
	if n == 0 {
		return Message{}, Closed, nil
	}
	if flags&msgTrunc != 0 {
		return Message{}, Closed, fmt.Errorf("%w: frame exceeded scratch buffer", ErrTransport)
	}
	body := buf[:n]
	if len(body) < headerLen {
		return Message{}, Closed, fmt.Errorf("%w: truncated header", ErrTransport)
	}

	msg := Message{ID: MessageID(body[0]), FD: NoFD}
	hasFD := body[1] != 0
	count := int(body[2])
	off := headerLen

	if hasFD {
		fd, ok := parseUnixRights(oob[:oobn])
		if !ok {
			return Message{}, Closed, fmt.Errorf("%w: hasFD set but no ancillary fd", ErrTransport)
		}
		msg.FD = fd
	}

	if count > 0 {
		msg.Params = make([][]byte, 0, count)
		for i := 0; i < count; i++ {
			if off+4 > len(body) {
				return Message{}, Closed, fmt.Errorf("%w: truncated param length", ErrTransport)
			}
			plen := int(binary.LittleEndian.Uint32(body[off : off+4]))
			off += 4
			if plen < 0 || off+plen > len(body) {
				return Message{}, Closed, fmt.Errorf("%w: truncated param body", ErrTransport)
			}
			msg.Params = append(msg.Params, body[off:off+plen])
			off += plen
		}
	}

	c.log.Debug("received message", "mid", msg.ID.String(), "trace", shortTrace())
	return msg, Transferred, nil
}

// SendRecv sends an interim message and blocks for the reply — used
// exclusively by the LOCK engine's two-phase exchange with the coordinator
// (§4.5, §9 "two-phase LOCK as message-passing").
func (c *Channel) SendRecv(msg Message, scratch *[]byte) (Message, error) {
	if err := c.Send(msg); err != nil {
		return Message{}, err
	}
	reply, outcome, err := c.Recv(scratch)
	if err != nil {
		return Message{}, err
	}
	if outcome == Closed {
		return Message{}, fmt.Errorf("%w: peer closed during sendRecv", ErrTransport)
	}
	return reply, nil
}

// Close releases the underlying socket.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// shortTrace returns a short correlation id for one log line; callers that
// need a stable per-request id generate their own uuid.New() once and thread
// it through, this is only for the low-level frame trace.
func shortTrace() string {
	return uuid.New().String()[:8]
}
