// Package lockengine implements the LOCK Engine (C7): the two-phase
// exchange with the front-end's lock coordinator and the advisory OS file
// lock that backs it (§4.5).
package lockengine

import (
	"encoding/binary"
	"encoding/xml"
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/transport"
	"github.com/couling/webdav-rap/internal/xmlio"
)

// Info is what an optional <lockinfo> body asked for (§4.5 step 2).
// IsNewLock is true when the body contains a <lockinfo> element and false
// when the body is absent or contains none; an empty <lockinfo/> root still
// marks a new lock, matching a client that hasn't bothered to state a scope
// or type, rather than a refresh.
type Info struct {
	Exclusive bool
	IsNewLock bool
}

// ParseLockInfo reads an optional <lockinfo> body. Exclusive dominates
// Shared if both a write/exclusive and a read/shared child appear,
// regardless of order.
func ParseLockInfo(r io.Reader) (Info, error) {
	if r == nil {
		return Info{}, nil
	}
	xr := xmlio.NewReader(r)

	var sawLockInfo, sawExclusive, sawShared bool
	for {
		tok, err := xr.Next()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "lockinfo":
			sawLockInfo = true
		case "exclusive", "write":
			sawExclusive = true
		case "shared", "read":
			sawShared = true
		}
	}

	return Info{
		Exclusive: sawExclusive,
		IsNewLock: sawLockInfo,
	}, nil
}

// Handle runs the full two-phase LOCK protocol for one request: an interim
// CONTINUE, preparing either a new-lock or a refresh interim message,
// sendRecv'ing it to the coordinator over ch, and emitting the final
// response (§4.5). owner is the authenticated user name for the lock body's
// <d:owner> (§4.3). scratch is the caller's reusable receive buffer.
func Handle(ch *transport.Channel, scratch *[]byte, target, owner, submittedToken string, hasToken bool, info Info) error {
	if err := ch.Send(transport.New(transport.Continue)); err != nil {
		return err
	}

	if info.IsNewLock {
		if hasToken {
			return response.ErrorBody(ch, transport.BadClientRequest, target, "lock-token-submitted", "")
		}
		return handleNewLock(ch, scratch, target, owner, info.Exclusive)
	}

	if !hasToken {
		return response.ErrorBody(ch, transport.BadClientRequest, target, "lock-token-submitted", "")
	}
	interim := prepareRefresh(target, submittedToken)
	reply, err := ch.SendRecv(interim, scratch)
	if err != nil {
		return err
	}
	return commit(ch, target, owner, false, reply)
}

func handleNewLock(ch *transport.Channel, scratch *[]byte, target, owner string, exclusive bool) error {
	flags := os.O_RDONLY
	if exclusive {
		flags = os.O_WRONLY | os.O_CREATE
	}
	f, err := os.OpenFile(target, flags, 0666)
	if err != nil {
		return mapOpenError(ch, target, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return response.ErrorBody(ch, transport.InternalError, target, "", err.Error())
	}
	if !st.Mode().IsRegular() {
		return response.ErrorBody(ch, transport.Conflict, target, "", "Refusing non-regular file")
	}

	lockType := syscall.LOCK_SH
	if exclusive {
		lockType = syscall.LOCK_EX
	}
	if err := syscall.Flock(int(f.Fd()), lockType|syscall.LOCK_NB); err != nil {
		return response.ErrorBody(ch, transport.Locked, target, "no-conflicting-lock", "")
	}

	interim := transport.New(transport.InterimRespondLock).WithFD(int(f.Fd()))
	interim.Params = make([][]byte, transport.MaxParams)
	interim.Params[transport.LockLocation] = nulString(target)
	interim.Params[transport.LockType] = lockTypeBytes(exclusive)

	reply, err := ch.SendRecv(interim, scratch)
	if err != nil {
		return err
	}
	// The advisory lock is released only when the coordinator closes its
	// (duplicated) copy of the fd; our own copy is closed unconditionally by
	// the deferred f.Close() above, per §4.5's ownership-transfer note.
	return commit(ch, target, owner, exclusive, reply)
}

func prepareRefresh(target, token string) transport.Message {
	msg := transport.New(transport.InterimRespondRelock)
	msg.Params = make([][]byte, transport.MaxParams)
	msg.Params[transport.LockLocation] = nulString(target)
	msg.Params[transport.LockToken] = nulString(token)
	return msg
}

func commit(ch *transport.Channel, target, owner string, exclusive bool, reply transport.Message) error {
	switch reply.ID {
	case transport.CompleteRequestLock, transport.CompleteRequestRelock:
		return response.LockBody(ch, response.LockInfo{
			Exclusive: exclusive,
			Owner:     owner,
			Root:      target,
			Token:     reply.Str(transport.LockToken),
			TimeoutS:  decodeTimeout(reply.Params[transport.LockTimeout]),
		})
	default:
		return response.ErrorBody(ch, reply.ID, target, "", reply.Str(transport.ErrorReason))
	}
}

func mapOpenError(ch *transport.Channel, target string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return response.ErrorBody(ch, transport.AccessDenied, target, "", "")
	case errors.Is(err, fs.ErrNotExist):
		return response.ErrorBody(ch, transport.NotFound, target, "", "")
	default:
		return response.ErrorBody(ch, transport.NotFound, target, "", err.Error())
	}
}

func lockTypeBytes(exclusive bool) []byte {
	b := make([]byte, 1)
	if exclusive {
		b[0] = 1
	}
	return b
}

func decodeTimeout(b []byte) int64 {
	if len(b) < 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func nulString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
