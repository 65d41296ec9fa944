// Package dispatcher implements the Main Dispatcher (C9): the pre-auth loop
// followed by the authenticated verb loop (§4.13), a top-level switch over
// the control channel's MessageID rather than an http.Request method
// string.
package dispatcher

import (
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/couling/webdav-rap/internal/auth"
	"github.com/couling/webdav-rap/internal/lockengine"
	"github.com/couling/webdav-rap/internal/mimetype"
	"github.com/couling/webdav-rap/internal/propfind"
	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/session"
	"github.com/couling/webdav-rap/internal/transport"
	"github.com/couling/webdav-rap/internal/verbs"
)

// Dispatcher owns the control channel for the lifetime of one authenticated
// session and drives the two-phase loop described in §4.13.
type Dispatcher struct {
	ch      *transport.Channel
	mimeReg *mimetype.Registry
	authr   *auth.Authenticator
	state   *session.State
	log     *slog.Logger
	scratch []byte
}

// New builds a Dispatcher. mimeReg must already be loaded; authr must be
// freshly constructed and not yet logged in.
func New(ch *transport.Channel, mimeReg *mimetype.Registry, authr *auth.Authenticator, log *slog.Logger) *Dispatcher {
	return &Dispatcher{ch: ch, mimeReg: mimeReg, authr: authr, state: session.New(), log: log}
}

// Run executes the pre-auth loop then the verb loop, returning the process
// exit code: 1 on transport failure, 0 on clean shutdown (§4.13, §6).
func (d *Dispatcher) Run() int {
	authenticated, err := d.preAuthLoop()
	if err != nil {
		d.log.Error("pre-auth loop failed", "error", err)
		return 1
	}
	if !authenticated {
		return 0 // peer closed before ever authenticating
	}

	if err := d.verbLoop(); err != nil {
		d.log.Error("verb loop failed", "error", err)
		return 1
	}
	return 0
}

// preAuthLoop accepts only AUTHENTICATE messages until one succeeds, or the
// peer disconnects. Any other message kind yields INTERNAL_ERROR and the
// loop continues (§4.13, §8 scenario S6).
func (d *Dispatcher) preAuthLoop() (bool, error) {
	for {
		msg, outcome, err := d.ch.Recv(&d.scratch)
		if err != nil {
			return false, err
		}
		if outcome == transport.Closed {
			return false, nil
		}

		if msg.ID != transport.Authenticate {
			closeFD(msg.FD)
			if err := response.Plain(d.ch, transport.InternalError, ""); err != nil {
				return false, err
			}
			continue
		}

		ok, err := d.handleAuthenticate(msg)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
}

func (d *Dispatcher) handleAuthenticate(msg transport.Message) (bool, error) {
	req := auth.Request{
		User:     msg.Str(transport.AuthUser),
		Password: msg.Str(transport.AuthPassword),
		RHost:    msg.Str(transport.AuthRhost),
	}

	result, err := d.authr.Login(req)
	if err != nil {
		d.log.Warn("authentication failed", "user", req.User, "error", err)
		return false, response.Plain(d.ch, transport.AuthFailed, "")
	}

	d.state.Authenticate(result.CanonicalUser)
	if err := response.Plain(d.ch, transport.OK, ""); err != nil {
		return false, err
	}
	return true, nil
}

// verbLoop dispatches every subsequent message by mID until a transport
// error or orderly shutdown (§4.13). A second AUTHENTICATE is answered with
// INTERNAL_ERROR by dispatch without attempting another login (§8
// invariant 3).
func (d *Dispatcher) verbLoop() error {
	for {
		msg, outcome, err := d.ch.Recv(&d.scratch)
		if err != nil {
			return err
		}
		if outcome == transport.Closed {
			return nil
		}
		if err := d.dispatch(msg); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) dispatch(msg transport.Message) error {
	switch msg.ID {
	case transport.Authenticate:
		closeFD(msg.FD)
		return response.Plain(d.ch, transport.InternalError, "")
	case transport.Get:
		return verbs.Get(d.ch, d.mimeReg, msg.Str(transport.ReqFile))
	case transport.Put:
		return verbs.Put(d.ch, msg.Str(transport.ReqFile), msg.FD)
	case transport.Mkcol:
		closeFD(msg.FD)
		return verbs.Mkcol(d.ch, msg.Str(transport.ReqFile))
	case transport.Delete:
		closeFD(msg.FD)
		return verbs.Delete(d.ch, msg.Str(transport.ReqFile))
	case transport.Move:
		closeFD(msg.FD)
		return verbs.Move(d.ch, msg.Str(transport.ReqFile), msg.Str(transport.ReqTarget))
	case transport.Copy:
		closeFD(msg.FD)
		return verbs.Copy(d.ch, msg.Str(transport.ReqFile))
	case transport.Propfind:
		return d.dispatchPropfind(msg)
	case transport.Proppatch:
		return d.dispatchProppatch(msg)
	case transport.Lock:
		return d.dispatchLock(msg)
	default:
		closeFD(msg.FD)
		return response.Plain(d.ch, transport.InternalError, "")
	}
}

func (d *Dispatcher) dispatchPropfind(msg transport.Message) error {
	body := adopt(msg.FD)
	r := bodyReader(body)

	if body != nil {
		if err := d.ch.Send(transport.New(transport.Continue)); err != nil {
			_ = body.Close()
			return err
		}
	}

	props, err := propfind.ParseRequest(r)
	if body != nil {
		_ = body.Close()
	}
	if err != nil {
		return response.ErrorBody(d.ch, transport.InternalError, msg.Str(transport.ReqFile), "", err.Error())
	}

	depth0 := msg.Str(transport.ReqDepth) == "0"
	return propfind.Respond(d.ch, d.mimeReg, msg.Str(transport.ReqFile), depth0, props)
}

// dispatchProppatch drains the request body and replies as if a depth-1
// PROPFIND-all had succeeded (§4.11, §9): this worker never stores custom
// property values, but it still honors the 100-continue/pipe contract for
// the body it discards.
func (d *Dispatcher) dispatchProppatch(msg transport.Message) error {
	body := adopt(msg.FD)
	r := bodyReader(body)

	if body != nil {
		if err := d.ch.Send(transport.New(transport.Continue)); err != nil {
			_ = body.Close()
			return err
		}
	}

	if r != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	if body != nil {
		_ = body.Close()
	}

	return verbs.Proppatch(d.ch, d.mimeReg, msg.Str(transport.ReqFile))
}

func (d *Dispatcher) dispatchLock(msg transport.Message) error {
	body := adopt(msg.FD)
	r := bodyReader(body)

	info, err := lockengine.ParseLockInfo(r)
	if body != nil {
		_ = body.Close()
	}
	if err != nil {
		return response.ErrorBody(d.ch, transport.InternalError, msg.Str(transport.ReqFile), "", err.Error())
	}

	token := msg.Str(transport.ReqLock)
	hasToken := msg.HasParam(transport.ReqLock) && token != ""
	return lockengine.Handle(d.ch, &d.scratch, msg.Str(transport.ReqFile), d.state.User(), token, hasToken, info)
}

func adopt(fd int) *os.File {
	if fd == transport.NoFD {
		return nil
	}
	return os.NewFile(uintptr(fd), "request-body")
}

// bodyReader returns f as an io.Reader, or a true nil interface when f is
// nil — passing a typed-nil *os.File through an io.Reader parameter would
// not compare equal to nil on the receiving end.
func bodyReader(f *os.File) io.Reader {
	if f == nil {
		return nil
	}
	return f
}

func closeFD(fd int) {
	if fd != transport.NoFD {
		_ = syscall.Close(fd)
	}
}
