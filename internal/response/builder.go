// Package response builds pipe-backed XML response bodies: error bodies,
// lock bodies, and (via internal/propfind) multistatus bodies, all streamed
// through the write end of a pipe whose read end accompanies the response
// Message (§4.3).
package response

import (
	"fmt"
	"os"
	"time"

	"github.com/couling/webdav-rap/internal/mimetype"
	"github.com/couling/webdav-rap/internal/transport"
	"github.com/couling/webdav-rap/internal/xmlio"
)

// Pipe creates an OS pipe and returns both ends; the caller sends readEnd's
// fd in a response Message and keeps writeEnd open until the body is fully
// written (invariant 3, §3).
func Pipe() (readEnd, writeEnd *os.File, err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create response pipe: %w", err)
	}
	return r, w, nil
}

// Body starts a pipe-backed response: it creates the pipe, sends id with the
// read end, a bound modification date, a media type and the canonical
// location, and returns an xmlio.Writer over the write end for the handler
// to stream into, together with the pipe's write end. When done the caller
// must Flush the writer and then close the returned write end.
func Body(ch *transport.Channel, id transport.MessageID, date time.Time, mediaType, location string) (*xmlio.Writer, *os.File, error) {
	r, w, err := Pipe()
	if err != nil {
		return nil, nil, err
	}

	msg := transport.New(id).WithFD(int(r.Fd()))
	msg.Params = make([][]byte, transport.MaxParams)
	msg.Params[transport.RespDate] = binaryTime(date)
	msg.Params[transport.RespMime] = nulString(mediaType)
	msg.Params[transport.RespLocation] = nulString(location)

	if err := ch.Send(msg); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, nil, err
	}
	_ = r.Close() // the front-end now owns the read end

	return xmlio.NewWriter(w), w, nil
}

// Plain sends a terminal, bodiless response (CREATED, OK_NO_CONTENT,
// CONFLICT, ...) carrying only its canonical location.
func Plain(ch *transport.Channel, id transport.MessageID, location string) error {
	msg := transport.New(id)
	msg.Params = make([][]byte, transport.MaxParams)
	msg.Params[transport.RespLocation] = nulString(location)
	return ch.Send(msg)
}

// ErrorBody sends a terminal error response (AccessDenied, NotFound, ...)
// carrying an optional <d:error> XML body per §4.3: a WebDAV condition
// element when condition != "", and/or an <x:text-error> when reason != "".
// location is the canonical path the handler was operating on (§3 invariant
// 4); callers pass "" when the target could not be resolved at all. With
// both condition and reason empty this degrades to Plain.
func ErrorBody(ch *transport.Channel, id transport.MessageID, location, condition, reason string) error {
	if condition == "" && reason == "" {
		return Plain(ch, id, location)
	}

	w, f, err := Body(ch, id, time.Time{}, mimetype.XML, location)
	if err != nil {
		return err
	}
	w.Prolog().ErrorOpen()
	if condition != "" {
		w.Open("d:" + condition).HRef(location).Close("d:" + condition)
	}
	if reason != "" {
		w.Open("x:text-error")
		w.HRef(location)
		w.Open("x:text").Text(reason).Close("x:text")
		w.Close("x:text-error")
	}
	w.Close("d:error")
	if werr := w.Flush(); werr != nil {
		_ = f.Close()
		return werr
	}
	return f.Close()
}

// LockInfo carries the fields LockBody writes into the lock response.
type LockInfo struct {
	Exclusive bool
	Owner     string
	Root      string
	Token     string
	TimeoutS  int64
}

// LockBody emits the <d:prop><d:lockdiscovery>... response per §4.3.
func LockBody(ch *transport.Channel, info LockInfo) error {
	w, f, err := Body(ch, transport.OK, time.Time{}, mimetype.XML, info.Root)
	if err != nil {
		return err
	}
	w.Prolog()
	w.OpenAttrs("d:prop", [2]string{"xmlns:d", xmlio.Namespaces.DAV})
	w.Open("d:lockdiscovery")
	w.Open("d:activelock")

	w.Open("d:locktype")
	if info.Exclusive {
		w.Empty("d:write")
	} else {
		w.Empty("d:read")
	}
	w.Close("d:locktype")

	w.Open("d:lockscope")
	if info.Exclusive {
		w.Empty("d:exclusive")
	} else {
		w.Empty("d:shared")
	}
	w.Close("d:lockscope")

	w.Element("d:depth", "infinity")
	w.Element("d:owner", info.Owner)

	w.Open("d:lockroot")
	w.HRef(info.Root)
	w.Close("d:lockroot")

	w.Open("d:locktoken")
	w.Open("d:href").Text("urn:uuid:" + info.Token).Close("d:href")
	w.Close("d:locktoken")

	w.Element("d:timeout", fmt.Sprintf("Second-%d", info.TimeoutS))

	w.Close("d:activelock")
	w.Close("d:lockdiscovery")
	w.Close("d:prop")

	if werr := w.Flush(); werr != nil {
		_ = f.Close()
		return werr
	}
	return f.Close()
}

func nulString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

func binaryTime(t time.Time) []byte {
	b := make([]byte, 8)
	sec := t.Unix()
	for i := 0; i < 8; i++ {
		b[i] = byte(sec >> (8 * i))
	}
	return b
}
