package verbs

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/couling/webdav-rap/internal/mimetype"
	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/transport"
)

// Get implements C8's GET verb (§4.6): a regular file streams its own fd
// directly as the body; a directory streams a generated HTML index through a
// pipe instead.
func Get(ch *transport.Channel, mimeReg *mimetype.Registry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return mapOpenError(ch, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return response.ErrorBody(ch, transport.InternalError, path, "", err.Error())
	}

	if info.IsDir() {
		return getDirectory(ch, f, path, mimeReg)
	}
	return getFile(ch, f, path, info, mimeReg)
}

func getFile(ch *transport.Channel, f *os.File, path string, info os.FileInfo, mimeReg *mimetype.Registry) error {
	msg := transport.New(transport.OK).WithFD(int(f.Fd()))
	msg.Params = make([][]byte, transport.MaxParams)
	msg.Params[transport.RespDate] = encodeTime(info.ModTime())
	msg.Params[transport.RespMime] = nulString(mimeReg.Find(path).Type)
	msg.Params[transport.RespLocation] = nulString(path)

	err := ch.Send(msg)
	_ = f.Close() // the front-end's dup'd copy keeps the data available
	return err
}

func getDirectory(ch *transport.Channel, dir *os.File, path string, mimeReg *mimetype.Registry) error {
	defer dir.Close()

	location := path
	if location == "" || location[len(location)-1] != '/' {
		location += "/"
	}

	w, body, err := response.Body(ch, transport.OK, time.Time{}, "text/html", location)
	if err != nil {
		return err
	}

	writeIndex(w, dir, location, mimeReg)

	if werr := w.Flush(); werr != nil {
		_ = body.Close()
		return werr
	}
	return body.Close()
}

func mapOpenError(ch *transport.Channel, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return response.ErrorBody(ch, transport.AccessDenied, path, "", "")
	case errors.Is(err, fs.ErrNotExist):
		return response.ErrorBody(ch, transport.NotFound, path, "", "")
	default:
		return response.ErrorBody(ch, transport.NotFound, path, "", err.Error())
	}
}

func encodeTime(t time.Time) []byte {
	b := make([]byte, 8)
	sec := t.Unix()
	for i := 0; i < 8; i++ {
		b[i] = byte(sec >> (8 * i))
	}
	return b
}

func nulString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
