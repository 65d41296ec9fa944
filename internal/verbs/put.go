package verbs

import (
	"errors"
	"os"

	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/transport"
)

// Put implements the PUT verb (§4.7): open/create/truncate the target, send
// an interim CONTINUE, then copy the request body into it in fixed-size
// chunks. A short write is reported as INSUFFICIENT_STORAGE rather than
// INTERNAL_ERROR, since it almost always means the filesystem is full.
func Put(ch *transport.Channel, target string, bodyFD int) error {
	body := os.NewFile(uintptr(bodyFD), "put-body")
	defer body.Close()

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return mapPutOpenError(ch, target, err)
	}
	defer f.Close()

	if err := ch.Send(transport.New(transport.Continue)); err != nil {
		return err
	}

	if err := copyChunked(f, body); err != nil {
		if errors.Is(err, errShortWrite) {
			return response.ErrorBody(ch, transport.InsufficientStorage, target, "", "")
		}
		return response.ErrorBody(ch, transport.InternalError, target, "", err.Error())
	}

	return response.Plain(ch, transport.Created, target)
}

func mapPutOpenError(ch *transport.Channel, target string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return response.ErrorBody(ch, transport.AccessDenied, target, "", "")
	}
	// §4.7: everything else, including ENOENT (missing parent directory),
	// maps to CONFLICT rather than NOT_FOUND.
	return response.ErrorBody(ch, transport.Conflict, target, "", "")
}
