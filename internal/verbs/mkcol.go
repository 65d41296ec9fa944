package verbs

import (
	"errors"
	"os"
	"syscall"

	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/transport"
)

// Mkcol implements the MKCOL verb (§4.8). Any accompanying body fd has
// already been closed by the dispatcher before this is called.
func Mkcol(ch *transport.Channel, target string) error {
	err := os.Mkdir(target, 0777)
	if err == nil {
		return response.Plain(ch, transport.Created, target)
	}

	switch {
	case errors.Is(err, syscall.EACCES):
		return response.ErrorBody(ch, transport.AccessDenied, target, "", "")
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return response.ErrorBody(ch, transport.InsufficientStorage, target, "", "")
	default:
		// ENOENT, EEXIST, ENOTDIR, EPERM (§4.8).
		return response.ErrorBody(ch, transport.Conflict, target, "", "")
	}
}
