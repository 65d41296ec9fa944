package verbs

import (
	"errors"
	"io/fs"
	"os"
	"syscall"

	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/transport"
)

// Delete implements the DELETE verb (§4.9). Any accompanying body fd has
// already been closed by the dispatcher.
func Delete(ch *transport.Channel, target string) error {
	if _, err := os.Stat(target); err != nil {
		return mapDeleteStatError(ch, target, err)
	}

	// os.Remove dispatches to rmdir or unlink per the target's type, matching
	// §4.9's "directory uses rmdir, else unlink" rule.
	if err := os.Remove(target); err != nil {
		return mapDeleteError(ch, target, err)
	}

	return response.Plain(ch, transport.OKNoContent, target)
}

func mapDeleteStatError(ch *transport.Channel, target string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return response.ErrorBody(ch, transport.NotFound, target, "", "")
	}
	return mapDeleteError(ch, target, err)
}

func mapDeleteError(ch *transport.Channel, target string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return response.ErrorBody(ch, transport.NotFound, target, "", "")
	case errors.Is(err, syscall.ENOTDIR):
		// A non-directory intermediate component (§4.9): "missing or
		// non-directory intermediate" both resolve to NOT_FOUND.
		return response.ErrorBody(ch, transport.NotFound, target, "", "")
	case errors.Is(err, fs.ErrPermission):
		return response.ErrorBody(ch, transport.AccessDenied, target, "", "")
	default:
		return response.ErrorBody(ch, transport.InternalError, target, "", err.Error())
	}
}
