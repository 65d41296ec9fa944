package verbs

import (
	"errors"
	"os"
	"syscall"

	"github.com/sethvargo/go-password/password"

	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/transport"
)

// Move implements the MOVE verb (§4.10). An empty dst (a missing
// REQUEST_TARGET) is answered with BAD_CLIENT_REQUEST "Target not specified".
func Move(ch *transport.Channel, src, dst string) error {
	if dst == "" {
		return response.ErrorBody(ch, transport.BadClientRequest, src, "", "Target not specified")
	}

	err := os.Rename(src, dst)
	if err == nil {
		return response.Plain(ch, transport.OKNoContent, src)
	}

	if errors.Is(err, syscall.EXDEV) {
		if cerr := crossDeviceMove(src, dst); cerr != nil {
			return response.ErrorBody(ch, transport.InternalError, src, "", cerr.Error())
		}
		return response.Plain(ch, transport.OKNoContent, src)
	}

	return mapMoveError(ch, src, err)
}

// crossDeviceMove copies src to a same-directory temp file next to dst (so
// the final rename stays on one device), renames it into place, then
// removes src. The temp suffix comes from go-password rather than a
// hand-rolled counter to avoid collisions between concurrent sessions
// targeting the same directory.
func crossDeviceMove(src, dst string) error {
	suffix, err := password.Generate(12, 0, 0, true, true)
	if err != nil {
		return err
	}
	tmp := dst + ".rap-" + suffix

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	if err := copyChunked(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

func mapMoveError(ch *transport.Channel, src string, err error) error {
	switch {
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EPERM):
		return response.ErrorBody(ch, transport.AccessDenied, src, "", "")
	case errors.Is(err, syscall.EDQUOT):
		return response.ErrorBody(ch, transport.InsufficientStorage, src, "", "")
	default:
		return response.ErrorBody(ch, transport.Conflict, src, "", "")
	}
}
