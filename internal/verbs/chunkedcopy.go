package verbs

import (
	"errors"
	"io"
	"os"

	"github.com/avast/retry-go/v4"
)

const putChunkSize = 64 * 1024

var errShortWrite = errors.New("short write")

// copyChunked streams src into dst putChunkSize bytes at a time, retrying a
// single chunk write on transient failure before giving up; a short write is
// never retried since it signals the destination is full, not a transient
// hiccup. Used by both PUT's body copy and MOVE's cross-device fallback.
func copyChunked(dst *os.File, src io.Reader) error {
	buf := make([]byte, putChunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			werr := retry.Do(func() error {
				// os.File.Write reports an error alongside every short
				// write, so the partial count is checked before err.
				written, err := dst.Write(chunk)
				if written > 0 && written < len(chunk) {
					return errShortWrite
				}
				return err
			}, retry.Attempts(3), retry.RetryIf(func(err error) bool {
				return !errors.Is(err, errShortWrite)
			}))
			if werr != nil {
				return werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return rerr
		}
	}
}
