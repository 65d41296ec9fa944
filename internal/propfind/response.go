package propfind

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/couling/webdav-rap/internal/mimetype"
	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/transport"
	"github.com/couling/webdav-rap/internal/xmlio"
)

// Respond stats target and writes a MULTISTATUS response (or an error
// response) per §4.4. depth0 is true when the request's Depth header was
// literally "0" — it suppresses the directory-children expansion.
func Respond(ch *transport.Channel, mimeReg *mimetype.Registry, target string, depth0 bool, props PropertySet) error {
	info, err := os.Stat(target)
	if err != nil {
		return errorFromStat(ch, target, err)
	}

	location := canonicalLocation(target, info.IsDir())

	w, f, err := response.Body(ch, transport.Multistatus, time.Time{}, mimetype.XML, location)
	if err != nil {
		return err
	}
	w.Prolog().MultistatusOpen()

	emitResponse(w, target, location, info, mimeReg, props)

	if !depth0 && info.IsDir() {
		emitChildren(w, target, mimeReg, props)
	}

	w.Close("d:multistatus")
	if werr := w.Flush(); werr != nil {
		_ = f.Close()
		return werr
	}
	return f.Close()
}

func errorFromStat(ch *transport.Channel, target string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return response.ErrorBody(ch, transport.NotFound, target, "", "")
	}
	if errors.Is(err, fs.ErrPermission) {
		return response.ErrorBody(ch, transport.AccessDenied, target, "", "")
	}
	return response.ErrorBody(ch, transport.NotFound, target, "", err.Error())
}

func canonicalLocation(path string, isDir bool) string {
	if isDir && !strings.HasSuffix(path, "/") {
		return path + "/"
	}
	return path
}

func emitChildren(w *xmlio.Writer, dir string, mimeReg *mimetype.Registry, props PropertySet) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return // opendir failure: depth-1 silently degrades to depth-0 (§4.4)
	}
	for _, e := range entries {
		name := e.Name()
		if isDotOrDotDot(name) {
			continue
		}
		childPath := strings.TrimSuffix(dir, "/") + "/" + name
		info, err := e.Info()
		if err != nil {
			continue
		}
		loc := canonicalLocation(childPath, info.IsDir())
		emitResponse(w, childPath, loc, info, mimeReg, props)
	}
}

// isDotOrDotDot implements PROPFIND's lenient skip rule (§4.4): only "." and
// ".." are filtered, unlike GET's directory listing which skips every
// dotfile (§4.6, §12).
func isDotOrDotDot(name string) bool {
	return name == "." || name == ".."
}

func emitResponse(w *xmlio.Writer, path, href string, info os.FileInfo, mimeReg *mimetype.Registry, props PropertySet) {
	w.Open("d:response")
	w.HRef(href)
	w.Open("d:propstat")
	w.Open("d:prop")

	if props.CreationDate {
		w.Element("d:creationdate", rfc1123(ctime(info)))
	}
	if props.DisplayName {
		w.Element("d:displayname", displayName(path))
	}
	if props.GetETag {
		w.Element("d:getetag", fmt.Sprintf(`"%d-%d"`, info.Size(), ctime(info).Unix()))
	}
	// getlastmodified reuses ctime rather than mtime, a preserved quirk
	// (§9, §12).
	if props.GetLastModified {
		w.Element("d:getlastmodified", rfc1123(ctime(info)))
	}
	if props.ResourceType {
		if info.IsDir() {
			w.Open("d:resourcetype").Empty("d:collection").Close("d:resourcetype")
		} else {
			w.Empty("d:resourcetype")
		}
	}
	if info.IsDir() {
		if props.QuotaAvailable || props.QuotaUsedBytes {
			if avail, used, ok := quota(path); ok {
				if props.QuotaAvailable {
					w.Element("d:quota-available-bytes", fmt.Sprintf("%d", avail))
				}
				if props.QuotaUsedBytes {
					w.Element("d:quota-used-bytes", fmt.Sprintf("%d", used))
				}
			}
			// statvfs failure: silently omit both properties (§4.4, §9).
		}
	} else {
		if props.GetContentLength {
			w.Element("d:getcontentlength", fmt.Sprintf("%d", info.Size()))
		}
		if props.GetContentType {
			w.Element("d:getcontenttype", mimeReg.Find(path).Type)
		}
	}
	if props.Win32FileAttribute {
		w.OpenAttrs("z:Win32FileAttributes").Text(win32Attributes(path, info.IsDir())).Close("z:Win32FileAttributes")
	}

	w.Close("d:prop")
	w.Element("d:status", "HTTP/1.1 200 OK")
	w.Close("d:propstat")
	w.Close("d:response")
}

func displayName(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func rfc1123(t time.Time) string {
	return t.UTC().Format(time.RFC1123)
}

// ctime extracts the inode change time from the platform-specific Sys()
// payload; it falls back to ModTime when unavailable.
func ctime(info os.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
	}
	return info.ModTime()
}

func quota(dirPath string) (available, used uint64, ok bool) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dirPath, &st); err != nil {
		return 0, 0, false
	}
	bsize := uint64(st.Bsize)
	available = st.Bavail * bsize
	used = (st.Blocks - st.Bfree) * bsize
	return available, used, true
}

// win32Attributes reproduces the original's literal 8-hex-digit constants
// (§12): directories beginning with '.' are "hidden" (0x12), others 0x10;
// files follow the same +0x02 hidden bit pattern at 0x22/0x20.
func win32Attributes(path string, isDir bool) string {
	hidden := strings.HasPrefix(displayName(path), ".")
	switch {
	case isDir && hidden:
		return "00000012"
	case isDir:
		return "00000010"
	case hidden:
		return "00000022"
	default:
		return "00000020"
	}
}
