package verbs

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/couling/webdav-rap/internal/mimetype"
	"github.com/couling/webdav-rap/internal/xmlio"
)

var dirCollator = collate.New(language.Und)

// writeIndex emits an HTML table of dir's entries into w. Entries are sorted
// by locale-aware collation with a byte-wise tiebreaker, dotfiles are
// skipped entirely (the stricter rule GET applies, unlike PROPFIND's
// "." / ".." only skip — §4.6, §12), and each row reports type, a
// human-readable size, MIME type, and the modification time in local time.
// The time uses the fixed RFC 1123 layout; it does not follow the process
// locale.
func writeIndex(w *xmlio.Writer, dir *os.File, dirPath string, mimeReg *mimetype.Registry) {
	names, err := dir.Readdirnames(-1)
	if err != nil {
		names = nil
	}

	filtered := names[:0]
	for _, n := range names {
		if strings.HasPrefix(n, ".") {
			continue
		}
		filtered = append(filtered, n)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if c := dirCollator.CompareString(filtered[i], filtered[j]); c != 0 {
			return c < 0
		}
		return filtered[i] < filtered[j]
	})

	w.Raw("<html><body><table>")
	w.Raw("<tr><th>Type</th><th>Name</th><th>Size</th><th>Mime Type</th><th>Last Modified</th></tr>")

	for _, name := range filtered {
		writeRow(w, dirPath, name, mimeReg)
	}

	w.Raw("</table></body></html>")
}

func writeRow(w *xmlio.Writer, dirPath, name string, mimeReg *mimetype.Registry) {
	info, err := os.Lstat(dirPath + name)
	if err != nil {
		return
	}

	isDir := info.IsDir()
	href := name
	displayName := name
	if isDir {
		href += "/"
		displayName += "/"
	}

	typeCol := "file"
	if isDir {
		typeCol = "dir"
	}

	sizeCol := "-"
	mimeCol := "-"
	if info.Mode().IsRegular() {
		sizeCol = formatFileSize(info.Size())
		mimeCol = mimeReg.Find(name).Type
	} else if !isDir {
		sizeCol = "-"
	}

	w.Raw("<tr>")
	w.Element("td", typeCol)
	w.Open("td")
	w.OpenAttrs("a", [2]string{"href", xmlio.EncodePath(dirPath + href)})
	w.Text(displayName)
	w.Close("a")
	w.Close("td")
	w.Element("td", sizeCol)
	w.Element("td", mimeCol)
	w.Element("td", info.ModTime().Local().Format(time.RFC1123))
	w.Raw("</tr>")
}

// sizeSuffixes holds exactly nine distinct base-1024 suffixes; the original
// implementation's table repeated an entry, undercounting by one (§9, §12 —
// corrected here).
var sizeSuffixes = [...]string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}

// formatFileSize renders n with zero decimals at ≥100 of the current
// suffix's scale, one decimal at ≥10, two decimals below that, and the bare
// integer with a "B" suffix for n < 1024 (§4.6, §8 property 5).
func formatFileSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	suffix := 0
	for value >= 1024 && suffix < len(sizeSuffixes)-1 {
		value /= 1024
		suffix++
	}

	switch {
	case value >= 100:
		return fmt.Sprintf("%.0f %s", value, sizeSuffixes[suffix])
	case value >= 10:
		return fmt.Sprintf("%.1f %s", value, sizeSuffixes[suffix])
	default:
		return fmt.Sprintf("%.2f %s", value, sizeSuffixes[suffix])
	}
}
