// Package mimetype loads an extension-to-media-type mapping from a
// mime.types-style file and serves O(log n) lookups against it.
package mimetype

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Octet is the sentinel returned for an unrecognized or absent extension.
const Octet = "application/octet-stream"

// XML is the sentinel media type reused for every XML response body (§4.2).
const XML = "application/xml; charset=utf-8"

// Entry is one extension -> media-type mapping.
type Entry struct {
	Extension string
	Type      string
}

// TypeStringSize is len(Type)+1, the NUL-terminated wire size used by
// invariant 4 in §8 (MIME round-trip).
func (e Entry) TypeStringSize() int {
	return len(e.Type) + 1
}

// Registry is a read-only-after-Load extension->type table, safely shared
// across the single worker process (invariant 5, §3).
type Registry struct {
	entries []Entry // sorted by Extension
}

// Load parses fs's copy of path the way the original RAP does: walk the file
// line by line, skip blank lines and '#' comments, treat the first
// whitespace-separated token as the media type and every following token as
// an extension mapped to it. Unlike the C original this never mutates the
// source buffer in place: each line is copied out of the scanner as its own
// string and the tokens are substrings of that line.
func Load(fs afero.Fs, path string) (*Registry, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mime types file %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if hash := strings.IndexByte(line, '#'); hash >= 0 {
			line = line[:hash]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		mediaType := fields[0]
		for _, ext := range fields[1:] {
			entries = append(entries, Entry{Extension: strings.ToLower(ext), Type: mediaType})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mime types file %s: %w", path, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Extension < entries[j].Extension })
	return &Registry{entries: entries}, nil
}

// Find looks up the media type for path per §4.2: walk backwards from the
// end of path until a '.' is found before any '/'; the substring after it is
// the candidate extension. A miss, or path with no extension, returns the
// octet-stream sentinel.
func (r *Registry) Find(path string) Entry {
	ext, ok := extensionOf(path)
	if !ok {
		return Entry{Type: Octet}
	}
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].Extension >= ext })
	if i < len(r.entries) && r.entries[i].Extension == ext {
		return r.entries[i]
	}
	return Entry{Extension: ext, Type: Octet}
}

func extensionOf(path string) (string, bool) {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			if i == len(path)-1 {
				return "", false
			}
			return strings.ToLower(path[i+1:]), true
		case '/':
			return "", false
		}
	}
	return "", false
}
