// Package xmlio bridges the worker's XML request/response bodies to the
// descriptor-backed pipes the protocol streams them through. Namespacing
// uses fixed prefixes (d:, x:, z:) written literally rather than
// encoding/xml's namespace-URI-to-synthetic-prefix machinery: some WebDAV
// clients (Windows Mini-Redirector) ignore elements carrying a default,
// unprefixed namespace.
package xmlio

import (
	"bufio"
	"encoding/xml"
	"io"
	"net/url"
)

const (
	nsDAV  = "DAV:"
	nsRAP  = "urn:couling-webdav:"
	nsMS   = "urn:schemas-microsoft-com:"
	prolog = `<?xml version="1.0" encoding="utf-8"?>`
)

// Writer streams an XML (or, for directory listings, HTML) document to an
// underlying io.Writer — typically the write end of a pipe whose read end
// was already handed to the front-end in a response Message.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Prolog writes the XML 1.0 UTF-8 declaration (§6); HTML output must not
// call this.
func (x *Writer) Prolog() *Writer {
	x.raw(prolog)
	return x
}

// Raw writes s verbatim — used for literal open/close tags whose attributes
// are fixed per call site (the namespace declarations on the multistatus
// root, for instance).
func (x *Writer) Raw(s string) *Writer {
	x.raw(s)
	return x
}

func (x *Writer) raw(s string) {
	if x.err != nil {
		return
	}
	_, x.err = x.w.WriteString(s)
}

// Open writes "<tag>".
func (x *Writer) Open(tag string) *Writer {
	x.raw("<" + tag + ">")
	return x
}

// OpenAttrs writes "<tag attr="value" ...>" with each value XML-attribute
// escaped.
func (x *Writer) OpenAttrs(tag string, attrs ...[2]string) *Writer {
	if x.err != nil {
		return x
	}
	x.raw("<" + tag)
	for _, kv := range attrs {
		x.raw(" " + kv[0] + `="`)
		if x.err == nil {
			x.err = xml.EscapeText(x.w, []byte(kv[1]))
		}
		x.raw(`"`)
	}
	x.raw(">")
	return x
}

// Empty writes a self-closing "<tag/>".
func (x *Writer) Empty(tag string) *Writer {
	x.raw("<" + tag + "/>")
	return x
}

// Close writes "</tag>".
func (x *Writer) Close(tag string) *Writer {
	x.raw("</" + tag + ">")
	return x
}

// Text writes s as escaped character data.
func (x *Writer) Text(s string) *Writer {
	if x.err != nil {
		return x
	}
	x.err = xml.EscapeText(x.w, []byte(s))
	return x
}

// Element writes "<tag>text</tag>" with text escaped, or "<tag/>" if text
// is empty.
func (x *Writer) Element(tag, text string) *Writer {
	if text == "" {
		return x.Empty(tag)
	}
	return x.Open(tag).Text(text).Close(tag)
}

// HRef writes a <d:href> element containing the percent-encoded path, per
// §4.3 ("URLs are percent-encoded path writes").
func (x *Writer) HRef(path string) *Writer {
	return x.Open("d:href").Text(EncodePath(path)).Close("d:href")
}

// Flush pushes buffered bytes to the underlying writer and returns the first
// error encountered by any prior call, if any.
func (x *Writer) Flush() error {
	if x.err != nil {
		return x.err
	}
	return x.w.Flush()
}

// EncodePath percent-encodes a filesystem path for use inside an href,
// preserving '/' as a path separator rather than escaping it.
func EncodePath(path string) string {
	u := &url.URL{Path: path}
	return u.EscapedPath()
}

// Namespaces exposes the three fixed namespace URIs components attach as
// xmlns declarations on their root elements.
var Namespaces = struct{ DAV, RAP, MS string }{nsDAV, nsRAP, nsMS}

// MultistatusOpen writes the multistatus root open tag with its namespace
// declarations (§4.4 step 3).
func (x *Writer) MultistatusOpen() *Writer {
	return x.OpenAttrs("d:multistatus",
		[2]string{"xmlns:d", nsDAV},
		[2]string{"xmlns:z", nsMS},
	)
}

// ErrorOpen writes the <d:error> root with its namespace declarations.
func (x *Writer) ErrorOpen() *Writer {
	return x.OpenAttrs("d:error",
		[2]string{"xmlns:d", nsDAV},
		[2]string{"xmlns:x", nsRAP},
	)
}
