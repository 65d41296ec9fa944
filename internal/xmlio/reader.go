package xmlio

import (
	"encoding/xml"
	"io"
)

// Reader decodes a streamed XML request body. Malformed or truncated bodies
// are handled by draining rather than erroring mid-response (§9 "XML as
// streams"): Next returns io.EOF once the underlying stream is exhausted and
// the decoder's own error (such as *xml.SyntaxError) for a malformed body;
// callers treat any error as the end of input and fall back to their
// defaults instead of failing the request.
type Reader struct {
	dec *xml.Decoder
	src io.Reader
}

// NewReader wraps r (typically an *os.File adopted from a request fd).
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r), src: r}
}

// Next returns the next significant token, skipping comments, directives and
// processing instructions per RFC 4918's property-value extensibility rule.
func (r *Reader) Next() (xml.Token, error) {
	for {
		t, err := r.dec.Token()
		if err != nil {
			return nil, err
		}
		switch t.(type) {
		case xml.Comment, xml.Directive, xml.ProcInst:
			continue
		default:
			return t, nil
		}
	}
}

// Drain consumes any remaining bytes of the underlying stream without
// attempting to parse them, so the caller can safely close the descriptor
// afterwards (invariant 2, §3: every received descriptor must be consumed or
// closed).
func (r *Reader) Drain() {
	buf := make([]byte, 32*1024)
	for {
		_, err := r.src.Read(buf)
		if err != nil {
			return
		}
	}
}

// CountingReader wraps an io.Reader and counts bytes read, letting callers
// distinguish "body was truly empty" (zero bytes ever read) from "body
// existed but failed to parse".
type CountingReader struct {
	N int
	R io.Reader
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += n
	return n, err
}
