package propfind

import (
	"encoding/xml"
	"io"

	"github.com/couling/webdav-rap/internal/xmlio"
)

const msNamespace = "urn:schemas-microsoft-com:"
const davNamespace = "DAV:"

var propertyNames = map[string]func(*PropertySet){
	"creationdate":          func(p *PropertySet) { p.CreationDate = true },
	"displayname":           func(p *PropertySet) { p.DisplayName = true },
	"getcontentlength":      func(p *PropertySet) { p.GetContentLength = true },
	"getcontenttype":        func(p *PropertySet) { p.GetContentType = true },
	"getetag":               func(p *PropertySet) { p.GetETag = true },
	"getlastmodified":       func(p *PropertySet) { p.GetLastModified = true },
	"resourcetype":          func(p *PropertySet) { p.ResourceType = true },
	"quota-used-bytes":      func(p *PropertySet) { p.QuotaUsedBytes = true },
	"quota-available-bytes": func(p *PropertySet) { p.QuotaAvailable = true },
}

// ParseRequest reads an optional PROPFIND request body from r. A nil r, or a
// body that produces zero bytes, yields AllProperties() (§3, §4.4). The
// reader is always drained to EOF before returning so the caller can safely
// close the underlying descriptor afterwards (invariant 2, §3).
func ParseRequest(r io.Reader) (PropertySet, error) {
	if r == nil {
		return AllProperties(), nil
	}

	counting := &xmlio.CountingReader{R: r}
	xr := xmlio.NewReader(counting)

	set, err := parsePropfindDoc(xr)
	drainRest(counting)

	if err != nil {
		if counting.N == 0 {
			return AllProperties(), nil
		}
		// Malformed body: degrade to "all properties" rather than failing
		// the request (§9 "XML as streams": drain silently, don't error
		// mid-response).
		return AllProperties(), nil
	}
	return set, nil
}

func parsePropfindDoc(xr *xmlio.Reader) (PropertySet, error) {
	// Find the root <propfind> element.
	for {
		tok, err := xr.Next()
		if err != nil {
			return PropertySet{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "propfind" {
				return PropertySet{}, errUnexpectedRoot
			}
			break
		}
	}

	var set PropertySet
	sawProp := false

	depth := 0
	for {
		tok, err := xr.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return PropertySet{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if t.Name.Local == "allprop" {
					return AllProperties(), nil
				}
				if t.Name.Local == "prop" {
					sawProp = true
					depth = 1
					continue
				}
			} else if depth == 1 {
				applyProperty(&set, t.Name)
			}
			if depth >= 1 {
				depth++
			}
		case xml.EndElement:
			if depth > 0 {
				depth--
			}
		}
	}

	if !sawProp {
		return AllProperties(), nil
	}
	return set, nil
}

func applyProperty(set *PropertySet, name xml.Name) {
	if name.Space == msNamespace && name.Local == "Win32FileAttributes" {
		set.Win32FileAttribute = true
		return
	}
	if name.Space == davNamespace {
		if fn, ok := propertyNames[name.Local]; ok {
			fn(set)
		}
	}
	// Unknown or non-DAV: properties are silently ignored (§4.4).
}

func drainRest(r io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		_, err := r.Read(buf)
		if err != nil {
			return
		}
	}
}

var errUnexpectedRoot = rootElementError{}

type rootElementError struct{}

func (rootElementError) Error() string { return "propfind: expected DAV: propfind root element" }
