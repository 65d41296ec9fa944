// Package propfind implements the PROPFIND engine (§4.4): request parsing
// into a PropertySet and multistatus response generation.
package propfind

import "github.com/jinzhu/copier"

// PropertySet records which WebDAV properties a PROPFIND request asked for.
// An absent request body means "all properties" (§3).
type PropertySet struct {
	CreationDate       bool
	DisplayName        bool
	GetContentLength   bool
	GetContentType     bool
	GetETag            bool
	GetLastModified    bool
	ResourceType       bool
	QuotaUsedBytes     bool
	QuotaAvailable     bool
	Win32FileAttribute bool
}

// allProperties is the canonical "every property" template; AllProperties
// returns a clone of it via copier rather than repeating the field list a
// second time at every call site that needs "absent body ⇒ all properties"
// (§3, §4.4).
var allProperties = PropertySet{
	CreationDate:       true,
	DisplayName:        true,
	GetContentLength:   true,
	GetContentType:     true,
	GetETag:            true,
	GetLastModified:    true,
	ResourceType:       true,
	QuotaUsedBytes:     true,
	QuotaAvailable:     true,
	Win32FileAttribute: true,
}

// AllProperties returns a fresh PropertySet with every flag set.
func AllProperties() PropertySet {
	var out PropertySet
	// copier.Copy over a same-shaped struct of bool fields is effectively a
	// value copy; it clones the template without hand-duplicating the
	// field list.
	_ = copier.Copy(&out, &allProperties)
	return out
}
