package verbs

import (
	"github.com/couling/webdav-rap/internal/mimetype"
	"github.com/couling/webdav-rap/internal/propfind"
	"github.com/couling/webdav-rap/internal/response"
	"github.com/couling/webdav-rap/internal/transport"
)

// Copy is a stub per §4.11's explicit Non-goal: a real recursive
// copy-with-overwrite-policy implementation would stat both sides, walk the
// source tree, and honor the Overwrite header/Destination collision rules;
// none of that is implemented here.
func Copy(ch *transport.Channel, target string) error {
	return response.ErrorBody(ch, transport.InternalError, target, "", "")
}

// Proppatch replies as if a depth-1 PROPFIND-all had succeeded, the
// shortcut §4.11 and §9 both call out explicitly: this worker never
// actually stores custom property values. The caller is responsible for
// sending CONTINUE and draining the request body first (§3 invariant 2).
func Proppatch(ch *transport.Channel, mimeReg *mimetype.Registry, target string) error {
	return propfind.Respond(ch, mimeReg, target, false, propfind.AllProperties())
}
