// Package router implements the dispatching rules: picking a location of a virtual host,
// validating the method and resolving the request path into the filesystem.
package router

import (
	"strings"

	"github.com/indigo-web/webserv/http/method"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/strutil"
	"github.com/indigo-web/webserv/vhost"
)

// DefaultMethods are allowed when neither a location nor its virtual host restricts them.
var DefaultMethods = method.List

// SelectLocation picks at most one location for the request. A location whose
// cgi_extension matches the path extension takes priority, provided it permits the
// method. Otherwise, the longest literal prefix wins, ties going to the first declared.
// Nil is returned when nothing matches.
func SelectLocation(vh *vhost.Server, m method.Method, path string) *vhost.Location {
	if ext := strutil.Ext(path); len(ext) > 0 {
		for i := range vh.Locations {
			loc := &vh.Locations[i]
			if len(loc.CGIExtension) == 0 || loc.CGIExtension != ext {
				continue
			}

			if len(loc.Methods) == 0 || contains(loc.Methods, m) {
				return loc
			}
		}
	}

	var best *vhost.Location

	for i := range vh.Locations {
		loc := &vh.Locations[i]
		if !strings.HasPrefix(path, loc.Path) {
			continue
		}

		if best == nil || len(loc.Path) > len(best.Path) {
			best = loc
		}
	}

	return best
}

// AllowedMethods returns the effective set: the location's one if non-empty, otherwise
// the virtual host's one, otherwise DefaultMethods.
func AllowedMethods(vh *vhost.Server, loc *vhost.Location) []method.Method {
	switch {
	case loc != nil && len(loc.Methods) > 0:
		return loc.Methods
	case len(vh.Methods) > 0:
		return vh.Methods
	default:
		return DefaultMethods
	}
}

// MethodAllowed checks the method against the effective set. The second value is
// suitable for the Allow header. Unknown methods are never allowed.
func MethodAllowed(m method.Method, vh *vhost.Server, loc *vhost.Location) (bool, string) {
	allowed := AllowedMethods(vh, loc)

	return m != method.Unknown && contains(allowed, m), method.Join(allowed)
}

// Redirect reports the configured redirect of the location, if any.
func Redirect(loc *vhost.Location) (code status.Code, target string, ok bool) {
	if loc == nil || loc.Redirect == nil {
		return 0, "", false
	}

	return loc.Redirect.Code, loc.Redirect.Target, true
}

// Root returns the effective document root with the trailing slash normalized away,
// unless the root is exactly "/".
func Root(vh *vhost.Server, loc *vhost.Location) string {
	root := vh.Root
	if loc != nil && len(loc.Root) > 0 {
		root = loc.Root
	}

	for len(root) > 1 && root[len(root)-1] == '/' {
		root = root[:len(root)-1]
	}

	return root
}

// ResolvePath maps the request path into the filesystem. The location prefix is
// stripped from the path, so does the leading slash of the remainder, and both parts
// are joined with exactly one slash. An empty remainder results in the root itself.
func ResolvePath(vh *vhost.Server, loc *vhost.Location, path string) string {
	root := Root(vh, loc)

	rest := path
	if loc != nil {
		rest = strings.TrimPrefix(rest, loc.Path)
	}

	rest = strings.TrimLeft(rest, "/")

	switch {
	case len(rest) == 0:
		return root
	case root == "/":
		return root + rest
	default:
		return root + "/" + rest
	}
}

// MaxBodySize returns the effective body limit: the location's one, otherwise the
// virtual host's one, otherwise the fallback. Zero means not set.
func MaxBodySize(vh *vhost.Server, loc *vhost.Location, fallback uint64) uint64 {
	switch {
	case loc != nil && loc.MaxBodySize > 0:
		return loc.MaxBodySize
	case vh.MaxBodySize > 0:
		return vh.MaxBodySize
	default:
		return fallback
	}
}

// Autoindex tells whether directory listing is enabled on either level.
func Autoindex(vh *vhost.Server, loc *vhost.Location) bool {
	return vh.Autoindex || (loc != nil && loc.Autoindex)
}

func contains(methods []method.Method, m method.Method) bool {
	for _, allowed := range methods {
		if allowed == m {
			return true
		}
	}

	return false
}
