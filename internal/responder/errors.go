package responder

import (
	"os"
	"path/filepath"

	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/vhost"
)

// Error turns the error into a response. If the virtual host has an error_page for the
// resulting code and the page is readable, it's served instead of the generated one.
// Headers set earlier, like Allow or Set-Cookie, are preserved.
func (r *Responder) Error(id vhost.ID, err error, resp *http.Response) {
	code := status.CodeOf(err)
	if code == status.InternalServerError {
		r.log.Error().Err(err).Msg("internal error")
	}

	resp.Error(err)

	vh := r.vhosts.Server(id)
	page, found := vh.ErrorPages[code]
	if !found {
		return
	}

	path := errorPagePath(vh, page)
	content, err := os.ReadFile(path)
	if err != nil {
		r.log.Warn().Err(err).Str("page", path).Int("code", int(code)).Msg("error page is unavailable")
		return
	}

	resp.ContentType(mime.WithCharset(mime.ByPath(path))).Bytes(content)
}

// errorPagePath resolves the page against the virtual host root, unless it's already
// located inside it.
func errorPagePath(vh *vhost.Server, page string) string {
	if len(vh.Root) == 0 || (filepath.IsAbs(page) && isWithin(vh.Root, page)) {
		return page
	}

	return filepath.Join(vh.Root, page)
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
