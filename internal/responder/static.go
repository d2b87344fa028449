package responder

import (
	"os"
	"path/filepath"

	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/autoindex"
	"github.com/indigo-web/webserv/router"
	"github.com/indigo-web/webserv/vhost"
)

func (r *Responder) get(vh *vhost.Server, loc *vhost.Location, request *http.Request, resp *http.Response) error {
	path := router.ResolvePath(vh, loc, request.Path)

	info, err := os.Stat(path)
	if err != nil {
		return fsError(err)
	}

	if !info.IsDir() {
		return serveFile(path, resp)
	}

	index := r.cfg.Static.Index
	if loc != nil && len(loc.Index) > 0 {
		index = loc.Index
	}

	indexPath := filepath.Join(path, index)
	if info, err = os.Stat(indexPath); err == nil && info.Mode().IsRegular() {
		return serveFile(indexPath, resp)
	}

	if !router.Autoindex(vh, loc) {
		return status.ErrForbidden
	}

	page, err := autoindex.Page(path, request.Path)
	if err != nil {
		return fsError(err)
	}

	resp.ContentType(mime.WithCharset(mime.HTML)).Bytes(page)

	return nil
}

func serveFile(path string, resp *http.Response) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fsError(err)
	}

	resp.
		Code(status.OK).
		ContentType(mime.WithCharset(mime.ByPath(path))).
		Bytes(content)

	return nil
}
