package responder

import (
	"errors"
	"html"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/formdata"
	"github.com/indigo-web/webserv/internal/strutil"
	"github.com/indigo-web/webserv/router"
	"github.com/indigo-web/webserv/vhost"
)

const (
	fileMode = 0o644
	dirMode  = 0o755
)

func (r *Responder) post(vh *vhost.Server, loc *vhost.Location, request *http.Request, resp *http.Response) error {
	if loc == nil || len(loc.UploadStore) == 0 {
		return status.ErrForbidden
	}

	store := uploadStore(vh, loc)
	if err := os.MkdirAll(store, dirMode); err != nil {
		return fsError(err)
	}

	var (
		stored []string
		err    error
	)

	contentType := request.ContentType()
	if len(contentType) > 0 && mime.Complies(mime.Multipart, contentType) {
		stored, err = storeMultipart(store, contentType, request.Body)
	} else {
		stored, err = storeRaw(store, loc, request)
	}

	if err != nil {
		return err
	}

	r.log.Debug().Str("store", store).Strs("files", stored).Msg("upload stored")

	resp.
		Code(status.Created).
		ContentType(mime.WithCharset(mime.HTML)).
		String(uploadSummary(stored))

	return nil
}

// uploadStore resolves a relative upload_store against the effective document root.
func uploadStore(vh *vhost.Server, loc *vhost.Location) string {
	if filepath.IsAbs(loc.UploadStore) {
		return loc.UploadStore
	}

	return filepath.Join(router.Root(vh, loc), loc.UploadStore)
}

func storeMultipart(store, contentType string, body []byte) ([]string, error) {
	boundary, ok := formdata.Boundary(contentType)
	if !ok {
		return nil, status.ErrBadRequest
	}

	parts, err := formdata.ParseMultipart(body, boundary)
	if err != nil {
		return nil, err
	}

	var stored []string

	for _, part := range parts {
		if !part.IsFile() {
			continue
		}

		name, err := writeUpload(store, part.Filename, part.Value)
		if err != nil {
			return nil, err
		}

		stored = append(stored, name)
	}

	if len(stored) == 0 {
		return nil, status.ErrBadRequest
	}

	return stored, nil
}

// storeRaw saves the whole body under the name the request path ends with. Requests
// addressing the location itself get a generated name.
func storeRaw(store string, loc *vhost.Location, request *http.Request) ([]string, error) {
	var name string
	if rest := strings.Trim(strings.TrimPrefix(request.Path, loc.Path), "/"); len(rest) > 0 {
		name = path.Base(rest)
	}

	name, err := writeUpload(store, name, request.Body)
	if err != nil {
		return nil, err
	}

	return []string{name}, nil
}

// writeUpload stores the content in the directory. Only the base of the client-provided
// name is used, and a random one is generated when nothing usable is left.
func writeUpload(store, clientName string, content []byte) (string, error) {
	name := filepath.Base(strings.ReplaceAll(clientName, "\\", "/"))
	switch name {
	case ".", "..", "/", "":
		name = uniuri.New() + strutil.Ext(clientName)
	}

	if err := os.WriteFile(filepath.Join(store, name), content, fileMode); err != nil {
		return "", fsError(err)
	}

	return name, nil
}

func uploadSummary(stored []string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>201 Created</title></head><body>\n")
	b.WriteString("<h1>Upload complete</h1>\n<ul>\n")

	for _, name := range stored {
		b.WriteString("<li>" + html.EscapeString(name) + "</li>\n")
	}

	b.WriteString("</ul>\n</body></html>\n")

	return b.String()
}

func (r *Responder) put(vh *vhost.Server, loc *vhost.Location, request *http.Request, resp *http.Response) error {
	target := router.ResolvePath(vh, loc, request.Path)

	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		return status.ErrForbidden
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fsError(err)
	}

	created := err != nil

	if _, err = os.Stat(filepath.Dir(target)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return status.ErrConflict
		}

		return fsError(err)
	}

	if err = os.WriteFile(target, request.Body, fileMode); err != nil {
		return fsError(err)
	}

	if created {
		resp.Code(status.Created).Header("Location", request.Path).String(string(status.Text(status.Created)) + "\n")
		resp.ContentType(mime.WithCharset(mime.Plain))
	} else {
		resp.Code(status.NoContent).ContentType("").Bytes(nil)
	}

	return nil
}

func (r *Responder) delete(vh *vhost.Server, loc *vhost.Location, request *http.Request, resp *http.Response) error {
	target := router.ResolvePath(vh, loc, request.Path)

	info, err := os.Stat(target)
	if err != nil {
		return fsError(err)
	}

	if info.IsDir() {
		return status.ErrForbidden
	}

	if err = os.Remove(target); err != nil {
		return fsError(err)
	}

	resp.Code(status.NoContent).ContentType("").Bytes(nil)

	return nil
}
