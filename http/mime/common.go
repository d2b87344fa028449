package mime

import (
	"path/filepath"
	"strings"

	"github.com/indigo-web/webserv/internal/strutil"
)

type MIME = string

const (
	OctetStream    MIME = "application/octet-stream"
	Plain          MIME = "text/plain"
	HTML           MIME = "text/html"
	XML            MIME = "text/xml"
	JSON           MIME = "application/json"
	YAML           MIME = "application/yaml"
	PDF            MIME = "application/pdf"
	FormUrlencoded MIME = "application/x-www-form-urlencoded"
	Multipart      MIME = "multipart/form-data"
	ZIP            MIME = "application/zip"
	GZIP           MIME = "application/gzip"
	AVIF           MIME = "image/avif"
	CSS            MIME = "text/css"
	GIF            MIME = "image/gif"
	JPEG           MIME = "image/jpeg"
	PNG            MIME = "image/png"
	SVG            MIME = "image/svg+xml"
	ICO            MIME = "image/vnd.microsoft.icon"
	WEBP           MIME = "image/webp"
	JS             MIME = "text/javascript"
	WASM           MIME = "application/wasm"
	MP4            MIME = "video/mp4"
	MPEG           MIME = "audio/mpeg"
)

// Complies returns whether two MIMEs are compatible. Empty MIME is
// considered compatible with any other MIME
func Complies(mime MIME, with string) bool {
	// get rid of parameters if any
	with, _ = strutil.CutHeader(with)
	return len(with) == 0 || strings.EqualFold(strutil.RStripWS(with), mime)
}

// ByPath returns the content type matching the file extension. Unknown extensions
// are served as an octet-stream.
func ByPath(path string) MIME {
	if m, ok := Extension[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}

	return OctetStream
}

// WithCharset appends the default charset parameter to textual types.
func WithCharset(m MIME) string {
	if charset, ok := DefaultCharset[m]; ok {
		return m + "; charset=" + charset
	}

	return m
}
