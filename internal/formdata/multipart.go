package formdata

import (
	"iter"

	"github.com/indigo-web/utils/uf"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/strutil"
)

// Part is a single multipart/form-data entry. Value references the parsed data
// without copying.
type Part struct {
	Name, Filename, ContentType string
	Value                       []byte
	file                        bool
}

// IsFile tells whether the part was submitted as a file, even with an empty filename.
func (p Part) IsFile() bool {
	return p.file
}

type header struct {
	Name, File, ContentType string
	hasFile                 bool
}

// Boundary extracts the boundary parameter out of a multipart/form-data Content-Type
// value. False is returned if the type isn't multipart or the boundary is missing.
func Boundary(contentType string) (string, bool) {
	value, params := strutil.CutHeader(contentType)
	if len(value) == 0 || !mime.Complies(mime.Multipart, value) {
		return "", false
	}

	for key, val := range strutil.WalkKV(params) {
		if key == "boundary" && len(val) > 0 && len(val) <= 70 {
			return val, true
		}
	}

	return "", false
}

// ParseMultipart decodes the multipart/form-data body.
func ParseMultipart(data []byte, b string) ([]Part, error) {
	boundary := "--" + b
	s := newStream(uf.B2S(data))

	if !skipPreamble(&s, boundary) {
		return nil, status.ErrBadRequest
	}

	if s.Consume("--") {
		// no parts at all
		return nil, nil
	}

	if !s.ConsumeLineBreak() {
		return nil, status.ErrBadRequest
	}

	var parts []Part

	for hdr, value := range formParts(&s, boundary) {
		if len(hdr.Name) == 0 && !hdr.hasFile {
			return nil, status.ErrBadRequest
		}

		if len(hdr.ContentType) == 0 {
			hdr.ContentType = mime.Plain
		}

		parts = append(parts, Part{
			Name:        hdr.Name,
			Filename:    hdr.File,
			ContentType: hdr.ContentType,
			Value:       uf.S2B(value),
			file:        hdr.hasFile,
		})
	}

	return parts, nil
}

func skipPreamble(s *stream, boundary string) bool {
	b := s.FindSubstr(boundary)
	if b == -1 {
		return false
	}

	s.Advance(b + len(boundary))
	return true
}

// formParts yields parts one by one. A malformed part is reported by a header with
// neither a name nor a file.
func formParts(s *stream, boundary string) iter.Seq2[header, string] {
	return func(yield func(header, string) bool) {
		for {
			hdr, ok := parseHeaders(s)
			if !ok {
				yield(header{}, "")
				return
			}

			next := s.FindSubstr(boundary)
			if next == -1 {
				yield(header{}, "")
				return
			}

			if !yield(hdr, rstripCRLF(s.Advance(next))) {
				return
			}

			s.Advance(len(boundary))

			if s.Consume("--") {
				return
			}

			if !s.ConsumeLineBreak() {
				yield(header{}, "")
				return
			}
		}
	}
}

func parseHeaders(s *stream) (hdr header, ok bool) {
	for {
		if s.ConsumeLineBreak() {
			return hdr, true
		}

		if hdr, ok = parseHeader(s, hdr); !ok {
			return header{}, false
		}
	}
}

func parseHeader(s *stream, origin header) (modified header, ok bool) {
	switch {
	case s.ConsumeFold("Content-Disposition:"):
		s.SkipWhitespaces()
		if !s.ConsumeFold("form-data") {
			return origin, false
		}

		params, ok := s.AdvanceLine()
		if !ok {
			return origin, false
		}

		_, params = strutil.CutHeader(params)

		return parseContentDispositionParams(params, origin)
	case s.ConsumeFold("Content-Type:"):
		s.SkipWhitespaces()
		origin.ContentType, ok = s.AdvanceLine()
		origin.ContentType = strutil.RStripWS(origin.ContentType)

		return origin, ok
	default:
		// must ignore
		_, ok = s.AdvanceLine()
		return origin, ok
	}
}

func parseContentDispositionParams(params string, origin header) (modified header, ok bool) {
	for key, value := range strutil.WalkKV(params) {
		switch key {
		case "":
			return origin, false
		case "name":
			origin.Name = value
		case "filename":
			origin.File = value
			origin.hasFile = true
		}
	}

	return origin, true
}

func rstripCRLF(str string) string {
	if len(str) > 0 && str[len(str)-1] == '\n' {
		str = str[:len(str)-1]

		if len(str) > 0 && str[len(str)-1] == '\r' {
			str = str[:len(str)-1]
		}
	}

	return str
}
