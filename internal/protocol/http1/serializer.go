package http1

import (
	"strconv"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/proto"
	"github.com/indigo-web/webserv/http/status"
)

const crlf = "\r\n"

// Serialize appends the wire representation of the response to dst. The status line
// always announces HTTP/1.1. Content-Length is computed from the body unless the
// response carries one explicitly or the code forbids a body. Connection is derived
// from keepAlive and overrides any explicitly set value.
func Serialize(dst []byte, resp *http.Response, keepAlive bool, server string) []byte {
	fields := resp.Reveal()

	dst = append(dst, proto.HTTP11.String()...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(fields.Code), 10)
	dst = append(dst, ' ')
	if len(fields.Status) > 0 {
		dst = append(dst, fields.Status...)
	} else {
		dst = append(dst, status.Text(fields.Code)...)
	}
	dst = append(dst, crlf...)

	var hasLength, hasServer bool

	for _, header := range fields.Headers {
		switch {
		case strcomp.EqualFold(header.Key, "connection"):
			continue
		case strcomp.EqualFold(header.Key, "content-length"):
			hasLength = true
		case strcomp.EqualFold(header.Key, "server"):
			hasServer = true
		}

		dst = appendHeader(dst, header.Key, header.Value)
	}

	noBody := bodiless(fields.Code)

	if len(fields.ContentType) > 0 && !noBody {
		dst = appendHeader(dst, "Content-Type", fields.ContentType)
	}

	if !hasLength && !noBody {
		dst = append(dst, "Content-Length: "...)
		dst = strconv.AppendInt(dst, int64(len(fields.Body)), 10)
		dst = append(dst, crlf...)
	}

	if keepAlive {
		dst = appendHeader(dst, "Connection", "keep-alive")
	} else {
		dst = appendHeader(dst, "Connection", "close")
	}

	if !hasServer && len(server) > 0 {
		dst = appendHeader(dst, "Server", server)
	}

	dst = append(dst, crlf...)

	if noBody {
		return dst
	}

	return append(dst, fields.Body...)
}

// bodiless reports whether responses with the code must not carry a body, Content-Type
// and Content-Length.
func bodiless(code status.Code) bool {
	return code < 200 || code == status.NoContent || code == status.NotModified
}

func appendHeader(dst []byte, key, value string) []byte {
	dst = append(dst, key...)
	dst = append(dst, ": "...)
	dst = append(dst, value...)

	return append(dst, crlf...)
}
