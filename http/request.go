package http

import (
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/webserv/http/cookie"
	"github.com/indigo-web/webserv/http/method"
	"github.com/indigo-web/webserv/http/proto"
	"github.com/indigo-web/webserv/internal/strutil"
)

// Request represents a fully parsed HTTP request.
type Request struct {
	// Method is an enum representing the request method. Methods out of the supported
	// set are represented by method.Unknown, the original token is kept in RawMethod.
	Method    method.Method
	RawMethod string
	// Target is the request-target exactly as it was received.
	Target string
	// Path is a percent-decoded path part of the target, guaranteed to hold no control
	// characters.
	Path string
	// Query is everything after the first question mark, not decoded.
	Query    string
	Protocol proto.Proto
	// Headers holds header pairs with lowercased keys.
	Headers Headers
	// Body is the complete request body. Chunked bodies are stored already decoded.
	Body []byte
	// Chunked tells whether the body was transferred using chunked coding.
	Chunked bool
	// Remote holds the remote address in a host:port form.
	Remote string
}

func NewRequest() *Request {
	return &Request{
		Method:   method.Unknown,
		Protocol: proto.HTTP11,
		Headers:  make(Headers, 10),
	}
}

// KeepAlive tells whether the connection must be kept alive after the response.
// HTTP/1.1 connections are persistent unless asked otherwise, HTTP/1.0 ones are
// the opposite.
func (r *Request) KeepAlive() bool {
	connection := strutil.StripWS(r.Headers["connection"])

	switch r.Protocol {
	case proto.HTTP10:
		return strcomp.EqualFold(connection, "keep-alive")
	case proto.HTTP11:
		return !strcomp.EqualFold(connection, "close")
	default:
		return false
	}
}

// Host returns the Host header value without the port.
func (r *Request) Host() string {
	return strutil.TrimPort(strutil.StripWS(r.Headers["host"]))
}

func (r *Request) ContentType() string {
	return r.Headers["content-type"]
}

// Cookies returns a freshly parsed cookie jar.
func (r *Request) Cookies() (cookie.Jar, error) {
	jar := cookie.NewJar()
	value, found := r.Headers["cookie"]
	if !found {
		return jar, nil
	}

	return jar, cookie.Parse(jar, value)
}

// HasBody tells whether the request carried any message body framing.
func (r *Request) HasBody() bool {
	return r.Chunked || len(r.Headers["content-length"]) > 0
}

// Reset prepares the request to be filled by the next one. The body buffer is reused.
func (r *Request) Reset() {
	r.Method = method.Unknown
	r.RawMethod = ""
	r.Target = ""
	r.Path = ""
	r.Query = ""
	r.Protocol = proto.HTTP11
	r.Headers.Clear()
	r.Body = r.Body[:0]
	r.Chunked = false
}

// HasSegment reports whether any slash-separated path segment equals to the passed one.
func (r *Request) HasSegment(segment string) bool {
	for _, s := range strings.Split(r.Path, "/") {
		if s == segment {
			return true
		}
	}

	return false
}
