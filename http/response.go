package http

import (
	"html"
	"strconv"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/indigo-web/webserv/http/cookie"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/response"
)

// why 7? Because a response rarely carries more than Location, Allow, Set-Cookie
// and a few CGI-provided ones.
const preallocRespHeaders = 7

type Response struct {
	fields *response.Fields
}

// NewResponse returns a new instance of the Response object with status code set to 200 OK,
// pre-allocated space for response headers and text/html content-type.
func NewResponse() *Response {
	return &Response{
		&response.Fields{
			Code:        status.OK,
			Headers:     make([]response.Header, 0, preallocRespHeaders),
			ContentType: response.DefaultContentType,
		},
	}
}

// Code sets a Response code and a corresponding status.
func (r *Response) Code(code status.Code) *Response {
	r.fields.Code = code
	return r
}

// Status sets a custom status text, overriding the default reason phrase.
func (r *Response) Status(status status.Status) *Response {
	r.fields.Status = status
	return r
}

// ContentType sets a custom Content-Type header value. Empty value omits the header.
func (r *Response) ContentType(value mime.MIME) *Response {
	r.fields.ContentType = value
	return r
}

// Header appends the header. Content-Type is stored separately, so it's redirected to
// the ContentType method.
func (r *Response) Header(key string, values ...string) *Response {
	if strcomp.EqualFold(key, "content-type") {
		return r.ContentType(values[0])
	}

	for i := range values {
		r.fields.Headers = append(r.fields.Headers, response.Header{
			Key:   key,
			Value: values[i],
		})
	}

	return r
}

// String sets the response's body to the passed string
func (r *Response) String(body string) *Response {
	return r.Bytes(uf.S2B(body))
}

// Bytes sets the response's body to passed slice WITHOUT COPYING. Changing
// the passed slice later will affect the response by itself
func (r *Response) Bytes(body []byte) *Response {
	r.fields.Body = body
	return r
}

// Write implements io.Writer interface. It always returns n=len(b) and err=nil
func (r *Response) Write(b []byte) (n int, err error) {
	r.fields.Body = append(r.fields.Body, b...)
	return len(b), nil
}

// Cookie adds cookies. They're rendered as a set of Set-Cookie headers
func (r *Response) Cookie(cookies ...cookie.Cookie) *Response {
	for _, c := range cookies {
		r.Header("Set-Cookie", c.String())
	}

	return r
}

// Error returns a response builder with an error set. If passed err is nil, nothing will happen.
// If an instance of status.HTTPError is passed, error code will be automatically set, otherwise
// it defaults to 500 Internal Server Error. The body is a minimal generated HTML page.
func (r *Response) Error(err error) *Response {
	if err == nil {
		return r
	}

	code := status.CodeOf(err)

	return r.
		Code(code).
		ContentType(mime.HTML).
		String(ErrorPage(code))
}

// Redirect sets the Location header along with the code. The body is left empty.
func (r *Response) Redirect(code status.Code, location string) *Response {
	return r.
		Code(code).
		Header("Location", location).
		Bytes(nil)
}

// Reveal returns a struct with values, filled by builder. Used mostly in internal purposes
func (r *Response) Reveal() *response.Fields {
	return r.fields
}

// Clear discards everything was done with Response object before
func (r *Response) Clear() *Response {
	r.fields.Clear()
	return r
}

// ErrorPage renders a minimal HTML page for the status code.
func ErrorPage(code status.Code) string {
	text := html.EscapeString(string(status.Text(code)))
	title := strconv.Itoa(int(code)) + " " + text

	return "<!DOCTYPE html>\n<html><head><title>" + title + "</title></head>" +
		"<body><h1>" + title + "</h1></body></html>\n"
}
