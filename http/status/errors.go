package status

import "errors"

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

// CodeOf extracts the status code carried by the error. Errors which aren't
// HTTPError are considered internal ones.
func CodeOf(err error) Code {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return InternalServerError
}

var (
	ErrBadRequest              = NewError(BadRequest, "bad request")
	ErrBadRequestLine          = NewError(BadRequest, "malformed request line")
	ErrBadHeader               = NewError(BadRequest, "malformed header line")
	ErrBadContentLength        = NewError(BadRequest, "invalid Content-Length value")
	ErrURLDecoding             = NewError(BadRequest, "invalid urlencoded sequence")
	ErrBadChunk                = NewError(BadRequest, "malformed chunk-encoded data")
	ErrHTTPVersionNotSupported = NewError(BadRequest, "HTTP version not supported")
	ErrForbidden               = NewError(Forbidden, "forbidden")
	ErrNotFound                = NewError(NotFound, "not found")
	ErrMethodNotAllowed        = NewError(MethodNotAllowed, "method not allowed")
	ErrConflict                = NewError(Conflict, "conflict")
	ErrBodyTooLarge            = NewError(RequestEntityTooLarge, "request body is too large")
	ErrChunkTooLarge           = NewError(RequestEntityTooLarge, "chunk size overflows")
	ErrHeaderFieldsTooLarge    = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrTooManyHeaders          = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrInternalServerError     = NewError(InternalServerError, "internal server error")
	ErrNotImplemented          = NewError(NotImplemented, "not implemented")
	ErrUnsupportedEncoding     = NewError(NotImplemented, "transfer coding is not supported")
	ErrBadGateway              = NewError(BadGateway, "bad gateway")
	ErrGatewayTimeout          = NewError(GatewayTimeout, "gateway timeout")
)
