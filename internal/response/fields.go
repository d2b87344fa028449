package response

import (
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
)

const DefaultContentType = mime.HTML

type Header struct {
	Key, Value string
}

type Fields struct {
	Status      status.Status
	ContentType string
	Headers     []Header
	Body        []byte
	Code        status.Code
}

func (f *Fields) Clear() {
	f.Code = status.OK
	f.Status = ""
	f.ContentType = DefaultContentType
	f.Headers = f.Headers[:0]
	f.Body = nil
}
