package cgi

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/strutil"
)

// ParseOutput translates the child's output into a response. The output must start
// with a header block terminated by an empty line. The Status pseudo-header sets the
// response code, a lone Location implies 302 Found. A body without Content-Type is
// served as text/html.
func ParseOutput(output []byte, resp *http.Response) error {
	headerEnd, bodyStart := findHeaderEnd(output)
	if headerEnd == -1 {
		return status.ErrBadGateway
	}

	var (
		hasStatus, hasLocation bool
		fields                 = resp.Reveal()
	)

	resp.ContentType("")

	for _, line := range strings.Split(string(output[:headerEnd]), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if len(line) == 0 {
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return status.ErrBadGateway
		}

		key, value := strutil.RStripWS(line[:colon]), strutil.StripWS(line[colon+1:])

		switch {
		case strcomp.EqualFold(key, "status"):
			code, reason, err := parseStatus(value)
			if err != nil {
				return err
			}

			resp.Code(code).Status(reason)
			hasStatus = true
		case strcomp.EqualFold(key, "content-length"):
			// recomputed from the actual body
		case strcomp.EqualFold(key, "location"):
			hasLocation = true
			resp.Header(key, value)
		default:
			resp.Header(key, value)
		}
	}

	if hasLocation && !hasStatus {
		resp.Code(status.Found)
	}

	if len(fields.ContentType) == 0 && len(output) > bodyStart {
		resp.ContentType(mime.HTML)
	}

	resp.Bytes(output[bodyStart:])

	return nil
}

func findHeaderEnd(output []byte) (headerEnd, bodyStart int) {
	crlf := bytes.Index(output, []byte("\r\n\r\n"))
	lf := bytes.Index(output, []byte("\n\n"))

	switch {
	case crlf == -1 && lf == -1:
		return -1, -1
	case lf == -1 || (crlf != -1 && crlf < lf):
		return crlf, crlf + 4
	default:
		return lf, lf + 2
	}
}

func parseStatus(value string) (status.Code, status.Status, error) {
	codeStr, reason, _ := strings.Cut(value, " ")
	code, ok := status.ParseCode(codeStr)
	if !ok {
		return 0, "", status.ErrBadGateway
	}

	return code, status.Status(strutil.StripWS(reason)), nil
}

// Meta holds the request-independent part of the environment.
type Meta struct {
	ScriptFilename string
	ScriptName     string
	PathInfo       string
	ServerName     string
	ServerPort     int
	RemoteAddr     string
	Software       string
	SessionID      string
}

// Environ builds the environment of a CGI child. Request headers are exported with
// the HTTP_ prefix, except for the ones having dedicated variables.
func Environ(request *http.Request, meta Meta) []string {
	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"REDIRECT_STATUS=200",
		"REQUEST_METHOD=" + request.RawMethod,
		"REQUEST_URI=" + request.Target,
		"SERVER_PROTOCOL=" + request.Protocol.String(),
		"SCRIPT_FILENAME=" + meta.ScriptFilename,
		"SCRIPT_NAME=" + meta.ScriptName,
		"PATH_INFO=" + meta.PathInfo,
		"QUERY_STRING=" + request.Query,
		"CONTENT_LENGTH=" + strconv.Itoa(len(request.Body)),
		"CONTENT_TYPE=" + request.ContentType(),
		"SERVER_NAME=" + meta.ServerName,
		"SERVER_PORT=" + strconv.Itoa(meta.ServerPort),
		"SERVER_SOFTWARE=" + meta.Software,
		"REMOTE_ADDR=" + strutil.TrimPort(meta.RemoteAddr),
	}

	if len(meta.SessionID) > 0 {
		env = append(env, "SESSION_ID="+meta.SessionID)
	}

	for key, value := range request.Headers {
		switch key {
		case "content-length", "content-type", "proxy":
			// proxy is skipped because of httpoxy
			continue
		}

		env = append(env, "HTTP_"+headerToEnv(key)+"="+value)
	}

	return env
}

func headerToEnv(key string) string {
	env := []byte(strings.ToUpper(key))
	for i, c := range env {
		if c == '-' {
			env[i] = '_'
		}
	}

	return uf.B2S(env)
}
