package responder

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/cgi"
	"github.com/indigo-web/webserv/internal/session"
	"github.com/indigo-web/webserv/internal/strutil"
	"github.com/indigo-web/webserv/router"
	"github.com/indigo-web/webserv/vhost"
)

// isCGI tells whether the location hands the path over to an interpreter. Locations
// without cgi_extension pass everything they match.
func isCGI(loc *vhost.Location, path string) bool {
	if loc == nil || len(loc.CGIPass) == 0 {
		return false
	}

	return len(loc.CGIExtension) == 0 || strutil.Ext(path) == loc.CGIExtension
}

func (r *Responder) startCGI(
	vh *vhost.Server, loc *vhost.Location, request *http.Request, sess *session.Session,
) (*cgi.Process, error) {
	script, err := filepath.Abs(router.ResolvePath(vh, loc, request.Path))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(script)
	switch {
	case err != nil:
		return nil, fsError(err)
	case !info.Mode().IsRegular():
		return nil, status.ErrForbidden
	}

	env := cgi.Environ(request, cgi.Meta{
		ScriptFilename: script,
		ScriptName:     request.Path,
		PathInfo:       request.Path,
		ServerName:     serverName(vh, request),
		ServerPort:     int(vh.Port),
		RemoteAddr:     request.Remote,
		Software:       r.cfg.CGI.Software,
		SessionID:      sess.ID,
	})
	if path, found := os.LookupEnv("PATH"); found {
		env = append(env, "PATH="+path)
	}

	process, err := cgi.Start(cgi.Spec{
		Interpreter: loc.CGIPass,
		Script:      script,
		Dir:         filepath.Dir(script),
		Env:         env,
		Stdin:       request.Body,
		MaxOutput:   r.cfg.CGI.MaxOutputSize,
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Int("pid", process.Pid()).
		Str("interpreter", loc.CGIPass).
		Str("script", script).
		Msg("cgi started")

	return process, nil
}

// Finish completes the response of a CGI request. The err is the failure, if any,
// that interrupted talking to the child.
func (r *Responder) Finish(id vhost.ID, process *cgi.Process, err error, resp *http.Response) {
	log := r.log.With().Int("pid", process.Pid()).Logger()

	switch {
	case errors.Is(err, cgi.ErrOutputTooLarge):
		log.Warn().Msg("cgi output exceeds the limit")
		r.Error(id, status.ErrBadGateway, resp)
	case err != nil:
		log.Warn().Err(err).Msg("cgi communication failed")
		r.Error(id, status.ErrBadGateway, resp)
	case process.ExitCode() != 0:
		log.Warn().Int("exit_code", process.ExitCode()).Msg("cgi failed")
		resp.
			Code(status.InternalServerError).
			ContentType(mime.WithCharset(mime.HTML)).
			String(exitDiagnostic(process.ExitCode()))
	default:
		if err = cgi.ParseOutput(process.Output(), resp); err != nil {
			log.Warn().Err(err).Msg("malformed cgi output")
			r.Error(id, err, resp)
			return
		}

		log.Debug().Int("output", len(process.Output())).Msg("cgi finished")
	}
}

func exitDiagnostic(code int) string {
	reason := "was terminated by a signal"
	if code >= 0 {
		reason = "exited with status " + strconv.Itoa(code)
	}

	page := http.ErrorPage(status.InternalServerError)
	diagnostic := "<p>CGI script " + reason + ".</p>"

	return strings.Replace(page, "</body>", diagnostic+"</body>", 1)
}

func serverName(vh *vhost.Server, request *http.Request) string {
	if len(vh.ServerName) > 0 {
		return vh.ServerName
	}

	if host := request.Host(); len(host) > 0 {
		return host
	}

	return vh.Host
}
