// Package responder turns complete requests into responses: it serves static content,
// stores uploads, performs PUT and DELETE, renders error pages and starts CGI children.
package responder

import (
	"errors"
	"io/fs"

	"github.com/indigo-web/webserv/config"
	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/method"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/cgi"
	"github.com/indigo-web/webserv/internal/session"
	"github.com/indigo-web/webserv/router"
	"github.com/indigo-web/webserv/vhost"
	"github.com/rs/zerolog"
)

// Responder is owned by the event loop and isn't safe for concurrent use.
type Responder struct {
	cfg      *config.Config
	vhosts   *vhost.Set
	sessions *session.Store
	log      zerolog.Logger
}

func New(cfg *config.Config, vhosts *vhost.Set, sessions *session.Store, log zerolog.Logger) *Responder {
	return &Responder{
		cfg:      cfg,
		vhosts:   vhosts,
		sessions: sessions,
		log:      log,
	}
}

// Respond fills the response for the request addressed to the virtual host. If the
// request is served by a CGI script, the started child is returned and the response
// must be completed by Finish once the child is done.
func (r *Responder) Respond(id vhost.ID, request *http.Request, resp *http.Response) *cgi.Process {
	vh := r.vhosts.Server(id)
	sess := r.touchSession(request, resp)
	loc := router.SelectLocation(vh, request.Method, request.Path)

	if code, target, ok := router.Redirect(loc); ok {
		resp.Redirect(code, target)
		return nil
	}

	if allowed, allow := router.MethodAllowed(request.Method, vh, loc); !allowed {
		resp.Header("Allow", allow)
		r.Error(id, status.ErrMethodNotAllowed, resp)
		return nil
	}

	if request.HasSegment("..") {
		r.Error(id, status.ErrForbidden, resp)
		return nil
	}

	if isCGI(loc, request.Path) {
		process, err := r.startCGI(vh, loc, request, sess)
		if err != nil {
			r.Error(id, err, resp)
			return nil
		}

		return process
	}

	var err error

	switch request.Method {
	case method.GET:
		err = r.get(vh, loc, request, resp)
	case method.POST:
		err = r.post(vh, loc, request, resp)
	case method.PUT:
		err = r.put(vh, loc, request, resp)
	case method.DELETE:
		err = r.delete(vh, loc, request, resp)
	default:
		err = status.ErrMethodNotAllowed
	}

	if err != nil {
		r.Error(id, err, resp)
	}

	return nil
}

// Sweep evicts expired sessions.
func (r *Responder) Sweep() {
	if n := r.sessions.Sweep(); n > 0 {
		r.log.Debug().Int("evicted", n).Int("alive", r.sessions.Len()).Msg("sessions swept")
	}
}

func (r *Responder) touchSession(request *http.Request, resp *http.Response) *session.Session {
	jar, err := request.Cookies()
	if err != nil {
		// a malformed Cookie header just doesn't identify any session
		r.log.Debug().Err(err).Str("remote", request.Remote).Msg("ignoring malformed cookies")
	}

	sess, created := r.sessions.Touch(jar)
	if created {
		resp.Cookie(r.sessions.Cookie(sess))
	}

	return sess
}

// fsError maps filesystem failures onto HTTP errors.
func fsError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return status.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return status.ErrForbidden
	default:
		return err
	}
}
