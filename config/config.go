package config

import (
	"time"
)

type (
	Headers struct {
		// MaxSize limits the whole header block, request line included. Exceeding it
		// results in status.ErrHeaderFieldsTooLarge.
		MaxSize int
		// MaxCount is the maximal number of header lines in a single request.
		MaxCount int
		// Server is the value of the Server header attached to every response.
		Server string
	}

	Body struct {
		// ProvisionalMaxSize is applied while the effective limit for the request isn't
		// resolved yet, i.e. before the routing had a chance to pick a location.
		ProvisionalMaxSize uint64
		// DefaultMaxSize is used when neither a location nor a virtual host sets
		// max_body_size.
		DefaultMaxSize uint64
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket. The buffer is shared among all the connections.
		ReadBufferSize int
		// WriteBufferSize is an initial capacity of the per-connection response buffer.
		WriteBufferSize int
		// IdleTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed.
		IdleTimeout time.Duration
		// PollInterval is the maximal time a single readiness wait may block. Timers, such as
		// idle connections and CGI timeouts, are checked at least that often.
		PollInterval time.Duration
		// Backlog is passed to listen(2).
		Backlog int
		// MaxEvents is how many readiness events are fetched at once.
		MaxEvents int
		// ConnPoolSize is how many closed connections are kept to be reused, along with
		// their buffers.
		ConnPoolSize int
		// LingerTimeout bounds how long the rest of a rejected request is discarded after
		// the error response, before the connection is closed.
		LingerTimeout time.Duration
		// LingerMaxSize is how many bytes of a rejected request are discarded at most.
		LingerMaxSize int
	}

	CGI struct {
		// Timeout is the maximal time a CGI child may run. When exceeded, the child gets
		// killed and the client receives 504 Gateway Timeout.
		Timeout time.Duration
		// MaxOutputSize limits the amount of bytes read from a child's stdout. Overflowing
		// it results in 502 Bad Gateway.
		MaxOutputSize int
		// Software is exported to children as SERVER_SOFTWARE.
		Software string
	}

	Session struct {
		// TTL is the inactivity period after which a session is evicted.
		TTL time.Duration
		// CookieName is the name of the cookie carrying the session id.
		CookieName string
		// IDLength is the length of generated session ids.
		IDLength int
	}

	Static struct {
		// Index is the file served for directories when a location doesn't set its own.
		Index string
	}
)

// Config holds tuning settings used across the server: limits, timeouts and buffer sizes.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	Headers Headers
	Body    Body
	NET     NET
	CGI     CGI
	Session Session
	Static  Static
}

// Default returns default config.
func Default() *Config {
	return &Config{
		Headers: Headers{
			MaxSize:  16 * 1024,
			MaxCount: 100,
			Server:   "webserv",
		},
		Body: Body{
			ProvisionalMaxSize: 1024 * 1024,
			DefaultMaxSize:     1024 * 1024,
		},
		NET: NET{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 2 * 1024,
			IdleTimeout:     60 * time.Second,
			PollInterval:    time.Second,
			Backlog:         128,
			MaxEvents:       256,
			ConnPoolSize:    64,
			LingerTimeout:   2 * time.Second,
			LingerMaxSize:   1024 * 1024,
		},
		CGI: CGI{
			Timeout:       30 * time.Second,
			MaxOutputSize: 16 * 1024 * 1024,
			Software:      "webserv/1.0",
		},
		Session: Session{
			TTL:        30 * time.Minute,
			CookieName: "session_id",
			IDLength:   8,
		},
		Static: Static{
			Index: "index.html",
		},
	}
}
