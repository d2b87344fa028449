package http

import (
	"time"

	"github.com/indigo-web/webserv/config"
	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/internal/cgi"
	"github.com/indigo-web/webserv/internal/protocol/http1"
	"github.com/indigo-web/webserv/internal/server/poller"
	"github.com/indigo-web/webserv/internal/server/tcp"
	"github.com/indigo-web/webserv/vhost"
)

// Connection is the per-client state. It's exclusively owned by the event loop.
type Connection struct {
	conn  tcp.Conn
	group vhost.Group

	parser   *http1.Parser
	request  *http.Request
	response *http.Response
	// vh is resolved once per request, as soon as its headers are parsed.
	vh         vhost.ID
	vhResolved bool

	out       []byte
	written   int
	keepAlive bool
	drained   int

	state      connState
	interest   poller.Interest
	lastActive time.Time
	process    *cgi.Process
}

func newConnection(cfg *config.Config, conn tcp.Conn, group vhost.Group, now time.Time) *Connection {
	c := &Connection{
		request:  http.NewRequest(),
		response: http.NewResponse(),
		out:      make([]byte, 0, cfg.NET.WriteBufferSize),
	}
	c.bind(conn, group, now)

	return c
}

// bind assigns the client to the connection. Connections are recycled, so everything
// left from the previous client is discarded.
func (c *Connection) bind(conn tcp.Conn, group vhost.Group, now time.Time) {
	if c.parser != nil {
		c.parser.Discard()
	}

	c.conn = conn
	c.group = group
	c.request.Remote = conn.Remote
	c.response.Clear()
	c.vhResolved = false
	c.out = c.out[:0]
	c.written = 0
	c.keepAlive = false
	c.drained = 0
	c.state = eReading
	c.interest = poller.Read
	c.lastActive = now
	c.process = nil
}

func (c *Connection) FD() int {
	return c.conn.FD
}

func (c *Connection) Remote() string {
	return c.conn.Remote
}

func (c *Connection) LastActive() time.Time {
	return c.lastActive
}

// ConnectionTable maps client sockets onto their connections.
type ConnectionTable struct {
	conns map[int]*Connection
}

func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{
		conns: make(map[int]*Connection),
	}
}

func (t *ConnectionTable) Add(c *Connection) {
	t.conns[c.FD()] = c
}

func (t *ConnectionTable) Get(fd int) (*Connection, bool) {
	c, found := t.conns[fd]
	return c, found
}

func (t *ConnectionTable) Remove(fd int) {
	delete(t.conns, fd)
}

func (t *ConnectionTable) Len() int {
	return len(t.conns)
}

// Idle returns connections which had no activity for longer than timeout. Connections
// waiting for a CGI child aren't considered idle, as they're bound by the CGI timeout.
// Lingering ones are bound by their own timeout, see Lingering.
func (t *ConnectionTable) Idle(now time.Time, timeout time.Duration) []*Connection {
	var idle []*Connection

	for _, c := range t.conns {
		if c.state != eProcessing && c.state != eLingering && now.Sub(c.lastActive) > timeout {
			idle = append(idle, c)
		}
	}

	return idle
}

// Lingering returns connections which have been discarding input for longer than
// timeout.
func (t *ConnectionTable) Lingering(now time.Time, timeout time.Duration) []*Connection {
	var lingering []*Connection

	for _, c := range t.conns {
		if c.state == eLingering && now.Sub(c.lastActive) > timeout {
			lingering = append(lingering, c)
		}
	}

	return lingering
}

// Processing returns connections waiting for a CGI child.
func (t *ConnectionTable) Processing() []*Connection {
	var processing []*Connection

	for _, c := range t.conns {
		if c.state == eProcessing {
			processing = append(processing, c)
		}
	}

	return processing
}

// All returns every connection in no particular order.
func (t *ConnectionTable) All() []*Connection {
	all := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		all = append(all, c)
	}

	return all
}
