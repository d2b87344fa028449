// Package http runs the single-threaded readiness loop: it accepts clients, feeds their
// bytes into parsers, hands complete requests to the responder, drives CGI children
// through their pipes and writes responses back.
package http

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/indigo-web/webserv/config"
	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/cgi"
	"github.com/indigo-web/webserv/internal/pool"
	"github.com/indigo-web/webserv/internal/protocol/http1"
	"github.com/indigo-web/webserv/internal/responder"
	"github.com/indigo-web/webserv/internal/server/poller"
	"github.com/indigo-web/webserv/internal/server/tcp"
	"github.com/indigo-web/webserv/router"
	"github.com/indigo-web/webserv/vhost"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// reapInterval bounds the wait while an exited child hasn't been collected yet, as
// child termination isn't observable through the poller.
const reapInterval = 10 * time.Millisecond

type listener struct {
	*tcp.Listener
	group vhost.Group
}

type EventLoop struct {
	cfg       *config.Config
	vhosts    *vhost.Set
	responder *responder.Responder
	log       zerolog.Logger
	now       func() time.Time

	poller    *poller.Poller
	listeners map[int]listener
	conns     *ConnectionTable
	free      *pool.ObjectPool[*Connection]
	// pipes maps CGI pipe descriptors onto the connections they serve.
	pipes map[int]*Connection
	// reaping holds connections whose child has closed stdout, but isn't reaped yet.
	reaping map[*Connection]struct{}
	// zombies are killed children nobody waits for anymore.
	zombies   []*cgi.Process
	readBuff  []byte
	lastSweep time.Time
	stopped   atomic.Bool
}

func NewEventLoop(
	cfg *config.Config, vhosts *vhost.Set, responder *responder.Responder, log zerolog.Logger,
) (*EventLoop, error) {
	p, err := poller.New(cfg.NET.MaxEvents)
	if err != nil {
		return nil, err
	}

	e := &EventLoop{
		cfg:       cfg,
		vhosts:    vhosts,
		responder: responder,
		log:       log,
		now:       time.Now,
		poller:    p,
		listeners: make(map[int]listener),
		conns:     NewConnectionTable(),
		pipes:     make(map[int]*Connection),
		reaping:   make(map[*Connection]struct{}),
		readBuff:  make([]byte, cfg.NET.ReadBufferSize),
	}
	e.free = pool.NewObjectPool(cfg.NET.ConnPoolSize, e.newConnection)

	return e, nil
}

// newConnection creates a connection with no client bound to it yet.
func (e *EventLoop) newConnection() *Connection {
	c := newConnection(e.cfg, tcp.Conn{FD: -1}, vhost.Group{}, time.Time{})
	c.parser = http1.NewParser(e.cfg, c.request, func(request *http.Request) uint64 {
		return e.resolve(c, request)
	})

	return c
}

// Listen opens a listening socket for every distinct address of the virtual hosts.
// If any of them fails, already opened ones are closed.
func (e *EventLoop) Listen() error {
	for _, group := range e.vhosts.Groups() {
		l, err := tcp.Listen(group.Host, group.Port, e.cfg.NET.Backlog)
		if err == nil {
			err = e.poller.Add(l.FD(), poller.Read)
		}

		if err != nil {
			e.closeListeners()
			return fmt.Errorf("listen %s: %w", group.Addr(), err)
		}

		e.listeners[l.FD()] = listener{Listener: l, group: group}
		e.log.Info().Str("addr", l.Addr()).Int("vhosts", len(group.Servers)).Msg("listening")
	}

	return nil
}

// Addrs returns the addresses the listeners are actually bound to.
func (e *EventLoop) Addrs() []string {
	addrs := make([]string, 0, len(e.listeners))
	for _, l := range e.listeners {
		addrs = append(addrs, l.Addr())
	}

	return addrs
}

// Run serves until Stop is called. Every connection and listener is closed before
// returning.
func (e *EventLoop) Run() error {
	defer e.shutdown()

	for !e.stopped.Load() {
		timeout := e.cfg.NET.PollInterval
		if len(e.reaping) > 0 || len(e.zombies) > 0 {
			timeout = min(timeout, reapInterval)
		}

		events, _, err := e.poller.Wait(timeout)
		if err != nil {
			return err
		}

		for _, event := range events {
			if l, found := e.listeners[event.FD]; found {
				e.accept(l)
			}
		}

		for _, event := range events {
			if c, found := e.conns.Get(event.FD); found {
				e.handleConn(c, event)
			}
		}

		for _, event := range events {
			if c, found := e.pipes[event.FD]; found {
				e.handlePipe(c, event.FD)
			}
		}

		e.reap()
		e.sweep(e.now())
	}

	return nil
}

// Stop makes Run return. It's safe to call it from any goroutine.
func (e *EventLoop) Stop() {
	if e.stopped.CompareAndSwap(false, true) {
		if err := e.poller.Wake(); err != nil {
			e.log.Error().Err(err).Msg("failed to wake the event loop up")
		}
	}
}

func (e *EventLoop) accept(l listener) {
	for {
		conn, err := l.Accept()
		switch {
		case err == nil:
		case errors.Is(err, unix.EAGAIN):
			return
		case errors.Is(err, unix.EMFILE), errors.Is(err, unix.ENFILE),
			errors.Is(err, unix.ENOBUFS), errors.Is(err, unix.ENOMEM):
			// the pending clients stay in the backlog until the next iteration
			e.log.Warn().Err(err).Str("addr", l.Addr()).Msg("accept postponed")
			return
		default:
			e.log.Error().Err(err).Str("addr", l.Addr()).Msg("accept failed")
			return
		}

		if err = e.poller.Add(conn.FD, poller.Read); err != nil {
			e.log.Error().Err(err).Str("remote", conn.Remote).Msg("can't register a connection")
			_ = conn.Close()
			continue
		}

		c := e.free.Acquire()
		c.bind(conn, l.group, e.now())
		e.conns.Add(c)
		e.log.Debug().Str("remote", conn.Remote).Int("fd", conn.FD).Msg("connection accepted")
	}
}

// resolve picks the virtual host as soon as the request headers are known and returns
// the effective body limit.
func (e *EventLoop) resolve(c *Connection, request *http.Request) uint64 {
	c.vh = e.vhosts.Select(c.group, request.Headers.Value("host"))
	c.vhResolved = true

	vh := e.vhosts.Server(c.vh)
	loc := router.SelectLocation(vh, request.Method, request.Path)

	return router.MaxBodySize(vh, loc, e.cfg.Body.DefaultMaxSize)
}

func (e *EventLoop) handleConn(c *Connection, event poller.Event) {
	switch c.state {
	case eReading:
		if event.Readable() {
			e.read(c)
		}
	case eWriting:
		if event.Writable() {
			e.write(c)
		}
	case eProcessing:
		if event.Hangup() {
			e.log.Debug().Str("remote", c.Remote()).Msg("client has gone while waiting for cgi")
			e.close(c)
		}
	case eLingering:
		if event.Readable() {
			e.drain(c)
		}
	}
}

func (e *EventLoop) read(c *Connection) {
	for c.parser.Parsing() {
		n, err := c.conn.Read(e.readBuff)
		switch {
		case err == nil:
		case errors.Is(err, unix.EAGAIN):
			return
		case errors.Is(err, io.EOF):
			e.log.Debug().Str("remote", c.Remote()).Msg("connection closed by peer")
			e.close(c)
			return
		default:
			e.log.Warn().Err(err).Str("remote", c.Remote()).Msg("read failed")
			e.close(c)
			return
		}

		c.lastActive = e.now()
		c.parser.Feed(e.readBuff[:n])
	}

	e.process(c)
}

// process handles the parser outcome: either an error response or the response to
// a complete request.
func (e *EventLoop) process(c *Connection) {
	switch {
	case c.parser.HasError():
		if !c.vhResolved {
			c.vh = e.vhosts.Select(c.group, c.request.Headers.Value("host"))
		}

		e.log.Debug().Err(c.parser.Err()).Str("remote", c.Remote()).Msg("malformed request")
		c.response.Clear()
		e.responder.Error(c.vh, c.parser.Err(), c.response)
		c.keepAlive = false
		e.respond(c)
	case c.parser.Complete():
		c.keepAlive = c.request.KeepAlive()
		if process := e.responder.Respond(c.vh, c.request, c.response); process != nil {
			e.attach(c, process)
			return
		}

		e.respond(c)
	}
}

// respond serializes the response and switches the connection to writing.
func (e *EventLoop) respond(c *Connection) {
	fields := c.response.Reveal()
	c.out = http1.Serialize(c.out[:0], c.response, c.keepAlive, e.cfg.Headers.Server)
	c.written = 0
	c.state = eWriting
	e.setInterest(c, poller.Write)

	e.log.Info().
		Str("remote", c.Remote()).
		Str("method", c.request.RawMethod).
		Str("target", c.request.Target).
		Int("code", int(fields.Code)).
		Int("size", len(fields.Body)).
		Msg("")
}

func (e *EventLoop) write(c *Connection) {
	for c.written < len(c.out) {
		n, err := c.conn.Write(c.out[c.written:])
		switch {
		case err == nil:
			c.written += n
			if n > 0 {
				c.lastActive = e.now()
			}
		case errors.Is(err, unix.EAGAIN):
			return
		default:
			e.log.Debug().Err(err).Str("remote", c.Remote()).Msg("write failed")
			e.close(c)
			return
		}
	}

	c.lastActive = e.now()

	switch {
	case c.keepAlive:
	case c.parser.HasError():
		// the request may still be arriving, and closing a socket with unread data
		// resets it, possibly before the client got the response
		e.linger(c)
		return
	default:
		e.close(c)
		return
	}

	c.parser.Reset()
	c.response.Clear()
	c.vhResolved = false
	c.state = eReading
	e.setInterest(c, poller.Read)

	if c.parser.Buffered() > 0 {
		// pipelined request
		c.parser.Feed(nil)
		if !c.parser.Parsing() {
			e.process(c)
		}
	}
}

// linger shuts the sending half down and keeps reading until the client closes the
// connection, the linger timeout expires or too much is discarded.
func (e *EventLoop) linger(c *Connection) {
	if err := c.conn.CloseWrite(); err != nil {
		e.log.Debug().Err(err).Str("remote", c.Remote()).Msg("shutdown failed")
		e.close(c)
		return
	}

	c.state = eLingering
	c.drained = 0
	e.setInterest(c, poller.Read)
}

func (e *EventLoop) drain(c *Connection) {
	for {
		n, err := c.conn.Read(e.readBuff)
		switch {
		case err == nil:
			c.drained += n
			if c.drained > e.cfg.NET.LingerMaxSize {
				e.log.Debug().Str("remote", c.Remote()).Msg("too much data after a rejected request")
				e.close(c)
				return
			}
		case errors.Is(err, unix.EAGAIN):
			return
		default:
			e.close(c)
			return
		}
	}
}

func (e *EventLoop) setInterest(c *Connection, interest poller.Interest) {
	if c.interest == interest {
		return
	}

	if err := e.poller.Mod(c.FD(), interest); err != nil {
		e.log.Error().Err(err).Str("remote", c.Remote()).Msg("can't switch interest")
		return
	}

	c.interest = interest
}

func (e *EventLoop) close(c *Connection) {
	if c.process != nil {
		e.abandon(c)
	}

	delete(e.reaping, c)
	_ = e.poller.Del(c.FD())
	if err := c.conn.Close(); err != nil {
		e.log.Warn().Err(err).Str("remote", c.Remote()).Msg("close failed")
	}

	e.conns.Remove(c.FD())
	e.log.Debug().Str("remote", c.Remote()).Msg("connection closed")
	e.free.Release(c)
}

func (e *EventLoop) closeListeners() {
	for fd, l := range e.listeners {
		_ = e.poller.Del(fd)
		if err := l.Close(); err != nil {
			e.log.Warn().Err(err).Str("addr", l.Addr()).Msg("failed to close the listener")
		}

		delete(e.listeners, fd)
	}
}

func (e *EventLoop) shutdown() {
	for _, c := range e.conns.All() {
		e.close(c)
	}

	e.closeListeners()

	for _, p := range e.zombies {
		p.TryReap()
	}

	e.zombies = nil
	_ = e.poller.Close()
	e.log.Info().Msg("stopped")
}

// sweep evicts idle connections and kills overdue children. It runs at most once per
// poll interval.
func (e *EventLoop) sweep(now time.Time) {
	if now.Sub(e.lastSweep) < e.cfg.NET.PollInterval {
		return
	}

	e.lastSweep = now

	for _, c := range e.conns.Idle(now, e.cfg.NET.IdleTimeout) {
		e.log.Debug().Str("remote", c.Remote()).Stringer("state", c.state).Msg("idle connection evicted")
		e.close(c)
	}

	for _, c := range e.conns.Lingering(now, e.cfg.NET.LingerTimeout) {
		e.close(c)
	}

	for _, c := range e.conns.Processing() {
		if now.Sub(c.process.Started()) <= e.cfg.CGI.Timeout {
			continue
		}

		e.log.Warn().
			Int("pid", c.process.Pid()).
			Str("target", c.request.Target).
			Msg("cgi timed out")
		e.abandon(c)
		e.responder.Error(c.vh, status.ErrGatewayTimeout, c.response)
		e.respond(c)
	}

	e.responder.Sweep()
}
