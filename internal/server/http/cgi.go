package http

import (
	"github.com/indigo-web/webserv/internal/cgi"
	"github.com/indigo-web/webserv/internal/server/poller"
)

// attach registers the child's pipes and parks the connection until the child is done.
func (e *EventLoop) attach(c *Connection, p *cgi.Process) {
	c.process = p
	c.state = eProcessing
	e.setInterest(c, poller.Paused)

	if fd := p.StdinFD(); fd != -1 {
		e.addPipe(c, fd, poller.Write)
	}

	if fd := p.StdoutFD(); fd != -1 {
		e.addPipe(c, fd, poller.Read)
	}

	if p.StdoutFD() == -1 {
		// must never happen, but otherwise the connection would hang forever
		e.finishCGI(c, nil)
	}
}

func (e *EventLoop) addPipe(c *Connection, fd int, interest poller.Interest) {
	if err := e.poller.Add(fd, interest); err != nil {
		e.log.Error().Err(err).Int("fd", fd).Msg("can't register a cgi pipe")
		return
	}

	e.pipes[fd] = c
}

// forgetPipe drops the descriptor the process has already closed. Closed descriptors
// leave epoll by themselves.
func (e *EventLoop) forgetPipe(fd int) {
	delete(e.pipes, fd)
}

// dropPipes forgets every pipe of the connection. Only descriptors the process still
// holds are unregistered, as numbers of closed ones may already belong to someone else.
func (e *EventLoop) dropPipes(c *Connection) {
	p := c.process

	for fd, owner := range e.pipes {
		if owner != c {
			continue
		}

		if fd == p.StdinFD() || fd == p.StdoutFD() {
			_ = e.poller.Del(fd)
		}

		delete(e.pipes, fd)
	}
}

func (e *EventLoop) handlePipe(c *Connection, fd int) {
	p := c.process

	switch fd {
	case p.StdinFD():
		done, err := p.WriteStdin()
		if done {
			e.forgetPipe(fd)
		}

		if err != nil {
			e.finishCGI(c, err)
		}
	case p.StdoutFD():
		done, err := p.ReadStdout(e.readBuff)
		if done {
			e.forgetPipe(fd)
		}

		switch {
		case err != nil:
			e.finishCGI(c, err)
		case !done:
		case p.TryReap():
			e.finishCGI(c, nil)
		default:
			e.reaping[c] = struct{}{}
		}
	}
}

// reap collects children which have closed their stdout.
func (e *EventLoop) reap() {
	for c := range e.reaping {
		if c.process.TryReap() {
			delete(e.reaping, c)
			e.finishCGI(c, nil)
		}
	}

	zombies := e.zombies[:0]
	for _, p := range e.zombies {
		if !p.TryReap() {
			zombies = append(zombies, p)
		}
	}

	e.zombies = zombies
}

// finishCGI completes the response. A child that has misbehaved or isn't finished yet
// gets killed.
func (e *EventLoop) finishCGI(c *Connection, err error) {
	p := c.process
	if err != nil || !p.Finished() {
		e.kill(c)
	} else {
		e.dropPipes(c)
	}

	delete(e.reaping, c)
	c.process = nil
	e.responder.Finish(c.vh, p, err, c.response)
	e.respond(c)
}

// abandon kills the child of the connection without completing the response.
func (e *EventLoop) abandon(c *Connection) {
	e.kill(c)
	delete(e.reaping, c)
	c.process = nil
}

func (e *EventLoop) kill(c *Connection) {
	p := c.process
	e.dropPipes(c)
	p.Kill()

	if !p.TryReap() {
		e.zombies = append(e.zombies, p)
	}
}
