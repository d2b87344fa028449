// Package poller wraps epoll. Notifications are level-triggered, and an eventfd is
// registered internally so a blocked Wait can be interrupted from another goroutine.
package poller

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

type Interest uint32

const (
	// Paused keeps the descriptor registered, but only hang-ups and errors are reported.
	Paused Interest = 0
	Read   Interest = unix.EPOLLIN | unix.EPOLLRDHUP
	Write  Interest = unix.EPOLLOUT
)

type Event struct {
	FD    int
	flags uint32
}

// Readable reports whether reading won't block. Hang-ups and errors are reported as
// readable too, so the following read observes them.
func (e Event) Readable() bool {
	return e.flags&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0
}

// Writable reports whether writing won't block. Errors are reported as writable too.
func (e Event) Writable() bool {
	return e.flags&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0
}

// Hangup reports whether the peer has gone or the descriptor failed.
func (e Event) Hangup() bool {
	return e.flags&(unix.EPOLLHUP|unix.EPOLLERR) != 0
}

type Poller struct {
	epfd, wakefd int
	events       []unix.EpollEvent
	ready        []Event
}

func New(maxEvents int) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	p := &Poller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, maxEvents),
		ready:  make([]Event, 0, maxEvents),
	}

	if err = p.Add(wakefd, Read); err != nil {
		_ = p.Close()
		return nil, err
	}

	return p, nil
}

func (p *Poller) Add(fd int, interest Interest) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, interest)
}

// Mod replaces the interest of an already registered descriptor.
func (p *Poller) Mod(fd int, interest Interest) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, interest)
}

func (p *Poller) Del(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del %d: %w", fd, err)
	}

	return nil
}

func (p *Poller) ctl(op, fd int, interest Interest) error {
	event := unix.EpollEvent{
		Events: uint32(interest),
		Fd:     int32(fd),
	}

	if err := unix.EpollCtl(p.epfd, op, fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl %d: %w", fd, err)
	}

	return nil
}

// Wait blocks for at most timeout until any registered descriptor is ready. The woken
// flag reports whether Wake was called meanwhile. Returned events are valid until the
// next call.
func (p *Poller) Wait(timeout time.Duration) (events []Event, woken bool, err error) {
	n, err := unix.EpollWait(p.epfd, p.events, int(timeout.Milliseconds()))
	switch {
	case err == unix.EINTR:
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("epoll_wait: %w", err)
	}

	p.ready = p.ready[:0]

	for _, event := range p.events[:n] {
		if int(event.Fd) == p.wakefd {
			p.drainWake()
			woken = true
			continue
		}

		p.ready = append(p.ready, Event{FD: int(event.Fd), flags: event.Events})
	}

	return p.ready, woken, nil
}

// Wake interrupts the ongoing or the next Wait call. It's safe to call it concurrently.
func (p *Poller) Wake() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)

	if _, err := unix.Write(p.wakefd, one[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}

	return nil
}

func (p *Poller) drainWake() {
	var counter [8]byte
	_, _ = unix.Read(p.wakefd, counter[:])
}

func (p *Poller) Close() error {
	_ = unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}
