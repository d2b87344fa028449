// Package tcp provides non-blocking listening and connected sockets as raw descriptors,
// ready to be registered in the poller.
package tcp

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

type Listener struct {
	fd   int
	addr string
}

// Listen opens a non-blocking listening socket with SO_REUSEADDR set. The host may be
// either an IP address or a resolvable name.
func Listen(host string, port uint16, backlog int) (*Listener, error) {
	sa, family, err := sockaddr(host, int(port))
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	l := &Listener{fd: fd}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	if err = unix.Bind(fd, sa); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("bind %s: %w", net.JoinHostPort(host, strconv.Itoa(int(port))), err)
	}

	if err = unix.Listen(fd, backlog); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	local, err := unix.Getsockname(fd)
	if err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("getsockname: %w", err)
	}

	l.addr = addrString(local)

	return l, nil
}

func (l *Listener) FD() int {
	return l.fd
}

// Addr returns the address the socket is actually bound to.
func (l *Listener) Addr() string {
	return l.addr
}

// Accept returns a new non-blocking connection. unix.EAGAIN is returned as is when the
// backlog is drained.
func (l *Listener) Accept() (Conn, error) {
	for {
		fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EINTR, err == unix.ECONNABORTED:
			continue
		case err != nil:
			return Conn{FD: -1}, err
		}

		return Conn{FD: fd, Remote: addrString(sa)}, nil
	}
}

func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

func sockaddr(host string, port int) (unix.Sockaddr, int, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, 0, fmt.Errorf("resolve %s: %w", host, err)
		}

		if len(ips) == 0 {
			return nil, 0, fmt.Errorf("resolve %s: no addresses", host)
		}

		ip = ips[0]
		for _, candidate := range ips {
			if candidate.To4() != nil {
				ip = candidate
				break
			}
		}
	}

	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)

		return sa, unix.AF_INET, nil
	}

	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())

	return sa, unix.AF_INET6, nil
}

func addrString(sa unix.Sockaddr) string {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(sa.Addr[:]).String(), strconv.Itoa(sa.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(sa.Addr[:]).String(), strconv.Itoa(sa.Port))
	default:
		return ""
	}
}
