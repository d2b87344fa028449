package tcp

import (
	"io"

	"golang.org/x/sys/unix"
)

// Conn is a connected non-blocking socket. Both Read and Write return unix.EAGAIN
// when the operation would block.
type Conn struct {
	FD     int
	Remote string
}

// Read reports the orderly shutdown of the peer by io.EOF.
func (c Conn) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(c.FD, b)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return 0, err
		case n == 0 && len(b) > 0:
			return 0, io.EOF
		}

		return n, nil
	}
}

func (c Conn) Write(b []byte) (int, error) {
	for {
		n, err := unix.Write(c.FD, b)
		if err == unix.EINTR {
			continue
		}

		if n < 0 {
			n = 0
		}

		return n, err
	}
}

// CloseWrite shuts the sending half down. The peer observes EOF, while the connection
// remains readable.
func (c Conn) CloseWrite() error {
	return unix.Shutdown(c.FD, unix.SHUT_WR)
}

func (c Conn) Close() error {
	return unix.Close(c.FD)
}
