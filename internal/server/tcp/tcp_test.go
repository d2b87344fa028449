package tcp

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func acceptWithin(t *testing.T, l *Listener, timeout time.Duration) Conn {
	deadline := time.Now().Add(timeout)

	for {
		conn, err := l.Accept()
		if err == nil {
			return conn
		}

		require.ErrorIs(t, err, unix.EAGAIN)
		require.True(t, time.Now().Before(deadline), "no connection accepted in time")
		time.Sleep(time.Millisecond)
	}
}

func readWithin(t *testing.T, conn Conn, buff []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)

	for {
		n, err := conn.Read(buff)
		if err != unix.EAGAIN {
			return n, err
		}

		require.True(t, time.Now().Before(deadline), "nothing read in time")
		time.Sleep(time.Millisecond)
	}
}

func TestListener(t *testing.T) {
	l, err := Listen("127.0.0.1", 0, 16)
	require.NoError(t, err)
	defer l.Close()

	host, port, err := net.SplitHostPort(l.Addr())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", host)
	require.NotEqual(t, "0", port)

	_, err = l.Accept()
	require.ErrorIs(t, err, unix.EAGAIN)

	client, err := net.Dial("tcp", l.Addr())
	require.NoError(t, err)

	conn := acceptWithin(t, l, 5*time.Second)
	defer conn.Close()
	require.Equal(t, client.LocalAddr().String(), conn.Remote)

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	buff := make([]byte, 16)
	n, err := readWithin(t, conn, buff, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buff[:n]))

	n, err = conn.Write([]byte("pong"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err = io.ReadFull(client, buff[:4])
	require.NoError(t, err)
	require.Equal(t, "pong", string(buff[:n]))

	require.NoError(t, conn.CloseWrite())
	_, err = client.Read(buff)
	require.ErrorIs(t, err, io.EOF)

	// still readable after the half-close
	_, err = client.Write([]byte("late"))
	require.NoError(t, err)
	n, err = readWithin(t, conn, buff, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "late", string(buff[:n]))

	require.NoError(t, client.Close())
	_, err = readWithin(t, conn, buff, 5*time.Second)
	require.ErrorIs(t, err, io.EOF)
}

func TestListenErrors(t *testing.T) {
	l, err := Listen("127.0.0.1", 0, 16)
	require.NoError(t, err)
	defer l.Close()

	_, port, err := net.SplitHostPort(l.Addr())
	require.NoError(t, err)
	taken, err := strconv.Atoi(port)
	require.NoError(t, err)

	_, err = Listen("127.0.0.1", uint16(taken), 16)
	require.Error(t, err, "the port is already listened on")

	_, err = Listen("not-an-ip.invalid", 8080, 16)
	require.Error(t, err)
}
