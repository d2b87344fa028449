package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newPipe(t *testing.T) (r, w int) {
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})

	return fds[0], fds[1]
}

// waitReady retries on spurious wake-ups, like EINTR, until any event arrives.
func waitReady(t *testing.T, p *Poller) []Event {
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		events, _, err := p.Wait(time.Second)
		require.NoError(t, err)
		if len(events) > 0 {
			return events
		}
	}

	require.Fail(t, "no events in time")
	return nil
}

func TestPoller(t *testing.T) {
	p, err := New(16)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, p.Close())
	}()

	t.Run("readiness", func(t *testing.T) {
		r, w := newPipe(t)
		require.NoError(t, p.Add(r, Read))

		events, woken, err := p.Wait(0)
		require.NoError(t, err)
		require.False(t, woken)
		require.Empty(t, events)

		_, err = unix.Write(w, []byte("x"))
		require.NoError(t, err)

		events = waitReady(t, p)
		require.Len(t, events, 1)
		require.Equal(t, r, events[0].FD)
		require.True(t, events[0].Readable())

		require.NoError(t, p.Del(r))
		events, _, err = p.Wait(0)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("interest switching", func(t *testing.T) {
		_, w := newPipe(t)
		require.NoError(t, p.Add(w, Read))

		events, _, err := p.Wait(0)
		require.NoError(t, err)
		require.Empty(t, events)

		require.NoError(t, p.Mod(w, Write))
		events = waitReady(t, p)
		require.Len(t, events, 1)
		require.True(t, events[0].Writable())
		require.NoError(t, p.Del(w))
	})

	t.Run("hang-up is readable", func(t *testing.T) {
		var fds [2]int
		require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
		defer unix.Close(fds[0])

		require.NoError(t, p.Add(fds[0], Read))
		require.NoError(t, unix.Close(fds[1]))

		events := waitReady(t, p)
		require.Len(t, events, 1)
		require.True(t, events[0].Readable())
		require.NoError(t, p.Del(fds[0]))
	})

	t.Run("wake", func(t *testing.T) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = p.Wake()
		}()

		deadline := time.Now().Add(5 * time.Second)
		woken := false
		// Wait returns early on EINTR, so retry until woken
		for !woken && time.Now().Before(deadline) {
			events, w, err := p.Wait(time.Second)
			require.NoError(t, err)
			require.Empty(t, events)
			woken = w
		}

		require.True(t, woken)

		// the counter is drained, so nothing is pending anymore
		_, woken, err := p.Wait(0)
		require.NoError(t, err)
		require.False(t, woken)
	})
}
