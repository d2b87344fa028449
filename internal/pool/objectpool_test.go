package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectPool(t *testing.T) {
	created := 0
	p := NewObjectPool(2, func() *[]byte {
		created++
		buff := make([]byte, 0, 16)
		return &buff
	})

	a, b, c := p.Acquire(), p.Acquire(), p.Acquire()
	require.Equal(t, 3, created)

	p.Release(a)
	p.Release(b)
	p.Release(c)
	require.Equal(t, 2, p.Idle())

	require.Same(t, b, p.Acquire())
	require.Same(t, a, p.Acquire())
	require.Zero(t, p.Idle())
	require.Equal(t, 3, created)

	p.Acquire()
	require.Equal(t, 4, created)
}
