package method

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethod(t *testing.T) {
	for _, method := range List {
		assert.Equal(t, method.String(), Parse(method.String()).String())
	}
}

func TestUnknown(t *testing.T) {
	for _, str := range []string{"", "get", "HEAD", "PATCH", "OPTIONS", "DELET", "POSTS"} {
		require.Equal(t, Unknown, Parse(str), str)
	}

	require.Equal(t, "UNKNOWN", Unknown.String())
	require.Equal(t, len(List), int(Count))
}

func TestText(t *testing.T) {
	var m Method
	require.NoError(t, m.UnmarshalText([]byte("DELETE")))
	require.Equal(t, DELETE, m)
	require.Error(t, m.UnmarshalText([]byte("PATCH")))

	text, err := POST.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "POST", string(text))

	require.Equal(t, "GET, POST, PUT, DELETE", Join(List))
	require.Empty(t, Join(nil))
}
