package formdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultipart(t *testing.T) {
	t.Run("real-world example", func(t *testing.T) {
		data := "------WebKitFormBoundary7MA4YWxkTrZu0gW\r\nContent-Disposition: form-data; " +
			"name=\"username\"\r\n\r\nAlice\r\n------WebKitFormBoundary7MA4YWxkTrZu0gW\r\nCo" +
			"ntent-Disposition: form-data; name=\"profile_pic\"; filename=\"profile.png\"\r\n" +
			"Content-Type: image/png\r\n\r\n[binary\r\nfile content]\r\n------WebKitFormBoundary7MA4YWxkTrZu0gW--\r\n"
		parts, err := ParseMultipart([]byte(data), "----WebKitFormBoundary7MA4YWxkTrZu0gW")
		require.NoError(t, err)
		require.Len(t, parts, 2)

		require.Equal(t, "username", parts[0].Name)
		require.Equal(t, "Alice", string(parts[0].Value))
		require.False(t, parts[0].IsFile())
		require.Equal(t, "text/plain", parts[0].ContentType)

		require.Equal(t, "profile_pic", parts[1].Name)
		require.Equal(t, "profile.png", parts[1].Filename)
		require.Equal(t, "image/png", parts[1].ContentType)
		require.Equal(t, "[binary\r\nfile content]", string(parts[1].Value))
		require.True(t, parts[1].IsFile())
	})

	t.Run("preamble and empty filename", func(t *testing.T) {
		data := "preamble\r\n--xyz\r\nContent-Disposition: form-data; name=\"f\"; filename=\"\"\r\n\r\n" +
			"\r\n--xyz--"
		parts, err := ParseMultipart([]byte(data), "xyz")
		require.NoError(t, err)
		require.Len(t, parts, 1)
		require.True(t, parts[0].IsFile())
		require.Empty(t, parts[0].Filename)
		require.Empty(t, parts[0].Value)
	})

	t.Run("no parts", func(t *testing.T) {
		parts, err := ParseMultipart([]byte("--xyz--\r\n"), "xyz")
		require.NoError(t, err)
		require.Empty(t, parts)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, data := range []string{
			"no boundary at all",
			"--xyz\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nvalue without closing",
			"--xyz\r\nContent-Disposition: attachment\r\n\r\nx\r\n--xyz--",
			"--xyz\r\nContent-Disposition: form-data\r\n\r\nnameless\r\n--xyz--",
			"--xyzgarbage",
		} {
			_, err := ParseMultipart([]byte(data), "xyz")
			require.Error(t, err, data)
		}
	})
}

func TestBoundary(t *testing.T) {
	boundary, ok := Boundary("multipart/form-data; boundary=----WebKitFormBoundary7MA4YWxkTrZu0gW")
	require.True(t, ok)
	require.Equal(t, "----WebKitFormBoundary7MA4YWxkTrZu0gW", boundary)

	boundary, ok = Boundary(`Multipart/Form-Data; charset=utf-8; boundary="quoted"`)
	require.True(t, ok)
	require.Equal(t, "quoted", boundary)

	_, ok = Boundary("multipart/form-data")
	require.False(t, ok)

	_, ok = Boundary("application/json; boundary=x")
	require.False(t, ok)
}
