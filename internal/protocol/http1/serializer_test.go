package http1

import (
	"testing"

	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/httptest"
	"github.com/stretchr/testify/require"
)

func TestSerialize(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		resp := http.NewResponse().
			Code(status.Created).
			ContentType(mime.Plain).
			Header("Location", "/uploads/a.txt").
			Header("Set-Cookie", "session_id=abc", "theme=dark").
			String("hello\r\n\r\nworld")

		raw := Serialize(nil, resp, true, "webserv")
		parsed, rest, err := httptest.Parse(string(raw))
		require.NoError(t, err)
		require.Empty(t, rest)

		require.Equal(t, "HTTP/1.1", parsed.Proto)
		require.Equal(t, 201, parsed.Code)
		require.Equal(t, "Created", parsed.Status)
		require.Equal(t, map[string][]string{
			"location":       {"/uploads/a.txt"},
			"set-cookie":     {"session_id=abc", "theme=dark"},
			"content-type":   {mime.Plain},
			"content-length": {"14"},
			"connection":     {"keep-alive"},
			"server":         {"webserv"},
		}, parsed.Headers)
		require.Equal(t, "hello\r\n\r\nworld", parsed.Body)
	})

	t.Run("close and custom status", func(t *testing.T) {
		resp := http.NewResponse().Code(status.NotFound).Status("Nothing Here").ContentType("")
		parsed, _, err := httptest.Parse(string(Serialize(nil, resp, false, "")))
		require.NoError(t, err)
		require.Equal(t, 404, parsed.Code)
		require.Equal(t, "Nothing Here", parsed.Status)
		require.Equal(t, "close", parsed.Header("connection"))
		require.Equal(t, "0", parsed.Header("content-length"))
		require.Empty(t, parsed.Header("content-type"))
		require.Empty(t, parsed.Header("server"))
	})

	t.Run("explicit headers aren't duplicated", func(t *testing.T) {
		resp := http.NewResponse().
			Header("Content-Length", "3").
			Header("Connection", "upgrade").
			Header("Server", "cgi").
			String("abc")

		parsed, _, err := httptest.Parse(string(Serialize(nil, resp, true, "webserv")))
		require.NoError(t, err)
		require.Equal(t, []string{"3"}, parsed.Headers["content-length"])
		require.Equal(t, []string{"keep-alive"}, parsed.Headers["connection"])
		require.Equal(t, []string{"cgi"}, parsed.Headers["server"])
	})

	t.Run("bodiless codes drop the body", func(t *testing.T) {
		resp := http.NewResponse().
			Code(status.NoContent).
			ContentType(mime.HTML).
			String("stray body")

		raw := Serialize(nil, resp, true, "webserv")
		require.Equal(t,
			"HTTP/1.1 204 No Content\r\nConnection: keep-alive\r\nServer: webserv\r\n\r\n",
			string(raw),
		)

		both := Serialize(raw, http.NewResponse().String("next"), true, "")
		responses, err := httptest.ParseAll(string(both))
		require.NoError(t, err)
		require.Len(t, responses, 2)
		require.Equal(t, 200, responses[1].Code)
		require.Equal(t, "next", responses[1].Body)
	})

	t.Run("appends to the buffer", func(t *testing.T) {
		first := Serialize(nil, http.NewResponse().String("a"), true, "")
		both := Serialize(first, http.NewResponse().String("b"), true, "")
		responses, err := httptest.ParseAll(string(both))
		require.NoError(t, err)
		require.Len(t, responses, 2)
		require.Equal(t, "b", responses[1].Body)
	})
}
