package http

import (
	"testing"

	"github.com/indigo-web/webserv/http/cookie"
	"github.com/indigo-web/webserv/http/mime"
	"github.com/indigo-web/webserv/http/status"
	"github.com/stretchr/testify/require"
)

func TestResponse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		fields := NewResponse().Reveal()
		require.Equal(t, status.OK, fields.Code)
		require.Equal(t, mime.HTML, fields.ContentType)
		require.Empty(t, fields.Headers)
	})

	t.Run("content type via header", func(t *testing.T) {
		fields := NewResponse().Header("content-type", mime.JSON).Reveal()
		require.Equal(t, mime.JSON, fields.ContentType)
		require.Empty(t, fields.Headers)
	})

	t.Run("error", func(t *testing.T) {
		fields := NewResponse().Error(status.ErrMethodNotAllowed).Reveal()
		require.Equal(t, status.MethodNotAllowed, fields.Code)
		require.Contains(t, string(fields.Body), "405 Method Not Allowed")
	})

	t.Run("redirect", func(t *testing.T) {
		fields := NewResponse().Redirect(status.MovedPermanently, "/new").Reveal()
		require.Equal(t, status.MovedPermanently, fields.Code)
		require.Equal(t, "Location", fields.Headers[0].Key)
		require.Equal(t, "/new", fields.Headers[0].Value)
	})

	t.Run("cookie", func(t *testing.T) {
		fields := NewResponse().Cookie(cookie.New("session_id", "x")).Reveal()
		require.Equal(t, "Set-Cookie", fields.Headers[0].Key)
		require.Equal(t, "session_id=x", fields.Headers[0].Value)
	})

	t.Run("clear", func(t *testing.T) {
		resp := NewResponse().Code(status.NotFound).Header("Allow", "GET").String("x")
		fields := resp.Clear().Reveal()
		require.Equal(t, status.OK, fields.Code)
		require.Empty(t, fields.Headers)
		require.Empty(t, fields.Body)
	})
}
