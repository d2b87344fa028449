package session

import (
	"testing"
	"time"

	"github.com/indigo-web/webserv/config"
	"github.com/indigo-web/webserv/http/cookie"
	"github.com/stretchr/testify/require"
)

func newStore() (*Store, *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(config.Default().Session)
	store.now = func() time.Time {
		return now
	}

	return store, &now
}

func TestStore(t *testing.T) {
	t.Run("touch creates and resumes", func(t *testing.T) {
		store, _ := newStore()

		sess, created := store.Touch(cookie.NewJar())
		require.True(t, created)
		require.Len(t, sess.ID, 8)
		require.Equal(t, 1, sess.Hits)

		jar := cookie.Jar{"session_id": sess.ID}
		again, created := store.Touch(jar)
		require.False(t, created)
		require.Same(t, sess, again)
		require.Equal(t, 2, again.Hits)
	})

	t.Run("unknown id starts a new session", func(t *testing.T) {
		store, _ := newStore()
		sess, created := store.Touch(cookie.Jar{"session_id": "forged"})
		require.True(t, created)
		require.NotEqual(t, "forged", sess.ID)
	})

	t.Run("expiry", func(t *testing.T) {
		store, now := newStore()
		sess := store.Create()
		stale := store.Create()

		*now = now.Add(20 * time.Minute)
		_, found := store.Get(sess.ID)
		require.True(t, found)
		store.Touch(cookie.Jar{"session_id": sess.ID})

		*now = now.Add(15 * time.Minute)
		require.Equal(t, 1, store.Sweep())
		require.Equal(t, 1, store.Len())

		_, found = store.Get(stale.ID)
		require.False(t, found)

		*now = now.Add(time.Hour)
		_, found = store.Get(sess.ID)
		require.False(t, found)
		require.Zero(t, store.Len())
	})

	t.Run("cookie", func(t *testing.T) {
		store, _ := newStore()
		sess := store.Create()
		require.Equal(t, "session_id="+sess.ID+"; Path=/; SameSite=Lax; HttpOnly", store.Cookie(sess).String())
	})
}
