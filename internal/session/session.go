// Package session keeps track of clients by a cookie-carried identifier.
package session

import (
	"time"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/webserv/config"
	"github.com/indigo-web/webserv/http/cookie"
)

type Session struct {
	ID       string
	Created  time.Time
	LastSeen time.Time
	// Hits counts the requests made within the session.
	Hits   int
	Values map[string]string
}

// Store is owned by the event loop, so it isn't safe for concurrent use.
type Store struct {
	cfg      config.Session
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore(cfg config.Session) *Store {
	return &Store{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session by its id, if it exists and hasn't expired yet.
func (s *Store) Get(id string) (*Session, bool) {
	sess, found := s.sessions[id]
	if !found {
		return nil, false
	}

	if s.now().Sub(sess.LastSeen) > s.cfg.TTL {
		delete(s.sessions, id)
		return nil, false
	}

	return sess, true
}

// Create starts a new session with a freshly generated id.
func (s *Store) Create() *Session {
	id := uniuri.NewLen(s.cfg.IDLength)
	for _, taken := s.sessions[id]; taken; _, taken = s.sessions[id] {
		id = uniuri.NewLen(s.cfg.IDLength)
	}

	now := s.now()
	sess := &Session{
		ID:       id,
		Created:  now,
		LastSeen: now,
		Values:   make(map[string]string),
	}
	s.sessions[id] = sess

	return sess
}

// Touch resolves the session the cookie jar refers to, or creates a new one. The created
// flag tells whether the client must be given a new cookie.
func (s *Store) Touch(jar cookie.Jar) (sess *Session, created bool) {
	sess, found := s.Get(jar[s.cfg.CookieName])
	if !found {
		sess, created = s.Create(), true
	}

	sess.LastSeen = s.now()
	sess.Hits++

	return sess, created
}

// Cookie returns the cookie carrying the session id.
func (s *Store) Cookie(sess *Session) cookie.Cookie {
	return cookie.Build(s.cfg.CookieName, sess.ID).
		Path("/").
		HttpOnly(true).
		SameSite(cookie.SameSiteLax).
		Cookie()
}

// Sweep evicts every expired session and returns how many were evicted.
func (s *Store) Sweep() (evicted int) {
	now := s.now()

	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen) > s.cfg.TTL {
			delete(s.sessions, id)
			evicted++
		}
	}

	return evicted
}

func (s *Store) Len() int {
	return len(s.sessions)
}
