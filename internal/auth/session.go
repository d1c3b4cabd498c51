package auth

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const SessionCookie = "graphpilot_session"

// Session is the server-side state behind a browser cookie.
type Session struct {
	OAuthState string
	MSToken    *oauth2.Token
	MSEmail    string

	expires time.Time
}

// AccessToken returns the stored Microsoft access token, if any.
func (s Session) AccessToken() string {
	if s.MSToken == nil {
		return ""
	}
	return s.MSToken.AccessToken
}

// Sessions keeps sessions in memory keyed by a random cookie value.
type Sessions struct {
	ttl    time.Duration
	secure bool
	now    func() time.Time

	mu    sync.Mutex
	items map[string]Session
}

// NewSessions creates a store whose sessions expire ttl after their last save.
func NewSessions(ttl time.Duration, secure bool) *Sessions {
	return &Sessions{
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
		items:  make(map[string]Session),
	}
}

// Load returns the request's session. A missing or expired session yields the zero value.
func (s *Sessions) Load(r *http.Request) Session {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return Session{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[cookie.Value]
	if !ok {
		return Session{}
	}
	if s.now().After(sess.expires) {
		delete(s.items, cookie.Value)
		return Session{}
	}
	return sess
}

// Save stores sess under the request's cookie, issuing a new cookie when needed.
func (s *Sessions) Save(w http.ResponseWriter, r *http.Request, sess Session) {
	token := ""
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		token = cookie.Value
	}

	s.mu.Lock()
	s.prune()
	if _, ok := s.items[token]; !ok {
		token = randomHex(32)
	}
	sess.expires = s.now().Add(s.ttl)
	s.items[token] = sess
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
}

// Clear drops the request's session and expires the cookie.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.items, cookie.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Len reports how many live sessions are held.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	return len(s.items)
}

// prune must be called with mu held.
func (s *Sessions) prune() {
	now := s.now()
	for k, v := range s.items {
		if now.After(v.expires) {
			delete(s.items, k)
		}
	}
}
