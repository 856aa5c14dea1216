package session

import (
	"errors"
	"net/http"
	"time"
)

// CookieName is the session cookie presented to the UI collaborator.
const CookieName = "session"

var (
	// ErrNoSession is returned by operations that require an existing
	// session, such as a token refresh.
	ErrNoSession = errors.New("session: no active session")

	// ErrWriteFailed means the cookie write could not be verified by
	// read-back. Login flows must abort on it.
	ErrWriteFailed = errors.New("session: cookie write failed")
)

// Store persists the encoded session token in a cookie jar and owns the
// create/read/update/delete lifecycle.
type Store struct {
	jar    Jar
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

// StoreOption configures Store behavior.
type StoreOption func(*Store)

// WithSecure marks cookies Secure; enabled in production deployments.
func WithSecure(secure bool) StoreOption {
	return func(s *Store) { s.secure = secure }
}

// WithTTL overrides the session lifetime (cookie expiry and token expiry
// move together).
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewStore binds a store to a jar.
func NewStore(jar Jar, opts ...StoreOption) *Store {
	s := &Store{
		jar: jar,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create encodes the payload and persists it as an HttpOnly cookie. The
// write is verified by reading the jar back; a missing value aborts with
// ErrWriteFailed.
func (s *Store) Create(payload Payload) error {
	token, err := EncryptWithTTL(payload, s.ttl)
	if err != nil {
		return err
	}
	s.jar.Set(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if got, ok := s.jar.Get(CookieName); !ok || got == "" {
		return ErrWriteFailed
	}
	return nil
}

// Get reads and verifies the current session. A missing, corrupt, or
// expired cookie yields nil; it is never an error.
func (s *Store) Get() *Payload {
	raw, ok := s.jar.Get(CookieName)
	if !ok || raw == "" {
		return nil
	}
	payload, err := Decrypt(raw)
	if err != nil {
		return nil
	}
	return payload
}

// UpdateToken replaces only the token fields of the existing session,
// preserving the user block, and rewrites the cookie in full. It fails
// with ErrNoSession when there is nothing to update.
func (s *Store) UpdateToken(accessToken, refreshToken string) error {
	current := s.Get()
	if current == nil {
		return ErrNoSession
	}
	next := Payload{
		User:         current.User,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	return s.Create(next)
}

// Delete removes the session cookie. Idempotent.
func (s *Store) Delete() {
	s.jar.Delete(CookieName)
}
