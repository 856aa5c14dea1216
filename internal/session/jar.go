package session

import (
	"net/http"
	"sync"
	"time"
)

// Jar abstracts where session cookies live so the store can be exercised
// both inside an HTTP exchange and from tests.
type Jar interface {
	// Get returns the cookie value, reflecting writes made through this Jar
	// within the same exchange.
	Get(name string) (string, bool)
	Set(cookie *http.Cookie)
	Delete(name string)
}

// HTTPJar binds a Jar to one request/response pair. Writes go to the
// response headers; reads prefer cookies written during this exchange and
// fall back to the request.
type HTTPJar struct {
	r       *http.Request
	w       http.ResponseWriter
	written map[string]*http.Cookie
}

// NewHTTPJar wraps an in-flight HTTP exchange.
func NewHTTPJar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	return &HTTPJar{r: r, w: w, written: make(map[string]*http.Cookie)}
}

func (j *HTTPJar) Get(name string) (string, bool) {
	if c, ok := j.written[name]; ok {
		if c.MaxAge < 0 {
			return "", false
		}
		return c.Value, true
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *HTTPJar) Set(cookie *http.Cookie) {
	http.SetCookie(j.w, cookie)
	j.written[cookie.Name] = cookie
}

func (j *HTTPJar) Delete(name string) {
	expired := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(j.w, expired)
	j.written[name] = expired
}

// MemoryJar is an in-process Jar for tests and non-HTTP callers.
type MemoryJar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

// NewMemoryJar returns an empty jar.
func NewMemoryJar() *MemoryJar {
	return &MemoryJar{cookies: make(map[string]*http.Cookie)}
}

func (j *MemoryJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *MemoryJar) Set(cookie *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies[cookie.Name] = cookie
}

func (j *MemoryJar) Delete(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.cookies, name)
}

// Cookie returns the stored cookie so tests can assert on its attributes.
func (j *MemoryJar) Cookie(name string) (*http.Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	return c, ok
}
