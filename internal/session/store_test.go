package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// droppingJar discards writes to exercise the read-back check.
type droppingJar struct{}

func (droppingJar) Get(string) (string, bool) { return "", false }
func (droppingJar) Set(*http.Cookie)          {}
func (droppingJar) Delete(string)             {}

func TestCreateAndGet(t *testing.T) {
	withSecret(t, "test-secret")

	jar := NewMemoryJar()
	store := NewStore(jar)

	payload := testPayload()
	if err := store.Create(payload); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cookie, ok := jar.Cookie(CookieName)
	if !ok {
		t.Fatalf("expected session cookie in jar")
	}
	if !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly cookie")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax, got %v", cookie.SameSite)
	}
	if cookie.Path != "/" {
		t.Fatalf("expected Path=/, got %q", cookie.Path)
	}
	if cookie.Expires.IsZero() {
		t.Fatalf("expected absolute expiry on cookie")
	}

	got := store.Get()
	if got == nil {
		t.Fatalf("expected session after create")
	}
	if *got != payload {
		t.Fatalf("session mismatch: %+v != %+v", *got, payload)
	}
}

func TestGetTreatsCorruptCookieAsAbsent(t *testing.T) {
	withSecret(t, "test-secret")

	jar := NewMemoryJar()
	jar.Set(&http.Cookie{Name: CookieName, Value: "corrupt"})

	store := NewStore(jar)
	if got := store.Get(); got != nil {
		t.Fatalf("expected nil for corrupt cookie, got %+v", got)
	}
}

func TestGetWithoutCookie(t *testing.T) {
	withSecret(t, "test-secret")

	store := NewStore(NewMemoryJar())
	if got := store.Get(); got != nil {
		t.Fatalf("expected nil without cookie, got %+v", got)
	}
}

func TestCreateFailsWhenWriteIsDropped(t *testing.T) {
	withSecret(t, "test-secret")

	store := NewStore(droppingJar{})
	if err := store.Create(testPayload()); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestUpdateTokenPreservesUser(t *testing.T) {
	withSecret(t, "test-secret")

	jar := NewMemoryJar()
	store := NewStore(jar)
	payload := testPayload()
	if err := store.Create(payload); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.UpdateToken("new-access", "new-refresh"); err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}

	got := store.Get()
	if got == nil {
		t.Fatalf("expected session after update")
	}
	if got.User != payload.User {
		t.Fatalf("user block changed on refresh: %+v", got.User)
	}
	if got.AccessToken != "new-access" || got.RefreshToken != "new-refresh" {
		t.Fatalf("tokens not replaced: %+v", got)
	}
}

func TestUpdateTokenWithoutSession(t *testing.T) {
	withSecret(t, "test-secret")

	store := NewStore(NewMemoryJar())
	if err := store.UpdateToken("a", "r"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	withSecret(t, "test-secret")

	jar := NewMemoryJar()
	store := NewStore(jar)
	if err := store.Create(testPayload()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	store.Delete()
	store.Delete()

	if got := store.Get(); got != nil {
		t.Fatalf("expected no session after delete")
	}
}

func TestHTTPJarReadBackAndClear(t *testing.T) {
	withSecret(t, "test-secret")

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/signin", nil)
	rr := httptest.NewRecorder()
	jar := NewHTTPJar(rr, req)

	store := NewStore(jar)
	if err := store.Create(testPayload()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The write must be visible within the same exchange.
	if got := store.Get(); got == nil {
		t.Fatalf("expected session readable after create")
	}

	resp := rr.Result()
	cookies := resp.Cookies()
	if len(cookies) == 0 || cookies[0].Name != CookieName {
		t.Fatalf("expected Set-Cookie header, got %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatalf("expected HttpOnly on the wire")
	}

	store.Delete()
	if got := store.Get(); got != nil {
		t.Fatalf("expected no session after delete in same exchange")
	}
}

func TestHTTPJarReadsRequestCookie(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := Encrypt(testPayload())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	store := NewStore(NewHTTPJar(httptest.NewRecorder(), req))
	got := store.Get()
	if got == nil || got.User.ID != "user-42" {
		t.Fatalf("expected session from request cookie, got %+v", got)
	}
}
