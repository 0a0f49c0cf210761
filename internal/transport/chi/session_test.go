package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func captureSession(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = SessionID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func TestSessionMiddleware_IssuesCookie(t *testing.T) {
	var got string
	handler := SessionMiddleware(time.Hour, false)(captureSession(&got))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected uuid session id, got %q", got)
	}
	c := sessionCookie(rr)
	if c == nil {
		t.Fatal("expected session cookie")
	}
	if c.Value != got || !c.HttpOnly || c.MaxAge != 3600 {
		t.Errorf("unexpected cookie %+v", c)
	}
}

func TestSessionMiddleware_ReusesValidCookie(t *testing.T) {
	var got string
	handler := SessionMiddleware(time.Hour, true)(captureSession(&got))
	id := uuid.NewString()

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got != id {
		t.Errorf("expected session %q, got %q", id, got)
	}
	if c := sessionCookie(rr); c == nil || !c.Secure {
		t.Errorf("expected refreshed secure cookie, got %+v", c)
	}
}

func TestSessionMiddleware_ReplacesInvalidCookie(t *testing.T) {
	var got string
	handler := SessionMiddleware(time.Hour, false)(captureSession(&got))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "../../etc"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got == "../../etc" {
		t.Fatal("invalid session id must not be trusted")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("expected fresh uuid, got %q", got)
	}
}

func TestSessionMiddleware_ExemptPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics"} {
		got := "unset"
		handler := SessionMiddleware(time.Hour, false)(captureSession(&got))

		req := httptest.NewRequest("GET", path, http.NoBody)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if got != "" {
			t.Errorf("%s: expected no session, got %q", path, got)
		}
		if sessionCookie(rr) != nil {
			t.Errorf("%s: expected no cookie", path)
		}
	}
}

func TestSessionMiddleware_CookieLifetime(t *testing.T) {
	var got string
	lifetime := 365 * 24 * time.Hour
	handler := SessionMiddleware(lifetime, false)(captureSession(&got))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	c := sessionCookie(rr)
	if c == nil {
		t.Fatal("expected session cookie")
	}
	if c.MaxAge != int(lifetime.Seconds()) {
		t.Errorf("MaxAge = %d, want %d", c.MaxAge, int(lifetime.Seconds()))
	}
}
