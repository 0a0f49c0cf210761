package chi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionCookie names the cookie carrying the browser session id.
const SessionCookie = "kfsearch_session"

// exemptPaths are routes served without a session (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type sessionKey struct{}

// SessionMiddleware attaches a session id to every request, issuing a new UUID
// cookie when the request has none or an invalid one. The id also owns the stored
// selection, so lifetime is independent of the server-side session idle TTL.
func SessionMiddleware(lifetime time.Duration, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			id := ""
			if c, err := r.Cookie(SessionCookie); err == nil {
				if u, err := uuid.Parse(strings.TrimSpace(c.Value)); err == nil {
					id = u.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
			}

			// Refresh on every request so the cookie outlives activity, not creation.
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(lifetime.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), id)))
		})
	}
}

// ContextWithSession stores a session id in ctx.
func ContextWithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session id from ctx, or "" outside SessionMiddleware.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
