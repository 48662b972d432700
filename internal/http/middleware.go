package http

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/slime-shop/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	SessionCookie = "cart_session"
	sessionMaxAge = 30 * 24 * time.Hour
)

type sessionKey struct{}

// SessionMiddleware makes sure every request carries a cart session id,
// issuing a new cookie when the client has none or sends garbage.
func SessionMiddleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if c, err := r.Cookie(SessionCookie); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					sessionID = id.String()
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(sessionMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return ""
}

// LoggerMiddleware attaches a request-scoped logger carrying the chi request id.
func LoggerMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.With("request_id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
		})
	}
}

// AdminAuthMiddleware checks a static bearer token. An empty token locks the routes.
func AdminAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				respondError(w, http.StatusForbidden, "admin_disabled", "admin API is not configured")
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
