package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

// UserFromContext returns the user attached by RequireSession.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

// RequireSession rejects requests without a valid access_token cookie and
// stores the authenticated user in the request context.
func RequireSession(svc AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookieValue(r, common.AccessTokenCookieName)
			if token == "" {
				respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				status, msg := statusFor(err)
				respondError(w, status, msg)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = logging.ContextWith(ctx, "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestLogger logs one line per request through logging.Logger.
func requestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			if id := middleware.GetReqID(r.Context()); id != "" {
				r = r.WithContext(logging.ContextWith(r.Context(), "request_id", id))
			}
			next.ServeHTTP(ww, r)

			l.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
