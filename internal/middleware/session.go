package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/models"
)

// SessionResolver maps a cookie token to a live session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (auth.Session, error)
}

// UserLookup loads the account a session belongs to.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// LoadSession attaches the signed-in user to the request context when the
// session cookie resolves. Unknown or expired cookies are cleared and the
// request continues anonymously.
func LoadSession(sessions SessionResolver, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.CookieName)
			if err != nil || cookie.Value == "" || sessions == nil || users == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := logging.FromContext(ctx)

			session, err := sessions.Resolve(ctx, cookie.Value)
			if err != nil {
				if !errors.Is(err, auth.ErrSessionNotFound) && !errors.Is(err, auth.ErrSessionExpired) {
					logger.Error("resolve session", "error", err)
				}
				clearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.FindByID(ctx, session.UserID)
			if err != nil {
				logger.Warn("session user lookup failed", "error", err)
				clearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx = auth.WithUser(ctx, user)
			ctx = logging.WithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser redirects anonymous callers to the login page, remembering where
// they were headed.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		target := "/login/?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// RequireStaff rejects callers without staff access.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			RequireUser(next).ServeHTTP(w, r)
			return
		}
		if !user.IsStaff {
			logging.FromContext(r.Context()).Warn("staff access denied")
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
