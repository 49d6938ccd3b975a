package auth

import (
	"context"
	"net/http"

	"github.com/whisperwall/whisperwall/internal/store"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// UserFrom returns the authenticated user attached by LoadUser or
// RequireUser, or nil for anonymous requests.
func UserFrom(r *http.Request) *store.User {
	user, _ := r.Context().Value(userContextKey).(*store.User)
	return user
}

// LoadUser attaches the current user to the request context when a
// valid session exists; anonymous requests pass through untouched.
func (s *Sessions) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := s.CurrentUser(r); err == nil {
			r = withUser(r, user)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser guards protected routes: anonymous requests get a
// redirect to the login page, nothing more is surfaced.
func (s *Sessions) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.CurrentUser(r)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, withUser(r, user))
	})
}

func withUser(r *http.Request, user *store.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, user))
}
