package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/whisperwall/whisperwall/internal/store"
)

const (
	sessionKeyUserID = "loggedInUserId"

	// AuthTokenCookie carries a JWT issued at sign-in for host pages and
	// API clients that want a signed statement of the user ID. It is
	// never consulted when restoring a session: only the scs store vouches
	// for a request, so logout and process restarts invalidate everything
	// outstanding regardless of what tokens clients retained.
	AuthTokenCookie = "wwAuthToken"
)

// Sessions serializes an authenticated identity into the session and
// restores it on later requests. Only the user ID ever enters the
// session payload; the full record is re-fetched from the store on
// every request. Session data lives in scs's in-memory store, so a
// process restart invalidates every outstanding session. That is an
// accepted limitation, not a bug.
type Sessions struct {
	Manager *scs.SessionManager

	users      store.UserStore
	signingKey []byte
	issuer     string
}

func NewSessions(users store.UserStore, signingKey []byte) *Sessions {
	manager := scs.New()
	manager.Lifetime = 24 * time.Hour
	manager.Cookie.HttpOnly = true
	manager.Cookie.SameSite = http.SameSiteLaxMode

	return &Sessions{
		Manager:    manager,
		users:      users,
		signingKey: signingKey,
		issuer:     "whisperwall",
	}
}

// SignIn records the user's ID in the session and sets the auth token
// cookie. The session token is renewed so a pre-login token can never
// be replayed as an authenticated one.
func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, user *store.User) error {
	if err := s.Manager.RenewToken(r.Context()); err != nil {
		return fmt.Errorf("renew session token: %w", err)
	}
	s.Manager.Put(r.Context(), sessionKeyUserID, user.ID)

	token, err := s.signToken(user.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AuthTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.Manager.Lifetime),
		MaxAge:   int(s.Manager.Lifetime / time.Second),
	})
	return nil
}

// SignOut destroys the session and expires the auth token cookie.
func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthTokenCookie,
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now(),
		HttpOnly: true,
	})
	if err := s.Manager.Destroy(r.Context()); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// CurrentUser restores the authenticated user for this request. It
// fails closed: a missing session, a malformed payload or a lookup
// failure all come back as ErrAuthFailure, never a panic.
func (s *Sessions) CurrentUser(r *http.Request) (*store.User, error) {
	userID := s.Manager.GetString(r.Context(), sessionKeyUserID)
	if userID == "" {
		return nil, ErrAuthFailure
	}

	user, err := s.users.FindByID(r.Context(), userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	return user, nil
}

func (s *Sessions) signToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iss": s.issuer,
		"iat": now.Unix(),
		"exp": now.Add(s.Manager.Lifetime).Unix(),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign auth token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates an issued auth token and returns its subject.
// API consumers can use it to check a bearer token; session restoration
// deliberately does not.
func (s *Sessions) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.issuer))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}
