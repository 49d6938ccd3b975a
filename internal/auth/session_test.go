package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperwall/whisperwall/internal/auth"
	"github.com/whisperwall/whisperwall/internal/store"
	"github.com/whisperwall/whisperwall/internal/store/memory"
)

func sessionTestHandler(t *testing.T, sessions *auth.Sessions, user *store.User) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/signin", func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.SignIn(w, r, user); err != nil {
			t.Errorf("sign in: %v", err)
		}
	})
	mux.HandleFunc("/signout", func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.SignOut(w, r); err != nil {
			t.Errorf("sign out: %v", err)
		}
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		current, err := sessions.CurrentUser(r)
		if err != nil {
			http.Error(w, "anonymous", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, current.ID)
	})
	return sessions.Manager.LoadAndSave(mux)
}

func newJarClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Transport: srv.Client().Transport, Jar: jar}
	return client
}

func TestSessionRoundTrip(t *testing.T) {
	users := memory.NewUserStore()
	user := &store.User{ID: "u1", Username: "alice"}
	require.NoError(t, users.Create(context.Background(), user))

	sessions := auth.NewSessions(users, []byte("test-signing-key"))
	srv := httptest.NewServer(sessionTestHandler(t, sessions, user))
	defer srv.Close()
	client := newJarClient(t, srv)

	// Anonymous until signed in.
	resp, err := client.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/signin")
	require.NoError(t, err)
	resp.Body.Close()

	// serialize(user) -> deserialize -> same ID.
	resp, err = client.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", string(body[:n]))

	// Sign out fully invalidates, not just flags.
	resp, err = client.Get(srv.URL + "/signout")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionFailsClosedOnLookupFailure(t *testing.T) {
	// The session holds an ID whose record does not exist; the lookup
	// failure must read as "not authenticated", never as a crash.
	empty := memory.NewUserStore()
	sessions := auth.NewSessions(empty, []byte("test-signing-key"))
	ghost := &store.User{ID: "ghost", Username: "ghost"}

	srv := httptest.NewServer(sessionTestHandler(t, sessions, ghost))
	defer srv.Close()
	client := newJarClient(t, srv)

	resp, err := client.Get(srv.URL + "/signin")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRestartInvalidatesSessions(t *testing.T) {
	signingKey := []byte("test-signing-key")
	users := memory.NewUserStore()
	user := &store.User{ID: "u1", Username: "alice"}
	require.NoError(t, users.Create(context.Background(), user))

	sessions := auth.NewSessions(users, signingKey)
	srv := httptest.NewServer(sessionTestHandler(t, sessions, user))
	defer srv.Close()
	client := newJarClient(t, srv)

	resp, err := client.Get(srv.URL + "/signin")
	require.NoError(t, err)
	resp.Body.Close()

	// A restarted process shares the configured signing key but starts
	// with a fresh session store; every retained cookie, the auth token
	// included, must come back "not authenticated".
	restarted := auth.NewSessions(users, signingKey)
	srv2 := httptest.NewServer(sessionTestHandler(t, restarted, user))
	defer srv2.Close()

	u, _ := url.Parse(srv.URL)
	req, err := http.NewRequest(http.MethodGet, srv2.URL+"/whoami", nil)
	require.NoError(t, err)
	for _, cookie := range client.Jar.Cookies(u) {
		req.AddCookie(cookie)
	}
	resp, err = srv2.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthTokenAloneDoesNotAuthenticate(t *testing.T) {
	users := memory.NewUserStore()
	user := &store.User{ID: "u1", Username: "alice"}
	require.NoError(t, users.Create(context.Background(), user))

	sessions := auth.NewSessions(users, []byte("test-signing-key"))
	srv := httptest.NewServer(sessionTestHandler(t, sessions, user))
	defer srv.Close()
	client := newJarClient(t, srv)

	resp, err := client.Get(srv.URL + "/signin")
	require.NoError(t, err)
	resp.Body.Close()

	// Replay only the issued token, without the session cookie. The
	// token is genuine and unexpired, but it is not a session.
	var token *http.Cookie
	u, _ := url.Parse(srv.URL)
	for _, cookie := range client.Jar.Cookies(u) {
		if cookie.Name == auth.AuthTokenCookie {
			token = cookie
		}
	}
	require.NotNil(t, token, "sign-in must issue the auth token cookie")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/whoami", nil)
	require.NoError(t, err)
	req.AddCookie(token)
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyToken(t *testing.T) {
	users := memory.NewUserStore()
	user := &store.User{ID: "u1", Username: "alice"}
	require.NoError(t, users.Create(context.Background(), user))

	sessions := auth.NewSessions(users, []byte("test-signing-key"))
	srv := httptest.NewServer(sessionTestHandler(t, sessions, user))
	defer srv.Close()
	client := newJarClient(t, srv)

	resp, err := client.Get(srv.URL + "/signin")
	require.NoError(t, err)
	resp.Body.Close()

	u, _ := url.Parse(srv.URL)
	var token string
	for _, cookie := range client.Jar.Cookies(u) {
		if cookie.Name == auth.AuthTokenCookie {
			token = cookie.Value
		}
	}
	require.NotEmpty(t, token)

	subject, err := sessions.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)

	_, err = sessions.VerifyToken("not-a-jwt")
	assert.Error(t, err)

	other := auth.NewSessions(users, []byte("different-key"))
	_, err = other.VerifyToken(token)
	assert.Error(t, err, "a token signed with another key must not verify")
}

func TestCurrentUserRejectsGarbageToken(t *testing.T) {
	users := memory.NewUserStore()
	sessions := auth.NewSessions(users, []byte("test-signing-key"))

	mux := http.NewServeMux()
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		if _, err := sessions.CurrentUser(r); err != nil {
			http.Error(w, "anonymous", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(sessions.Manager.LoadAndSave(mux))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/whoami", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.AuthTokenCookie, Value: "not-a-jwt"})

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
