// Package oauth2 implements the redirect-based provider handshakes.
// Each provider gets a Begin handler that parks a random state value in
// a cookie before redirecting to the consent screen, and a Callback
// handler that checks the state, exchanges the code and reduces the
// provider's profile payload to the one field this application keeps:
// the profile ID.
package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const stateCookie = "oauthstate"

// ProfileHandler receives the validated profile ID after a successful
// handshake and finishes the login (find-or-create plus session).
type ProfileHandler func(w http.ResponseWriter, r *http.Request, profileID string)

// Provider is one configured OAuth2 identity provider.
type Provider struct {
	// Name is the provider key ("google", "facebook").
	Name string

	// FailureURL receives every failed handshake. Defaults to /login.
	FailureURL string

	// Config is the underlying oauth2 client config. Exported so tests
	// can point the endpoints at a fake provider.
	Config *oauth2.Config

	// ProfileURL is the userinfo/graph endpoint queried with the
	// exchanged token.
	ProfileURL string

	decodeID  func(data []byte) (string, error)
	onProfile ProfileHandler
}

func (p *Provider) failureURL() string {
	if p.FailureURL != "" {
		return p.FailureURL
	}
	return "/login"
}

// Begin starts the handshake: sets the state cookie and redirects to
// the provider's consent screen.
func (p *Provider) Begin(w http.ResponseWriter, r *http.Request) {
	state := newStateCookie(w)
	http.Redirect(w, r, p.Config.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the handshake. Any failure, from a state mismatch
// to an undecodable profile, redirects to FailureURL without surfacing
// an error page.
func (p *Provider) Callback(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || r.FormValue("state") != state.Value {
		clearStateCookie(w)
		http.Redirect(w, r, p.failureURL(), http.StatusFound)
		return
	}
	clearStateCookie(w)

	token, err := p.Config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		http.Redirect(w, r, p.failureURL(), http.StatusFound)
		return
	}

	profileID, err := p.fetchProfileID(r, token)
	if err != nil || profileID == "" {
		http.Redirect(w, r, p.failureURL(), http.StatusFound)
		return
	}

	p.onProfile(w, r, profileID)
}

func (p *Provider) fetchProfileID(r *http.Request, token *oauth2.Token) (string, error) {
	client := p.Config.Client(r.Context(), token)
	resp, err := client.Get(p.ProfileURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s profile: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s profile: status %d", p.Name, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s profile: %w", p.Name, err)
	}
	return p.decodeID(data)
}

func newStateCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(10 * time.Minute),
		MaxAge:   600,
	})
	return state
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    stateCookie,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
}
