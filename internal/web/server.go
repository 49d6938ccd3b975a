// Package web wires the HTTP surface: route table, page rendering and
// the glue between handlers and the auth components. Every domain error
// is converted to a redirect at this boundary; no error page is ever
// rendered.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/whisperwall/whisperwall/internal/auth"
	wwoauth "github.com/whisperwall/whisperwall/internal/auth/oauth2"
	"github.com/whisperwall/whisperwall/internal/config"
	"github.com/whisperwall/whisperwall/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed public
var publicFS embed.FS

type Server struct {
	cfg        *config.Config
	log        *zap.Logger
	users      store.UserStore
	verifier   *auth.Verifier
	federation *auth.Federation
	sessions   *auth.Sessions

	templates *template.Template
	router    *mux.Router
}

func NewServer(cfg *config.Config, log *zap.Logger, users store.UserStore, sessions *auth.Sessions) (*Server, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		log:        log,
		users:      users,
		verifier:   auth.NewVerifier(users),
		federation: auth.NewFederation(users),
		sessions:   sessions,
		templates:  templates,
	}
	s.routes()
	return s, nil
}

// Handler wraps the router in the session middleware so every request
// sees its session loaded and committed.
func (s *Server) Handler() http.Handler {
	return s.sessions.Manager.LoadAndSave(s.router)
}

func (s *Server) routes() {
	r := mux.NewRouter()

	r.HandleFunc("/", s.home).Methods(http.MethodGet)
	r.HandleFunc("/login", s.loginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/register", s.registerForm).Methods(http.MethodGet)
	r.HandleFunc("/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodGet)

	s.mountProvider(r, wwoauth.NewGoogle(
		s.cfg.Google.ClientID, s.cfg.Google.ClientSecret,
		s.cfg.BaseURL+"/auth/google/secrets",
		s.completeFederated(auth.ProviderGoogle),
	), s.cfg.Google)
	s.mountProvider(r, wwoauth.NewFacebook(
		s.cfg.Facebook.ClientID, s.cfg.Facebook.ClientSecret,
		s.cfg.BaseURL+"/auth/facebook/secrets",
		s.completeFederated(auth.ProviderFacebook),
	), s.cfg.Facebook)

	r.Handle("/secrets", s.sessions.RequireUser(http.HandlerFunc(s.secrets))).Methods(http.MethodGet)
	r.Handle("/submit", s.sessions.RequireUser(http.HandlerFunc(s.submitForm))).Methods(http.MethodGet)
	// Same route-level guard as GET /submit; there is deliberately no
	// second ownership check at the data layer.
	r.Handle("/submit", s.sessions.RequireUser(http.HandlerFunc(s.submit))).Methods(http.MethodPost)

	r.PathPrefix("/public/").Handler(http.FileServer(http.FS(publicFS)))

	s.router = r
}

// mountProvider registers /auth/<name> and /auth/<name>/secrets. The
// routes exist even for unconfigured providers; the handshake simply
// fails at the consent screen, as the original deployment behaved.
func (s *Server) mountProvider(r *mux.Router, provider *wwoauth.Provider, client config.OAuthClient) {
	if !client.Configured() {
		s.log.Warn("oauth provider has no client credentials", zap.String("provider", provider.Name))
	}
	r.HandleFunc("/auth/"+provider.Name, provider.Begin).Methods(http.MethodGet)
	r.HandleFunc("/auth/"+provider.Name+"/secrets", provider.Callback).Methods(http.MethodGet)
}

// ----------------------------------------------------------------------------
// Handlers
// ----------------------------------------------------------------------------

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.render(w, "home.html", nil)
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html", nil)
}

func (s *Server) registerForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "register.html", nil)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}
	user, err := s.verifier.Register(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		s.log.Info("registration failed",
			zap.String("username", r.FormValue("username")), zap.Error(err))
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}
	// Auto-login after registration.
	s.signInAndRedirect(w, r, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	user, err := s.verifier.Verify(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		s.log.Info("login failed",
			zap.String("username", r.FormValue("username")), zap.Error(err))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.signInAndRedirect(w, r, user)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(w, r); err != nil {
		s.log.Warn("logout", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) secrets(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.FindWithSecrets(r.Context())
	if err != nil {
		// Logged and swallowed; the page renders with no secrets.
		s.log.Error("list secrets", zap.Error(err))
	}
	s.render(w, "secrets.html", map[string]any{"UsersWithSecrets": users})
}

func (s *Server) submitForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "submit.html", nil)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}

	user.SetSecret(r.FormValue("secret"))
	if err := s.users.Save(r.Context(), user); err != nil {
		// A failed save leaves the secret unchanged with no user-visible
		// indication; the log line is the only trace.
		s.log.Error("save secret", zap.String("user", user.ID), zap.Error(err))
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (s *Server) completeFederated(provider auth.Provider) wwoauth.ProfileHandler {
	return func(w http.ResponseWriter, r *http.Request, profileID string) {
		user, err := s.federation.CompleteLogin(r.Context(), provider, profileID)
		if err != nil {
			s.log.Warn("federated login failed",
				zap.String("provider", string(provider)), zap.Error(err))
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		s.signInAndRedirect(w, r, user)
	}
}

func (s *Server) signInAndRedirect(w http.ResponseWriter, r *http.Request, user *store.User) {
	if err := s.sessions.SignIn(w, r, user); err != nil {
		s.log.Error("sign in", zap.String("user", user.ID), zap.Error(err))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render template", zap.String("template", name), zap.Error(err))
	}
}
