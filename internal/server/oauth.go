package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

const (
	stateCookie = "oauth_state"
	stateMaxAge = 10 * 60
	authPath    = "/auth/spotify"
	callbackURL = "/auth/spotify/callback"
	logoutPath  = "/logout"
)

// OAuthHandler runs the browser side of the Spotify authorization code flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	provider services.OAuthService
	auth     *tasks.Authenticator
	sessions *Sessions
	logger   *log.Logger
}

// NewOAuthHandler creates a new [OAuthHandler].
func NewOAuthHandler(provider services.OAuthService, auth *tasks.Authenticator, sessions *Sessions, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{provider: provider, auth: auth, sessions: sessions, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{
		http.MethodGet + " " + authPath,
		http.MethodGet + " " + callbackURL,
		http.MethodGet + " " + logoutPath,
	}
}

// ServeHTTP dispatches to the login, callback and logout routes.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case authPath:
		h.login(w, r)
	case callbackURL:
		h.callback(w, r)
	case logoutPath:
		h.sessions.Clear(w)
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		notFound(w, r)
	}
}

// login stores a fresh state token in a short-lived cookie and redirects to the provider.
func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.NewState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", "err", err)
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     authPath,
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   h.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.GetAuthURL(state), http.StatusFound)
}

// callback validates state, exchanges the code, stores the credential and starts a session.
//
// Every failure sends the browser back to "/" without a session.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.clearState(w)

	if errParam := q.Get("error"); errParam != "" {
		h.fail(w, r, fmt.Errorf("%w: provider returned %s", shared.ErrAuthFailed, errParam))
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		h.fail(w, r, shared.ErrInvalidState)
		return
	}

	ctx := r.Context()
	token, err := h.provider.Exchange(ctx, q.Get("code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.provider.Profile(ctx, token.AccessToken)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: failed to fetch profile: %v", shared.ErrAuthFailed, err))
		return
	}

	cred, err := h.auth.Login(ctx, tasks.AuthResult{
		TokenPair: services.TokenPair(token),
		Profile:   tasks.Profile{ID: user.ID, Email: user.Email},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.sessions.Issue(w, cred.ProviderID()); err != nil {
		h.fail(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("login failed", "err", err)
	h.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *OAuthHandler) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Path:     authPath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
