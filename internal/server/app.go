package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

// Options wires the web application's dependencies.
type Options struct {
	Provider      services.OAuthService
	Store         CredentialFinder
	Authenticator *tasks.Authenticator
	Issuer        *tasks.KeyIssuer
	Proxy         *tasks.CredentialProxy
	Sessions      *Sessions
	Logger        *log.Logger
	Limits        shared.LimitsConfig
}

// New builds the router for the web application.
//
//	GET  /                        landing page, or the key page with a session
//	GET  /health                  liveness
//	GET  /auth/spotify            start login
//	GET  /auth/spotify/callback   finish login
//	GET  /logout                  end the session
//	POST /key                     issue an API key (rate limited per session)
//	GET  /spotifyCreds            API key to token pair (rate limited per IP)
func New(opts Options) *BasicRouter {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	r := NewBasicRouter()
	r.Use(RequestLogger(logger), Recoverer(logger), SecurityHeaders())

	p := &pages{store: opts.Store, issuer: opts.Issuer, sessions: opts.Sessions, logger: logger}
	creds := &credentials{proxy: opts.Proxy, logger: logger}

	r.Handle(http.MethodGet, "/", http.HandlerFunc(p.index))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(health))
	r.Handler(NewOAuthHandler(opts.Provider, opts.Authenticator, opts.Sessions, logger))
	r.Handle(http.MethodPost, "/key", http.HandlerFunc(p.issueKey),
		NewRateLimiter(opts.Limits.Keys).Middleware(opts.Sessions.KeyFunc))
	r.Handle(http.MethodGet, "/spotifyCreds", creds,
		NewRateLimiter(opts.Limits.Credentials).Middleware(ByIP))
	r.NotFound(http.HandlerFunc(notFound))

	return r
}
