package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const notFoundMessage = "Whoops, this resource or route could not be found"

// CredentialFinder loads the record behind a session.
type CredentialFinder interface {
	FindByProviderID(ctx context.Context, providerID string) (*models.UserCredential, error)
}

type indexPage struct {
	User    *userView
	Issued  bool
	BaseURL string
}

type userView struct {
	Email  string
	APIKey string
}

// pages serves the landing page and the key issuance form.
type pages struct {
	store    CredentialFinder
	issuer   *tasks.KeyIssuer
	sessions *Sessions
	logger   *log.Logger
}

// index renders the landing page, or the key page when a session is present.
func (p *pages) index(w http.ResponseWriter, r *http.Request) {
	data := indexPage{Issued: r.URL.Query().Get("issued") == "1", BaseURL: baseURL(r)}

	if subject, err := p.sessions.Subject(r); err == nil {
		cred, err := p.store.FindByProviderID(r.Context(), subject)
		switch {
		case err == nil:
			data.User = &userView{Email: cred.Email(), APIKey: cred.APIKey()}
		case errors.Is(err, shared.ErrNotFound):
			p.sessions.Clear(w)
		default:
			p.logger.Error("failed to load session user", "provider_id", subject, "err", err)
			writeError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := indexTemplate.Execute(w, data); err != nil {
		p.logger.Error("failed to render index", "err", err)
	}
}

// issueKey mints a new API key for the session user and sends the browser back to the key page.
func (p *pages) issueKey(w http.ResponseWriter, r *http.Request) {
	subject, err := p.sessions.Subject(r)
	if err != nil {
		http.Redirect(w, r, authPath, http.StatusSeeOther)
		return
	}

	if _, err := p.issuer.Issue(r.Context(), subject); err != nil {
		p.logger.Error("failed to issue api key", "provider_id", subject, "err", err)
		writeError(w, err)
		return
	}

	http.Redirect(w, r, "/?issued=1", http.StatusSeeOther)
}

// credentials serves GET /spotifyCreds.
type credentials struct {
	proxy  *tasks.CredentialProxy
	logger *log.Logger
}

func (c *credentials) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokens, err := c.proxy.Lookup(r.Context(), apiKeyFromHeader(r.Header.Get("Authorization")))
	if err != nil {
		if !errors.Is(err, shared.ErrUnauthorized) {
			c.logger.Error("credential lookup failed", "err", err)
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokens)
}

// apiKeyFromHeader accepts the raw key or "Bearer <key>".
func apiKeyFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, notFoundMessage, http.StatusNotFound)
}

// writeError maps err to a status with a generic body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrConflict):
		status = http.StatusConflict
	}
	http.Error(w, http.StatusText(status), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
