package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

// maxKeyAttempts bounds key regeneration after a collision on the unique api_key index.
const maxKeyAttempts = 3

// CredentialStore is the persistence surface used by the credential flows.
//
// Implemented by repositories.CredentialRepository.
type CredentialStore interface {
	FindByProviderID(ctx context.Context, providerID string) (*models.UserCredential, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.UserCredential, error)
	Upsert(ctx context.Context, cred *models.UserCredential) (*models.UserCredential, error)
	UpdateAPIKey(ctx context.Context, providerID, apiKey string) error
	UpdateAccessToken(ctx context.Context, providerID, refreshToken, accessToken string) error
}

// TokenChecker validates and refreshes provider access tokens.
//
// Implemented by services.SpotifyService.
type TokenChecker interface {
	Probe(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Profile identifies the provider account that completed a login.
type Profile struct {
	ID    string
	Email string
}

// AuthResult is the outcome of a completed authorization-code exchange.
type AuthResult struct {
	models.TokenPair
	Profile Profile
}

// Authenticator creates or updates the stored credential after a successful login.
type Authenticator struct {
	store  CredentialStore
	logger *log.Logger
}

// NewAuthenticator creates a new [Authenticator].
func NewAuthenticator(store CredentialStore, logger *log.Logger) *Authenticator {
	return &Authenticator{store: store, logger: logger}
}

// Login stores the token pair and email from result under the profile's provider id.
//
// Unknown provider ids get a new record with no API key. Known ones have their email and full token pair
// overwritten, last writer wins. The stored record is returned and becomes the session identity.
func (a *Authenticator) Login(ctx context.Context, result AuthResult) (*models.UserCredential, error) {
	providerID := strings.TrimSpace(result.Profile.ID)
	if providerID == "" {
		return nil, fmt.Errorf("%w: profile has no id", shared.ErrInvalidInput)
	}

	cred, err := a.store.FindByProviderID(ctx, providerID)
	switch {
	case err == nil:
		cred.SetEmail(result.Profile.Email)
		cred.SetTokens(result.TokenPair)
	case errors.Is(err, shared.ErrNotFound):
		cred = models.NewUserCredential(providerID, result.Profile.Email, result.TokenPair)
	default:
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	stored, err := a.store.Upsert(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	a.logger.Info("user logged in", "provider_id", stored.ProviderID(), "has_api_key", stored.HasAPIKey())
	return stored, nil
}

// KeyIssuer mints API keys for authenticated users.
type KeyIssuer struct {
	store    CredentialStore
	logger   *log.Logger
	generate func() (string, error)
}

// NewKeyIssuer creates a new [KeyIssuer] generating keys with [shared.NewAPIKey].
func NewKeyIssuer(store CredentialStore, logger *log.Logger) *KeyIssuer {
	return &KeyIssuer{store: store, logger: logger, generate: shared.NewAPIKey}
}

// Issue generates a fresh key for providerID and replaces any previous key, which stops working immediately.
func (k *KeyIssuer) Issue(ctx context.Context, providerID string) (string, error) {
	if strings.TrimSpace(providerID) == "" {
		return "", fmt.Errorf("%w: provider id is required", shared.ErrInvalidInput)
	}

	for attempt := 1; attempt <= maxKeyAttempts; attempt++ {
		key, err := k.generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate api key: %w", err)
		}

		err = k.store.UpdateAPIKey(ctx, providerID, key)
		if err == nil {
			k.logger.Info("api key issued", "provider_id", providerID)
			return key, nil
		}
		if !errors.Is(err, shared.ErrConflict) {
			return "", fmt.Errorf("failed to store api key: %w", err)
		}
		k.logger.Warn("api key collision, regenerating", "provider_id", providerID, "attempt", attempt)
	}

	return "", fmt.Errorf("%w: api key collided %d times", shared.ErrConflict, maxKeyAttempts)
}

// Submitter queues a background token check.
type Submitter interface {
	Submit(cred *models.UserCredential) bool
}

// CredentialProxy resolves API keys to the stored token pair.
type CredentialProxy struct {
	store     CredentialStore
	refresher Submitter
	logger    *log.Logger
}

// NewCredentialProxy creates a new [CredentialProxy]. A nil refresher disables background checks.
func NewCredentialProxy(store CredentialStore, refresher Submitter, logger *log.Logger) *CredentialProxy {
	return &CredentialProxy{store: store, refresher: refresher, logger: logger}
}

// Lookup returns the token pair currently stored for apiKey.
//
// Unknown and banned keys both fail with [shared.ErrUnauthorized]. The stored access token is then
// checked in the background; a refreshed token is only visible to later lookups.
func (p *CredentialProxy) Lookup(ctx context.Context, apiKey string) (models.TokenPair, error) {
	if apiKey == "" {
		return models.TokenPair{}, shared.ErrUnauthorized
	}

	cred, err := p.store.FindByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return models.TokenPair{}, shared.ErrUnauthorized
		}
		return models.TokenPair{}, fmt.Errorf("failed to look up api key: %w", err)
	}

	if cred.IsBanned() {
		p.logger.Warn("banned user requested credentials", "provider_id", cred.ProviderID())
		return models.TokenPair{}, shared.ErrUnauthorized
	}

	if p.refresher != nil && !p.refresher.Submit(cred) {
		p.logger.Debug("token check not queued", "provider_id", cred.ProviderID())
	}

	return cred.Tokens(), nil
}
