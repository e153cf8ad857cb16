package services

import (
	"context"

	"golang.org/x/oauth2"
)

// OAuthService is the provider surface used by the login flow and the token refresher.
type OAuthService interface {
	// GetAuthURL returns the authorization URL the browser is redirected to.
	GetAuthURL(state string) string

	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Profile fetches the profile of the user owning accessToken.
	Profile(ctx context.Context, accessToken string) (*SpotifyUser, error)

	// Probe makes a cheap authenticated call to check that accessToken is still accepted.
	// A rejected token is reported as [shared.ErrTokenExpired].
	Probe(ctx context.Context, accessToken string) error

	// Refresh mints a new access token from refreshToken.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}
