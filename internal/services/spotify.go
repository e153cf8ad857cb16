// Spotify implementation of [OAuthService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Spotify access tokens live for an hour; used when a token response omits expires_in.
	defaultExpiresIn = "3600"
)

// Scopes requested at login.
var Scopes = []string{
	"user-read-email",
	"user-read-recently-played",
	"user-read-currently-playing",
	"user-read-playback-state", // Probe reads /me/player
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyService implements [OAuthService] for the Spotify accounts service and Web API.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Required keys are client_id and client_secret. redirect_uri defaults to the local callback route.
// auth_url, token_url and api_url override the Spotify endpoints.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/auth/spotify/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   valueOr(credentials["auth_url"], spotifyAuthURL),
			TokenURL:  valueOr(credentials["token_url"], spotifyTokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &SpotifyService{
		config:     config,
		apiURL:     valueOr(credentials["api_url"], spotifyBaseURL),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// SetHTTPClient replaces the client used for token and API requests.
func (s *SpotifyService) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", shared.ErrAuthFailed)
	}

	token, err := s.config.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, shared.ErrNoRefreshToken)
	}
	return token, nil
}

// Refresh runs the refresh_token grant and returns the new token.
//
// The returned token carries the original refresh token when Spotify does not rotate it.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	token, err := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// Profile retrieves the profile of the user owning accessToken.
func (s *SpotifyService) Profile(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Probe checks accessToken against GET /me/player.
//
// Any 2xx (204 when nothing is playing) means the token is valid.
func (s *SpotifyService) Probe(ctx context.Context, accessToken string) error {
	return s.doRequest(ctx, http.MethodGet, "/me/player", accessToken, nil)
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint, accessToken string, result any) error {
	if accessToken == "" {
		return fmt.Errorf("%w: missing access token", shared.ErrTokenExpired)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.apiURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrProvider, method, endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", shared.ErrTokenExpired, method, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrProvider, method, endpoint, resp.StatusCode)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrProvider, err)
	}
	return nil
}

func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// TokenPair converts an OAuth2 token into the stored token pair.
func TokenPair(token *oauth2.Token) models.TokenPair {
	return models.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    ExpiresIn(token),
	}
}

// ExpiresIn returns the token lifetime in seconds as reported by the provider.
func ExpiresIn(token *oauth2.Token) string {
	switch v := token.Extra("expires_in").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case json.Number:
		return v.String()
	}

	if token.ExpiresIn > 0 {
		return strconv.FormatInt(token.ExpiresIn, 10)
	}
	if !token.Expiry.IsZero() {
		if secs := int64(time.Until(token.Expiry).Round(time.Second).Seconds()); secs > 0 {
			return strconv.FormatInt(secs, 10)
		}
	}
	return defaultExpiresIn
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
