// Client for the credentials API served by this module
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// CredentialsClient exchanges an API key for the current Spotify token pair via GET /spotifyCreds.
type CredentialsClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCredentialsClient creates a client for the credentials API at baseURL.
func NewCredentialsClient(baseURL string, client *http.Client) *CredentialsClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &CredentialsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Get returns the token pair stored for apiKey.
func (c *CredentialsClient) Get(ctx context.Context, apiKey string) (*models.TokenPair, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key", shared.ErrMissingArgument)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/spotifyCreds", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, shared.ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, shared.ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokens models.TokenPair
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return &tokens, nil
}
