package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Credential errors, mapped to HTTP statuses at the server boundary
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrNotFound     = fmt.Errorf("record not found")
	ErrConflict     = fmt.Errorf("record conflicts with an existing record")
	ErrPersistence  = fmt.Errorf("persistence failure")

	// Provider errors, never surfaced to API callers
	ErrProvider       = fmt.Errorf("provider request failed")
	ErrTokenExpired   = fmt.Errorf("access token expired")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// Client errors returned by the credentials API client
	ErrAPIRequest  = fmt.Errorf("API request failed")
	ErrRateLimited = fmt.Errorf("too many requests")

	// Session and OAuth flow errors
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrInvalidState  = fmt.Errorf("invalid state parameter")
	ErrNoSession     = fmt.Errorf("no active session")
	ErrSessionExpiry = fmt.Errorf("session expired")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
