package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/desertthunder/nowplaying/internal/shared"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// TokenPair is the Spotify token set handed to API callers.
//
// ExpiresIn is stored exactly as Spotify reported it at login and is not an absolute expiry.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// Validate requires all three fields.
func (t TokenPair) Validate() error {
	switch {
	case t.AccessToken == "":
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	case t.RefreshToken == "":
		return fmt.Errorf("%w: refresh token is required", shared.ErrInvalidInput)
	case t.ExpiresIn == "":
		return fmt.Errorf("%w: expires in is required", shared.ErrInvalidInput)
	}
	return nil
}

// UserCredential is the stored record for one Spotify identity.
type UserCredential struct {
	id         string
	providerID string
	email      string
	tokens     TokenPair
	apiKey     string
	banned     bool
	createdAt  time.Time
	updatedAt  time.Time
}

// NewUserCredential creates an unsaved credential with a normalized email and fresh timestamps.
func NewUserCredential(providerID, email string, tokens TokenPair) *UserCredential {
	now := time.Now().UTC()
	return &UserCredential{
		providerID: providerID,
		email:      NormalizeEmail(email),
		tokens:     tokens,
		createdAt:  now,
		updatedAt:  now,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *UserCredential) ID() string           { return c.id }
func (c *UserCredential) ProviderID() string   { return c.providerID }
func (c *UserCredential) Email() string        { return c.email }
func (c *UserCredential) Tokens() TokenPair    { return c.tokens }
func (c *UserCredential) APIKey() string       { return c.apiKey }
func (c *UserCredential) HasAPIKey() bool      { return c.apiKey != "" }
func (c *UserCredential) IsBanned() bool       { return c.banned }
func (c *UserCredential) CreatedAt() time.Time { return c.createdAt }
func (c *UserCredential) UpdatedAt() time.Time { return c.updatedAt }

func (c *UserCredential) SetID(id string)             { c.id = id }
func (c *UserCredential) SetEmail(email string)       { c.email = NormalizeEmail(email) }
func (c *UserCredential) SetTokens(tokens TokenPair)  { c.tokens = tokens }
func (c *UserCredential) SetAccessToken(token string) { c.tokens.AccessToken = token }
func (c *UserCredential) SetAPIKey(key string)        { c.apiKey = key }
func (c *UserCredential) SetBanned(banned bool)       { c.banned = banned }
func (c *UserCredential) SetCreatedAt(t time.Time)    { c.createdAt = t }
func (c *UserCredential) SetUpdatedAt(t time.Time)    { c.updatedAt = t }

// Validate checks the provider id, the email format and the token pair.
func (c *UserCredential) Validate() error {
	if strings.TrimSpace(c.providerID) == "" {
		return fmt.Errorf("%w: provider id is required", shared.ErrInvalidInput)
	}
	if !emailPattern.MatchString(c.email) {
		return fmt.Errorf("%w: invalid email %q", shared.ErrInvalidInput, c.email)
	}
	return c.tokens.Validate()
}
