package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookie holds the signed session token.
	SessionCookie = "nowplaying_session"

	sessionIssuer = "nowplaying"
)

// Sessions issues and verifies browser sessions as HS256 JWT cookies whose subject is the provider id.
type Sessions struct {
	secret []byte
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// NewSessions creates a [Sessions] signing with secret. Secure marks cookies HTTPS-only.
func NewSessions(secret string, maxAge time.Duration, secure bool) *Sessions {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), maxAge: maxAge, secure: secure, now: time.Now}
}

// Issue sets a session cookie for providerID.
func (s *Sessions) Issue(w http.ResponseWriter, providerID string) error {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   providerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, s.cookie(token, int(s.maxAge.Seconds())))
	return nil
}

// Subject returns the provider id of a valid session on r.
func (s *Sessions) Subject(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", shared.ErrNoSession
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", shared.ErrSessionExpiry
	case err != nil:
		return "", fmt.Errorf("%w: %v", shared.ErrNoSession, err)
	case claims.Subject == "":
		return "", fmt.Errorf("%w: missing subject", shared.ErrNoSession)
	}

	return claims.Subject, nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", -1))
}

// KeyFunc keys rate limits by session subject. Requests without a session are not limited here.
func (s *Sessions) KeyFunc(r *http.Request) string {
	subject, err := s.Subject(r)
	if err != nil {
		return ""
	}
	return "session:" + subject
}

func (s *Sessions) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
