// package shared defines shared helpers
package shared

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// APIKeyLength is the number of characters in an issued API key.
const APIKeyLength = 64

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel parses a level name ("debug", "info", ...) and applies it to the given [log.Logger].
//
// Unknown names leave the logger at [log.InfoLevel].
func SetLogLevel(l *log.Logger, name string) {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		level = log.InfoLevel
	}
	l.SetLevel(level)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// RandomString returns a string of exactly n characters from the URL-safe base64 alphabet ([A-Za-z0-9_-]),
// read from [rand.Reader].
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%w: length must be positive", ErrInvalidArgument)
	}

	b := make([]byte, base64.RawURLEncoding.DecodedLen(n)+1)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}

// NewAPIKey generates an opaque API key of [APIKeyLength] URL-safe characters.
func NewAPIKey() (string, error) {
	return RandomString(APIKeyLength)
}

// NewState generates a random OAuth state token.
func NewState() (string, error) {
	return RandomString(32)
}
