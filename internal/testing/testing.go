// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

// MockProvider is a test double for [services.OAuthService].
//
// Probe accepts only ValidToken. Refresh hands out RefreshedToken unless RefreshErr is set.
type MockProvider struct {
	mu sync.Mutex

	ValidToken     string
	ProbeErr       error // Returned by Probe for every token when set
	RefreshedToken string
	RefreshErr     error
	ExchangeToken  *oauth2.Token
	ExchangeErr    error
	User           *services.SpotifyUser
	ProfileErr     error

	probes    int
	refreshes int
	codes     []string
}

var _ services.OAuthService = (*MockProvider)(nil)

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) GetAuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (m *MockProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.codes = append(m.codes, code)
	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	if m.ExchangeToken == nil {
		return nil, fmt.Errorf("%w: no token configured", shared.ErrAuthFailed)
	}
	return m.ExchangeToken, nil
}

func (m *MockProvider) Profile(ctx context.Context, accessToken string) (*services.SpotifyUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	if m.User == nil {
		return nil, fmt.Errorf("%w: no profile configured", shared.ErrProvider)
	}
	return m.User, nil
}

func (m *MockProvider) Probe(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.probes++
	if m.ProbeErr != nil {
		return m.ProbeErr
	}
	if accessToken != m.ValidToken {
		return shared.ErrTokenExpired
	}
	return nil
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshes++
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	m.ValidToken = m.RefreshedToken
	return &oauth2.Token{AccessToken: m.RefreshedToken, RefreshToken: refreshToken}, nil
}

// Probes returns the number of Probe calls.
func (m *MockProvider) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// Refreshes returns the number of Refresh calls.
func (m *MockProvider) Refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

// Codes returns the authorization codes passed to Exchange.
func (m *MockProvider) Codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.codes...)
}

// NewTestDB creates an in-memory SQLite database with migrations applied, closed on cleanup.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// NewTestLogger returns a debug-level logger writing to a buffer that is safe for concurrent use.
func NewTestLogger() (*log.Logger, *SyncBuffer) {
	buf := &SyncBuffer{}
	logger := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	return logger, buf
}

// SyncBuffer is a [bytes.Buffer] guarded by a mutex.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
