package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/shared"
	tu "github.com/desertthunder/nowplaying/internal/testing"
)

func TestRefresher(t *testing.T) {
	ctx := context.Background()

	// seed stores one credential with access token "a1" and an issued key.
	seed := func(t *testing.T) (*repositories.CredentialRepository, *models.UserCredential, string) {
		t.Helper()
		logger, _ := tu.NewTestLogger()
		store := newStore(t)

		if _, err := NewAuthenticator(store, logger).Login(ctx, authResult("spotify-1", "one@example.com", "a1")); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		key, err := NewKeyIssuer(store, logger).Issue(ctx, "spotify-1")
		if err != nil {
			t.Fatalf("issue failed: %v", err)
		}
		cred, err := store.FindByProviderID(ctx, "spotify-1")
		if err != nil {
			t.Fatalf("find failed: %v", err)
		}
		return store, cred, key
	}

	newRefresher := func(store CredentialStore, provider TokenChecker) (*Refresher, *tu.SyncBuffer) {
		logger, buf := tu.NewTestLogger()
		return NewRefresher(RefresherOpts{
			Store:     store,
			Provider:  provider,
			Logger:    logger,
			RateLimit: 1000,
			Timeout:   time.Second,
		}), buf
	}

	t.Run("NewRefresher defaults", func(t *testing.T) {
		r := NewRefresher(RefresherOpts{Workers: 100})
		if r.workers != 8 {
			t.Errorf("expected workers capped at 8, got %d", r.workers)
		}
		if cap(r.jobs) != 64 || r.timeout != 10*time.Second {
			t.Errorf("unexpected defaults: queue %d timeout %v", cap(r.jobs), r.timeout)
		}

		r = NewRefresher(RefresherOpts{})
		if r.workers != 2 {
			t.Errorf("expected 2 workers by default, got %d", r.workers)
		}
	})

	t.Run("Check leaves a valid token alone", func(t *testing.T) {
		store, cred, _ := seed(t)
		provider := &tu.MockProvider{ValidToken: "a1"}
		r, _ := newRefresher(store, provider)

		if err := r.Check(ctx, cred); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if provider.Refreshes() != 0 {
			t.Errorf("expected no refresh, got %d", provider.Refreshes())
		}

		stored, _ := store.FindByProviderID(ctx, "spotify-1")
		if stored.Tokens().AccessToken != "a1" {
			t.Errorf("expected token unchanged, got %s", stored.Tokens().AccessToken)
		}
	})

	t.Run("Check refreshes a rejected token", func(t *testing.T) {
		store, cred, _ := seed(t)
		provider := &tu.MockProvider{ValidToken: "expired", RefreshedToken: "a2"}
		r, buf := newRefresher(store, provider)

		if err := r.Check(ctx, cred); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stored, _ := store.FindByProviderID(ctx, "spotify-1")
		want := models.TokenPair{AccessToken: "a2", RefreshToken: "refresh-a1", ExpiresIn: "3600"}
		if stored.Tokens() != want {
			t.Errorf("expected %+v, got %+v", want, stored.Tokens())
		}
		if !strings.Contains(buf.String(), "access token refreshed") {
			t.Errorf("expected refresh to be logged, got %q", buf.String())
		}
		if strings.Contains(buf.String(), "a2") || strings.Contains(buf.String(), "refresh-a1") {
			t.Error("token values must not be logged")
		}
	})

	t.Run("Check keeps the record when the refresh fails", func(t *testing.T) {
		store, cred, _ := seed(t)
		provider := &tu.MockProvider{ValidToken: "expired", RefreshErr: shared.ErrRefreshFailed}
		r, _ := newRefresher(store, provider)

		if err := r.Check(ctx, cred); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Fatalf("expected ErrRefreshFailed, got %v", err)
		}

		stored, _ := store.FindByProviderID(ctx, "spotify-1")
		if stored.Tokens().AccessToken != "a1" {
			t.Errorf("expected token unchanged, got %s", stored.Tokens().AccessToken)
		}
	})

	t.Run("Check does not refresh on other probe failures", func(t *testing.T) {
		store, cred, _ := seed(t)
		provider := &tu.MockProvider{ProbeErr: shared.ErrProvider, RefreshedToken: "a2"}
		r, _ := newRefresher(store, provider)

		if err := r.Check(ctx, cred); !errors.Is(err, shared.ErrProvider) {
			t.Fatalf("expected ErrProvider, got %v", err)
		}
		if provider.Refreshes() != 0 {
			t.Errorf("expected no refresh attempt, got %d", provider.Refreshes())
		}
	})

	t.Run("Check discards a refresh overtaken by a login", func(t *testing.T) {
		store, cred, _ := seed(t)
		logger, _ := tu.NewTestLogger()
		if _, err := NewAuthenticator(store, logger).Login(ctx, authResult("spotify-1", "one@example.com", "login")); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		provider := &tu.MockProvider{ValidToken: "expired", RefreshedToken: "a2"}
		r, _ := newRefresher(store, provider)

		if err := r.Check(ctx, cred); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stored, _ := store.FindByProviderID(ctx, "spotify-1")
		if stored.Tokens().AccessToken != "login" {
			t.Errorf("expected the login's token to win, got %s", stored.Tokens().AccessToken)
		}
	})

	t.Run("Check respects a cancelled context", func(t *testing.T) {
		store, cred, _ := seed(t)
		provider := &tu.MockProvider{ValidToken: "a1"}
		r, _ := newRefresher(store, provider)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if err := r.Check(cctx, cred); err == nil {
			t.Error("expected error for cancelled context")
		}
		if provider.Probes() != 0 {
			t.Errorf("expected no probe, got %d", provider.Probes())
		}
	})

	t.Run("Submit", func(t *testing.T) {
		t.Run("deduplicates queued provider ids", func(t *testing.T) {
			store, cred, _ := seed(t)
			r, _ := newRefresher(store, &tu.MockProvider{ValidToken: "a1"})

			if !r.Submit(cred) {
				t.Fatal("expected first submit to be queued")
			}
			if r.Submit(cred) {
				t.Error("expected duplicate submit to be dropped")
			}
		})

		t.Run("drops when the queue is full", func(t *testing.T) {
			logger, _ := tu.NewTestLogger()
			r := NewRefresher(RefresherOpts{Logger: logger, QueueSize: 1})

			tokens := models.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: "1"}
			if !r.Submit(models.NewUserCredential("one", "one@example.com", tokens)) {
				t.Fatal("expected first submit to be queued")
			}
			if r.Submit(models.NewUserCredential("two", "two@example.com", tokens)) {
				t.Error("expected submit to a full queue to be dropped")
			}
		})

		t.Run("rejects after Close", func(t *testing.T) {
			store, cred, _ := seed(t)
			r, _ := newRefresher(store, &tu.MockProvider{ValidToken: "a1"})
			r.Close()

			if r.Submit(cred) {
				t.Error("expected submit after close to be rejected")
			}
			if r.Submit(nil) {
				t.Error("expected nil submit to be rejected")
			}
		})
	})

	t.Run("Close drains queued checks", func(t *testing.T) {
		store, cred, _ := seed(t)
		provider := &tu.MockProvider{ValidToken: "a1"}
		r, _ := newRefresher(store, provider)

		if !r.Submit(cred) {
			t.Fatal("expected submit to be queued")
		}
		r.Start(ctx)
		r.Close()

		if provider.Probes() != 1 {
			t.Errorf("expected 1 probe, got %d", provider.Probes())
		}
		if r.Submit(cred) {
			t.Error("expected closed refresher to reject submissions")
		}
	})

	t.Run("Lookup returns the old token and the next lookup the refreshed one", func(t *testing.T) {
		store, _, key := seed(t)
		provider := &tu.MockProvider{ValidToken: "expired", RefreshedToken: "a2"}
		r, _ := newRefresher(store, provider)
		logger, _ := tu.NewTestLogger()
		proxy := NewCredentialProxy(store, r, logger)

		r.Start(ctx)

		first, err := proxy.Lookup(ctx, key)
		if err != nil {
			t.Fatalf("first lookup failed: %v", err)
		}
		if first.AccessToken != "a1" {
			t.Errorf("expected first lookup to return the stored token, got %s", first.AccessToken)
		}

		r.Close()

		second, err := NewCredentialProxy(store, nil, logger).Lookup(ctx, key)
		if err != nil {
			t.Fatalf("second lookup failed: %v", err)
		}
		if second.AccessToken != "a2" {
			t.Errorf("expected refreshed token, got %s", second.AccessToken)
		}
		if second.RefreshToken != first.RefreshToken {
			t.Errorf("expected refresh token unchanged, got %s", second.RefreshToken)
		}
	})

	t.Run("Failed refresh still answers the caller", func(t *testing.T) {
		store, _, key := seed(t)
		provider := &tu.MockProvider{ValidToken: "expired", RefreshErr: shared.ErrRefreshFailed}
		r, buf := newRefresher(store, provider)
		logger, _ := tu.NewTestLogger()
		proxy := NewCredentialProxy(store, r, logger)

		before, err := store.FindByProviderID(ctx, "spotify-1")
		if err != nil {
			t.Fatalf("failed to load record: %v", err)
		}

		r.Start(ctx)
		tokens, err := proxy.Lookup(ctx, key)
		r.Close()

		if err != nil {
			t.Fatalf("expected lookup to succeed, got %v", err)
		}
		if tokens.AccessToken != "a1" {
			t.Errorf("expected stored token, got %s", tokens.AccessToken)
		}
		if provider.Refreshes() != 1 {
			t.Errorf("expected one refresh attempt, got %d", provider.Refreshes())
		}

		after, err := store.FindByProviderID(ctx, "spotify-1")
		if err != nil {
			t.Fatalf("failed to reload record: %v", err)
		}
		if after.Tokens() != before.Tokens() {
			t.Errorf("expected tokens unchanged, got %+v want %+v", after.Tokens(), before.Tokens())
		}
		if after.APIKey() != before.APIKey() || after.Email() != before.Email() || after.IsBanned() != before.IsBanned() {
			t.Error("expected key, email and ban flag unchanged")
		}
		if !after.UpdatedAt().Equal(before.UpdatedAt()) {
			t.Errorf("expected updated_at unchanged, got %v want %v", after.UpdatedAt(), before.UpdatedAt())
		}
		if !strings.Contains(buf.String(), "token check failed") {
			t.Errorf("expected failure to be logged, got %q", buf.String())
		}
	})
}
