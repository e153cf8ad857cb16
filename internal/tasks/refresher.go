package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/time/rate"
)

// RefresherOpts contains configuration for the background token refresher.
type RefresherOpts struct {
	Store     CredentialStore
	Provider  TokenChecker
	Logger    *log.Logger
	Workers   int           // Concurrent workers (default: 2, max: 8)
	QueueSize int           // Pending checks before Submit starts dropping (default: 64)
	RateLimit float64       // Provider calls per second (default: 5)
	Timeout   time.Duration // Per-check deadline (default: 10s)
}

// Refresher probes stored access tokens in a worker pool and refreshes the ones the provider rejects.
//
// Checks run on the context passed to [Refresher.Start], never on a request's.
type Refresher struct {
	store    CredentialStore
	provider TokenChecker
	logger   *log.Logger
	limiter  *rate.Limiter
	workers  int
	timeout  time.Duration

	jobs    chan *models.UserCredential
	mu      sync.Mutex
	pending map[string]struct{}
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewRefresher creates a [Refresher]. Call [Refresher.Start] to begin processing.
func NewRefresher(opts RefresherOpts) *Refresher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Workers > 8 {
		opts.Workers = 8
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Refresher{
		store:    opts.Store,
		provider: opts.Provider,
		logger:   opts.Logger,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		workers:  opts.Workers,
		timeout:  opts.Timeout,
		jobs:     make(chan *models.UserCredential, opts.QueueSize),
		pending:  make(map[string]struct{}),
	}
}

// Start launches the workers. Later calls are no-ops.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.closed {
		return
	}
	r.started = true

	for range r.workers {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Submit queues a check of cred without blocking.
//
// It reports false when the refresher is closed, the queue is full, or a check for the same provider id
// is already queued or running.
func (r *Refresher) Submit(cred *models.UserCredential) bool {
	if cred == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, ok := r.pending[cred.ProviderID()]; ok {
		return false
	}

	select {
	case r.jobs <- cred:
		r.pending[cred.ProviderID()] = struct{}{}
		return true
	default:
		return false
	}
}

// Close stops accepting checks, lets the workers drain the queue and waits for them.
func (r *Refresher) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	r.wg.Wait()
}

// Check probes the stored access token and refreshes it when the provider rejects it.
//
// Only a rejected token (401) triggers a refresh. The refreshed access token is written only if the stored
// refresh token is still the one it was minted from; a login in the meantime wins.
func (r *Refresher) Check(ctx context.Context, cred *models.UserCredential) error {
	tokens := cred.Tokens()
	logger := shared.WithLogger(r.logger, "provider_id", cred.ProviderID())

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("probe not attempted: %w", err)
	}

	err := r.provider.Probe(ctx, tokens.AccessToken)
	if err == nil {
		logger.Debug("access token valid")
		return nil
	}
	if !errors.Is(err, shared.ErrTokenExpired) {
		return fmt.Errorf("probe failed: %w", err)
	}

	logger.Info("access token rejected, refreshing")

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("refresh not attempted: %w", err)
	}

	token, err := r.provider.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		return err
	}
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrRefreshFailed)
	}

	err = r.store.UpdateAccessToken(ctx, cred.ProviderID(), tokens.RefreshToken, token.AccessToken)
	if errors.Is(err, shared.ErrNotFound) {
		logger.Info("credential changed during refresh, discarding refreshed token")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store refreshed token: %w", err)
	}

	logger.Info("access token refreshed")
	return nil
}

// worker is a worker goroutine that checks credentials from the jobs channel.
func (r *Refresher) worker(ctx context.Context) {
	defer r.wg.Done()

	for cred := range r.jobs {
		r.run(ctx, cred)
	}
}

func (r *Refresher) run(ctx context.Context, cred *models.UserCredential) {
	defer r.done(cred.ProviderID())

	jobCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.Check(jobCtx, cred); err != nil {
		r.logger.Warn("token check failed", "provider_id", cred.ProviderID(), "err", err)
	}
}

func (r *Refresher) done(providerID string) {
	r.mu.Lock()
	delete(r.pending, providerID)
	r.mu.Unlock()
}
