package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// application is the wired web app and the worker pool behind it.
type application struct {
	handler   http.Handler
	refresher *tasks.Refresher
}

// buildApp wires the repository, Spotify client, flows and router for config.
func (r *Runner) buildApp(config *shared.Config, db *sql.DB, provider services.OAuthService) *application {
	repo := repositories.NewCredentialRepository(db)

	refresher := tasks.NewRefresher(tasks.RefresherOpts{
		Store:     repo,
		Provider:  provider,
		Logger:    shared.WithLogger(r.logger, "component", "refresher"),
		Workers:   config.Refresher.Workers,
		QueueSize: config.Refresher.QueueSize,
		RateLimit: config.Refresher.RateLimit,
		Timeout:   config.Refresher.Timeout.Duration,
	})

	handler := server.New(server.Options{
		Provider:      provider,
		Store:         repo,
		Authenticator: tasks.NewAuthenticator(repo, shared.WithLogger(r.logger, "component", "auth")),
		Issuer:        tasks.NewKeyIssuer(repo, shared.WithLogger(r.logger, "component", "keys")),
		Proxy:         tasks.NewCredentialProxy(repo, refresher, shared.WithLogger(r.logger, "component", "proxy")),
		Sessions:      server.NewSessions(config.Session.Secret, config.Session.MaxAge.Duration, config.Server.Production),
		Logger:        shared.WithLogger(r.logger, "component", "http"),
		Limits:        config.Limits,
	})

	return &application{handler: handler, refresher: refresher}
}

// Serve runs the web application until SIGINT or SIGTERM, then stops HTTP, drains the refresher and closes the database.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	shared.SetLogLevel(r.logger, config.Server.LogLevel)

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	app := r.buildApp(config, db, spotify)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	app.refresher.Start(workerCtx)
	defer app.refresher.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              config.Server.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
