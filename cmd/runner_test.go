package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/shared"
	tu "github.com/desertthunder/nowplaying/internal/testing"
	"github.com/urfave/cli/v3"
)

// newTestRunner returns a runner bound to a config whose database lives in a temp dir.
func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer, *shared.Config) {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "nowplaying.db")

	logger, _ := tu.NewTestLogger()
	output := &bytes.Buffer{}
	return NewRunner(RunnerOpts{Config: config, Logger: logger, Output: output}), output, config
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "nowplaying", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"nowplaying"}, args...))
}

func seedUser(t *testing.T, config *shared.Config, providerID, email string) *repositories.CredentialRepository {
	t.Helper()

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repositories.NewCredentialRepository(db)
	tokens := models.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: "3600"}
	if _, err := repo.Upsert(context.Background(), models.NewUserCredential(providerID, email, tokens)); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return repo
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil dependencies uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config != nil {
				t.Error("expected config to be resolved per command")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"serve", "setup", "keys", "users", "creds"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("reads the --config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[server]\nport = 4321\n"), 0600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			logger, _ := tu.NewTestLogger()
			runner := NewRunner(RunnerOpts{Logger: logger, Output: &bytes.Buffer{}})

			var port int
			app := &cli.Command{
				Name:  "nowplaying",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					config, err := runner.loadConfig(cmd)
					if err != nil {
						return err
					}
					port = config.Server.Port
					return nil
				},
			}

			if err := app.Run(context.Background(), []string{"nowplaying", "--config", path}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if port != 4321 {
				t.Errorf("expected port 4321 from file, got %d", port)
			}
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("setup database", func(t *testing.T) {
		runner, output, config := newTestRunner(t)

		if err := run(runner, "setup", "database"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tu.AssertFileExists(t, config.Database.Path)
		if !strings.Contains(output.String(), "Database ready") {
			t.Errorf("expected success line, got %q", output.String())
		}
	})

	t.Run("setup config", func(t *testing.T) {
		runner, output, _ := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := run(runner, "setup", "config", "--config", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "[credentials.spotify]") {
			t.Error("expected the example config to be written")
		}
		if !strings.Contains(output.String(), path) {
			t.Errorf("expected path in output, got %q", output.String())
		}

		if err := run(runner, "setup", "config", "--config", path); err == nil {
			t.Error("expected an error when the file already exists")
		}
	})

	t.Run("keys issue", func(t *testing.T) {
		runner, output, config := newTestRunner(t)
		repo := seedUser(t, config, "spotify-1", "one@example.com")

		if err := run(runner, "keys", "issue", "--provider-id", "spotify-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored, err := repo.FindByProviderID(context.Background(), "spotify-1")
		if err != nil {
			t.Fatalf("failed to load user: %v", err)
		}
		if !stored.HasAPIKey() {
			t.Fatal("expected a key to be stored")
		}
		if !strings.Contains(output.String(), stored.APIKey()) {
			t.Error("expected the issued key to be printed")
		}
	})

	t.Run("keys issue for unknown user", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)

		err := run(runner, "keys", "issue", "--provider-id", "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("users show", func(t *testing.T) {
		runner, output, config := newTestRunner(t)
		seedUser(t, config, "spotify-1", "One@Example.com")

		if err := run(runner, "users", "show", "--provider-id", "spotify-1", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var view userView
		if err := json.Unmarshal(output.Bytes(), &view); err != nil {
			t.Fatalf("failed to decode output %q: %v", output.String(), err)
		}
		if view.Email != "one@example.com" || view.ProviderID != "spotify-1" || view.HasAPIKey {
			t.Errorf("unexpected view %+v", view)
		}
		if strings.Contains(output.String(), "refresh") {
			t.Error("tokens must not be printed")
		}
	})

	t.Run("users ban and count", func(t *testing.T) {
		runner, output, config := newTestRunner(t)
		repo := seedUser(t, config, "spotify-1", "one@example.com")
		ctx := context.Background()

		if err := run(runner, "users", "ban", "--provider-id", "spotify-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stored, _ := repo.FindByProviderID(ctx, "spotify-1"); !stored.IsBanned() {
			t.Error("expected user to be banned")
		}

		if err := run(runner, "users", "ban", "--provider-id", "spotify-1", "--undo"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stored, _ := repo.FindByProviderID(ctx, "spotify-1"); stored.IsBanned() {
			t.Error("expected ban to be lifted")
		}

		output.Reset()
		if err := run(runner, "users", "count"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if output.String() != "1\n" {
			t.Errorf("expected count 1, got %q", output.String())
		}
	})

	t.Run("creds get", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/spotifyCreds" || r.Header.Get("Authorization") != "Bearer good-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"accessToken":"a","refreshToken":"r","expiresIn":"3600"}`))
		}))
		defer srv.Close()

		runner, output, _ := newTestRunner(t)

		if err := run(runner, "creds", "get", "--key", "good-key", "--url", srv.URL, "--pretty=false"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := `{"accessToken":"a","refreshToken":"r","expiresIn":"3600"}` + "\n"
		if output.String() != expected {
			t.Errorf("expected %q, got %q", expected, output.String())
		}

		err := run(runner, "creds", "get", "--key", "bad-key", "--url", srv.URL)
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("serve rejects incomplete config", func(t *testing.T) {
		runner, _, config := newTestRunner(t)
		config.Credentials.Spotify.ClientSecret = ""

		err := run(runner, "serve")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestBuildApp(t *testing.T) {
	runner, _, config := newTestRunner(t)

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	app := runner.buildApp(config, db, &tu.MockProvider{})
	defer app.refresher.Close()

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spotifyCreds", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a key, got %d", rec.Code)
	}
}
