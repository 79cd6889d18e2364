package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/spotbar/internal/metrics"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/store"
	tu "github.com/desertthunder/spotbar/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const nowPlaying = `{"is_playing":true,"progress_ms":61000,"item":{"id":"t1","name":"Song",` +
	`"duration_ms":180000,"artists":[{"name":"A"},{"name":"B"}],"album":{"name":"Record"}}}`

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db, shared.NewLogger(io.Discard))
}

func newTestRunner(t *testing.T, opts RunnerOpts) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	if opts.Store == nil {
		opts.Store = setupTestStore(t)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.Input == nil {
		opts.Input = strings.NewReader("")
	}
	opts.Output = output
	return NewRunner(opts), output
}

// runCLI runs args through the registered command tree, skipping config resolution.
func runCLI(r *Runner, args ...string) error {
	app := &cli.Command{Name: "spotbar", Commands: r.register(), Writer: io.Discard}
	return app.Run(context.Background(), append([]string{"spotbar"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			st := setupTestStore(t)
			launcher := &tu.StubLauncher{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Store:      st,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Launcher:   launcher,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.store != st {
				t.Error("expected store to be set")
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
			if runner.launcher != launcher {
				t.Error("expected launcher to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("Close without a database", func(t *testing.T) {
			if err := NewRunner(RunnerOpts{}).Close(); err != nil {
				t.Errorf("expected no error, got %v", err)
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
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
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
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		names := map[string]bool{}
		for i, cmd := range runner.register() {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"watch", "status", "auth", "setup", "settings"} {
			if !names[want] {
				t.Errorf("command %q not registered", want)
			}
		}
	})

	t.Run("openStore", func(t *testing.T) {
		t.Run("seeds the client id from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Spotify.ClientID = " seeded "
			runner, _ := newTestRunner(t, RunnerOpts{Config: config})

			st, err := runner.openStore(context.Background())
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			if id, _ := st.ClientID(context.Background()); id != "seeded" {
				t.Errorf("client id = %q, want seeded", id)
			}
		})

		t.Run("keeps a stored client id", func(t *testing.T) {
			ctx := context.Background()
			config := shared.DefaultConfig()
			config.Spotify.ClientID = "seeded"
			st := setupTestStore(t)
			st.SetClientID(ctx, "stored")
			runner, _ := newTestRunner(t, RunnerOpts{Config: config, Store: st})

			if _, err := runner.openStore(ctx); err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			if id, _ := st.ClientID(ctx); id != "stored" {
				t.Errorf("client id = %q, want stored", id)
			}
		})

		t.Run("opens and migrates the configured database", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Path = filepath.Join(t.TempDir(), "spotbar.db")
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})
			t.Cleanup(func() { runner.Close() })

			st, err := runner.openStore(context.Background())
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			if _, err := st.LoadSettings(context.Background()); err != nil {
				t.Errorf("LoadSettings() error = %v", err)
			}
			tu.AssertFileExists(t, config.Database.Path)
		})
	})
}

func TestSettingsCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("set then show as JSON", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{})
		if err := runCLI(runner, "settings", "set", "playingInterval", "3"); err != nil {
			t.Fatalf("settings set error = %v", err)
		}
		output.Reset()

		if err := runCLI(runner, "settings", "show", "--json"); err != nil {
			t.Fatalf("settings show error = %v", err)
		}
		var got settingsView
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON %q: %v", output.String(), err)
		}
		if got.PlayingInterval != 3 || got.IdleInterval != 5 || got.AlbumDisplay != models.AlbumSmartShow {
			t.Errorf("unexpected settings %+v", got)
		}
	})

	t.Run("plain show lists every key", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{})
		if err := runCLI(runner, "settings", "show"); err != nil {
			t.Fatalf("settings show error = %v", err)
		}
		for _, key := range []string{store.KeyClientID, store.KeyPlayingInterval, store.KeyIdleInterval, store.KeyGracePeriod, store.KeyAlbumDisplay} {
			if !strings.Contains(output.String(), key) {
				t.Errorf("output missing %q:\n%s", key, output.String())
			}
		}
	})

	t.Run("set rejects invalid values", func(t *testing.T) {
		runner, _ := newTestRunner(t, RunnerOpts{})
		err := runCLI(runner, "settings", "set", "albumDisplay", "sometimes")
		if !errors.Is(err, shared.ErrInvalidSetting) {
			t.Errorf("expected ErrInvalidSetting, got %v", err)
		}
	})

	t.Run("set requires a key and value", func(t *testing.T) {
		runner, _ := newTestRunner(t, RunnerOpts{})
		if err := runCLI(runner, "settings", "set", "gracePeriod"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("reset keeps the client id", func(t *testing.T) {
		runner, _ := newTestRunner(t, RunnerOpts{})
		runner.store.SetClientID(ctx, "client")
		runner.store.SetSetting(ctx, store.KeyGracePeriod, "30")

		if err := runCLI(runner, "settings", "reset"); err != nil {
			t.Fatalf("settings reset error = %v", err)
		}
		s, _ := runner.store.LoadSettings(ctx)
		if s.GracePeriod != 10 || s.ClientID != "client" {
			t.Errorf("unexpected settings after reset %+v", s)
		}
	})

	t.Run("clear asks for confirmation", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{Input: strings.NewReader("n\n")})
		runner.store.SetToken(ctx, "token")

		if err := runCLI(runner, "settings", "clear"); err != nil {
			t.Fatalf("settings clear error = %v", err)
		}
		if !strings.Contains(output.String(), "Cancelled") {
			t.Errorf("output = %q", output.String())
		}
		if token, _ := runner.store.Token(ctx); token != "token" {
			t.Error("data removed without confirmation")
		}
	})

	t.Run("clear with --yes removes everything", func(t *testing.T) {
		runner, _ := newTestRunner(t, RunnerOpts{})
		runner.store.SetClientID(ctx, "client")
		runner.store.SetToken(ctx, "token")

		if err := runCLI(runner, "settings", "clear", "--yes"); err != nil {
			t.Fatalf("settings clear error = %v", err)
		}
		all, _ := runner.store.All(ctx)
		if len(all) != 0 {
			t.Errorf("expected empty store, got %v", all)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("client from argument", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{})
		if err := runCLI(runner, "setup", "client", "abc123"); err != nil {
			t.Fatalf("setup client error = %v", err)
		}
		if id, _ := runner.store.ClientID(ctx); id != "abc123" {
			t.Errorf("client id = %q", id)
		}
		if !strings.Contains(output.String(), "Client ID saved") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("client prompt shows the redirect uri and retries empty input", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{Input: strings.NewReader("\n   \n  abc  \n")})
		if err := runCLI(runner, "setup", "client"); err != nil {
			t.Fatalf("setup client error = %v", err)
		}

		out := output.String()
		if !strings.Contains(out, runner.config.Server.RedirectURI()) {
			t.Errorf("output missing redirect uri:\n%s", out)
		}
		if strings.Count(out, "cannot be empty") != 2 {
			t.Errorf("expected two empty-input warnings:\n%s", out)
		}
		if id, _ := runner.store.ClientID(ctx); id != "abc" {
			t.Errorf("client id = %q, want abc", id)
		}
	})

	t.Run("client prompt without input", func(t *testing.T) {
		runner, _ := newTestRunner(t, RunnerOpts{})
		if err := runCLI(runner, "setup", "client"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("database migrates with an existing config", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		if err := os.WriteFile(configPath, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "spotbar.db")
		runner, _ := newTestRunner(t, RunnerOpts{Config: config, ConfigPath: configPath})

		if err := runCLI(runner, "setup", "database"); err != nil {
			t.Fatalf("setup database error = %v", err)
		}
		tu.AssertFileExists(t, config.Database.Path)
	})
}

func TestAuthCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("login without a client id", func(t *testing.T) {
		launcher := &tu.StubLauncher{}
		runner, _ := newTestRunner(t, RunnerOpts{Launcher: launcher})

		err := runCLI(runner, "auth", "login")
		if !errors.Is(err, shared.ErrMissingClientID) {
			t.Errorf("expected ErrMissingClientID, got %v", err)
		}
		if launcher.Calls() != 0 {
			t.Error("launcher should not run without a client id")
		}
	})

	t.Run("login cancelled in the browser", func(t *testing.T) {
		launcher := &tu.StubLauncher{Err: shared.ErrAuthCancelled}
		runner, _ := newTestRunner(t, RunnerOpts{Launcher: launcher})
		runner.store.SetClientID(ctx, "client")

		if err := runCLI(runner, "auth", "login"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("login stores the exchanged token", func(t *testing.T) {
		tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			if r.PostForm.Get("code") != "the-code" || r.PostForm.Get("code_verifier") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
		}))
		defer tokens.Close()

		launcher := &tu.StubLauncher{Redirect: func(authURL string) (string, error) {
			u, err := url.Parse(authURL)
			if err != nil {
				return "", err
			}
			return "http://127.0.0.1:8888/callback?code=the-code&state=" + u.Query().Get("state"), nil
		}}
		runner, output := newTestRunner(t, RunnerOpts{
			Launcher: launcher,
			Endpoint: oauth2.Endpoint{AuthURL: tokens.URL + "/authorize", TokenURL: tokens.URL + "/api/token", AuthStyle: oauth2.AuthStyleInParams},
		})
		runner.store.SetClientID(ctx, "client")

		if err := runCLI(runner, "auth", "login"); err != nil {
			t.Fatalf("auth login error = %v", err)
		}
		if token, _ := runner.store.Token(ctx); token != "fresh" {
			t.Errorf("token = %q, want fresh", token)
		}
		if !strings.Contains(output.String(), "Logged in") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("status and logout", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{})
		runner.store.SetClientID(ctx, "client")
		runner.store.SetToken(ctx, "token")

		if err := runCLI(runner, "auth", "status"); err != nil {
			t.Fatalf("auth status error = %v", err)
		}
		if !strings.Contains(output.String(), "Access token: ✓ Stored") {
			t.Errorf("output = %q", output.String())
		}

		if err := runCLI(runner, "auth", "logout"); err != nil {
			t.Fatalf("auth logout error = %v", err)
		}
		if token, _ := runner.store.Token(ctx); token != "" {
			t.Error("token not removed")
		}
		if id, _ := runner.store.ClientID(ctx); id != "client" {
			t.Error("logout should keep the client id")
		}
	})
}

func TestStatusCommand(t *testing.T) {
	ctx := context.Background()

	api := func(t *testing.T, status int, body string) string {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(status)
			w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		return srv.URL
	}

	authenticated := func(t *testing.T, baseURL string) (*Runner, *bytes.Buffer) {
		t.Helper()
		runner, output := newTestRunner(t, RunnerOpts{APIBaseURL: baseURL})
		runner.store.SetClientID(ctx, "client")
		runner.store.SetToken(ctx, "token")
		return runner, output
	}

	t.Run("without a client id", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{})
		if err := runCLI(runner, "status"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		if !strings.Contains(output.String(), "Setup required") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("without a token", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{})
		runner.store.SetClientID(ctx, "client")
		if err := runCLI(runner, "status", "--json"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		if strings.TrimSpace(output.String()) != `{"state":"login"}` {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("playing", func(t *testing.T) {
		runner, output := authenticated(t, api(t, http.StatusOK, nowPlaying))
		if err := runCLI(runner, "status"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		for _, want := range []string{"Playing: Song", "Artists: A, B", "Album: Record", "Progress: 1:01 / 3:00"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("output missing %q:\n%s", want, output.String())
			}
		}
	})

	t.Run("playing as JSON passes the body through", func(t *testing.T) {
		runner, output := authenticated(t, api(t, http.StatusOK, nowPlaying))
		if err := runCLI(runner, "status", "--json"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		var got struct {
			State string          `json:"state"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON %q: %v", output.String(), err)
		}
		if got.State != "playing" || !strings.Contains(string(got.Data), `"progress_ms":61000`) {
			t.Errorf("unexpected output %s", output.String())
		}
	})

	t.Run("nothing playing", func(t *testing.T) {
		runner, output := authenticated(t, api(t, http.StatusNoContent, ""))
		if err := runCLI(runner, "status"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		if !strings.Contains(output.String(), "No active device") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("expired token is reported, not removed", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{APIBaseURL: api(t, http.StatusOK, nowPlaying)})
		runner.store.SetClientID(ctx, "client")
		runner.store.SetToken(ctx, "stale")

		if err := runCLI(runner, "status"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		if !strings.Contains(output.String(), "Session expired") {
			t.Errorf("output = %q", output.String())
		}
		if token, _ := runner.store.Token(ctx); token != "stale" {
			t.Error("status should not modify the store")
		}
	})

	t.Run("unhandled status is an error", func(t *testing.T) {
		runner, _ := authenticated(t, api(t, http.StatusTooManyRequests, ""))
		if err := runCLI(runner, "status"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestServeMetrics(t *testing.T) {
	config := shared.DefaultConfig()
	config.Metrics.Addr = "127.0.0.1:0"
	runner, _ := newTestRunner(t, RunnerOpts{Config: config})

	m := metrics.New()
	m.SetAttached(true)
	srv, err := runner.serveMetrics(m)
	if err != nil {
		t.Fatalf("serveMetrics() error = %v", err)
	}
	defer srv.Shutdown()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "spotbar_presenter_attached 1") {
		t.Errorf("status = %d, body = %s", resp.StatusCode, body)
	}

	post, err := http.Post("http://"+srv.Addr()+"/metrics", "text/plain", nil)
	if err != nil {
		t.Fatalf("POST /metrics error = %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", post.StatusCode)
	}
}
