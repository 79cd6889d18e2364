package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/auth"
	"github.com/desertthunder/spotbar/internal/metrics"
	"github.com/desertthunder/spotbar/internal/services"
	"github.com/desertthunder/spotbar/internal/session"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/store"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	store      *store.Store
	httpClient *http.Client
	apiBaseURL string
	launcher   auth.Launcher
	endpoint   oauth2.Endpoint
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      *store.Store
	HTTPClient *http.Client
	APIBaseURL string        // overrides the Spotify Web API base URL
	Launcher   auth.Launcher   // overrides the browser and loopback server used by login
	Endpoint   oauth2.Endpoint // overrides Spotify's accounts endpoint
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		apiBaseURL: opts.APIBaseURL,
		launcher:   opts.Launcher,
		endpoint:   opts.Endpoint,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		watchCommand, statusCommand, authCommand, setupCommand, settingsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before resolves the configuration named by --config, the .env file and SPOTBAR_* variables.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	config, err := shared.ResolveConfig(path)
	if err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	shared.SetLogLevel(r.logger, config.Log.ParsedLevel())
	return ctx, nil
}

// SetLogger replaces the logger used by commands and the components they build.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database opened by [Runner.openStore].
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.store = nil
	return err
}

// openStore opens and migrates the configured database once, seeding the client id from config.
//
// The seed applies whenever the store holds no client id; a stored value always wins.
func (r *Runner) openStore(ctx context.Context) (*store.Store, error) {
	if r.store == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, err
		}
		r.db = db
		r.store = store.New(db, r.logger)
	}

	if seed := strings.TrimSpace(r.config.Spotify.ClientID); seed != "" {
		current, err := r.store.ClientID(ctx)
		if err != nil {
			return nil, err
		}
		if current == "" {
			r.logger.Info("seeding client id from configuration")
			if err := r.store.SetClientID(ctx, seed); err != nil {
				return nil, err
			}
		}
	}
	return r.store, nil
}

func (r *Runner) fetcher() *services.SpotifyService {
	svc := services.NewSpotifyService(r.httpClient, r.logger)
	if r.apiBaseURL != "" {
		svc = svc.WithBaseURL(r.apiBaseURL)
	}
	return svc
}

// loginLauncher returns the configured launcher, defaulting to the loopback browser flow.
// Out receives the authorization URL when no browser can be opened.
func (r *Runner) loginLauncher(out io.Writer) auth.Launcher {
	if r.launcher != nil {
		return r.launcher
	}
	return &auth.LoopbackLauncher{
		RedirectURI: r.config.Server.RedirectURI(),
		Timeout:     r.config.Spotify.Timeout(),
		Out:         out,
		Logger:      r.logger,
	}
}

func (r *Runner) authenticator(st *store.Store, emitter auth.Emitter, out io.Writer, m *metrics.Metrics) *auth.Authenticator {
	return auth.New(auth.Options{
		Store:       st,
		Emitter:     emitter,
		Launcher:    r.loginLauncher(out),
		RedirectURI: r.config.Server.RedirectURI(),
		Endpoint:    r.endpoint,
		HTTPClient:  r.httpClient,
		Logger:      r.logger,
		Metrics:     m,
	})
}

// newController wires the poller, the authenticator and the store into a session.
func (r *Runner) newController(st *store.Store, m *metrics.Metrics) *session.Controller {
	ctl := session.NewController(session.Options{
		Store:   st,
		Fetcher: r.fetcher(),
		Logger:  r.logger,
		Metrics: m,
		OpenURI: shared.OpenBrowser,
	})
	// The TUI owns the terminal, so the authorization URL is only logged.
	ctl.UseAuthenticator(r.authenticator(st, ctl, nil, m))
	return ctl
}

// prompt writes label and reads one trimmed line from the input.
func (r *Runner) prompt(label string) (string, error) {
	if err := r.writePlain("%s", label); err != nil {
		return "", err
	}
	line, err := r.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
