package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/metrics"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/store"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// Scope is the only permission requested.
	Scope = "user-read-currently-playing"
)

// Endpoint is Spotify's OAuth2 endpoint. The client id travels in the form body and no secret is sent.
var Endpoint = oauth2.Endpoint{
	AuthURL:   spotifyAuthURL,
	TokenURL:  spotifyTokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// Launcher runs the authorization step and returns the URL the provider redirected to.
type Launcher interface {
	Launch(ctx context.Context, authURL string, interactive bool) (string, error)
}

// Emitter forwards state updates to whatever is presenting them.
type Emitter interface {
	Emit(update models.Update)
}

// EmitterFunc adapts a function to [Emitter].
type EmitterFunc func(models.Update)

func (f EmitterFunc) Emit(u models.Update) { f(u) }

type Options struct {
	Store       *store.Store
	Emitter     Emitter
	Launcher    Launcher
	RedirectURI string
	Endpoint    oauth2.Endpoint // defaults to [Endpoint]
	HTTPClient  *http.Client    // used for the token exchange
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

// Authenticator performs the Authorization Code with PKCE flow against Spotify.
type Authenticator struct {
	store       *store.Store
	emitter     Emitter
	launcher    Launcher
	redirectURI string
	endpoint    oauth2.Endpoint
	httpClient  *http.Client
	logger      *log.Logger
	metrics     *metrics.Metrics
}

func New(opts Options) *Authenticator {
	if opts.Endpoint == (oauth2.Endpoint{}) {
		opts.Endpoint = Endpoint
	}
	if opts.Emitter == nil {
		opts.Emitter = EmitterFunc(func(models.Update) {})
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Authenticator{
		store:       opts.Store,
		emitter:     opts.Emitter,
		launcher:    opts.Launcher,
		redirectURI: opts.RedirectURI,
		endpoint:    opts.Endpoint,
		httpClient:  opts.HTTPClient,
		logger:      shared.WithLogger(opts.Logger, "component", "auth"),
		metrics:     opts.Metrics,
	}
}

func (a *Authenticator) config(clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: a.redirectURI,
		Scopes:      []string{Scope},
		Endpoint:    a.endpoint,
	}
}

// AuthURL builds the authorization URL for clientID with the challenge derived from verifier.
func (a *Authenticator) AuthURL(clientID, state, verifier string) string {
	return a.config(clientID).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Authenticate obtains and persists an access token.
//
// Failures never propagate: the result is ("", false). Without a client id it
// emits setup_required and makes no network call. A rejected client id is
// removed from the store and setup_failed is emitted.
func (a *Authenticator) Authenticate(ctx context.Context, interactive bool) (string, bool) {
	clientID, err := a.store.ClientID(ctx)
	if err != nil {
		a.logger.Error("failed to read client id", "error", err)
		a.metrics.ObserveAuth("error")
		return "", false
	}
	if clientID == "" {
		a.logger.Error("client id not set, aborting authentication")
		a.emitter.Emit(models.Update{State: models.StateSetupRequired})
		a.metrics.ObserveAuth("setup_required")
		return "", false
	}

	verifier, err := NewVerifier()
	if err != nil {
		a.logger.Error("failed to create verifier", "error", err)
		a.metrics.ObserveAuth("error")
		return "", false
	}
	state := shared.GenerateID()

	redirect, err := a.launcher.Launch(ctx, a.AuthURL(clientID, state, verifier), interactive)
	if err != nil {
		a.fail(ctx, err)
		return "", false
	}

	code, err := extractCode(redirect, state)
	if err != nil {
		a.fail(ctx, err)
		return "", false
	}
	if code == "" {
		a.logger.Info("authorization flow was cancelled")
		a.metrics.ObserveAuth("cancelled")
		return "", false
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	token, err := a.config(clientID).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		a.fail(ctx, err)
		return "", false
	}
	if token.AccessToken == "" {
		a.logger.Warn("token response carried no access token")
		a.metrics.ObserveAuth("error")
		return "", false
	}

	if err := a.store.SetToken(ctx, token.AccessToken); err != nil {
		a.logger.Error("failed to persist access token", "error", err)
		a.metrics.ObserveAuth("error")
		return "", false
	}

	a.logger.Info("authenticated with spotify")
	a.metrics.ObserveAuth("success")
	return token.AccessToken, true
}

func (a *Authenticator) fail(ctx context.Context, err error) {
	a.logger.Info("authentication flow was cancelled or failed", "error", err)

	if !isInvalidClient(err) {
		a.metrics.ObserveAuth("failed")
		return
	}

	a.metrics.ObserveAuth("invalid_client")
	if err := a.store.RemoveClientID(ctx); err != nil {
		a.logger.Error("failed to clear rejected client id", "error", err)
	}
	a.emitter.Emit(models.Update{State: models.StateSetupFailed})
}

// isInvalidClient matches the oauth2 invalid_client error code or any error mentioning "invalid client".
func isInvalidClient(err error) bool {
	if errors.Is(err, shared.ErrInvalidClient) {
		return true
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_client" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "invalid client")
}

// extractCode returns the code query parameter of redirect. A state parameter, when present, must match.
func extractCode(redirect, state string) (string, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if got := q.Get("state"); got != "" && got != state {
		return "", errors.New("state mismatch in authorization redirect")
	}
	return q.Get("code"), nil
}
