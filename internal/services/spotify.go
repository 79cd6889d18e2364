// Spotify Web API implementation of [Fetcher]
//
// Response shapes follow https://developer.spotify.com/documentation/web-api/reference/get-the-users-currently-playing-track
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/shared"
)

const (
	spotifyBaseURL       = "https://api.spotify.com/v1"
	currentlyPlayingPath = "/me/player/currently-playing"
	defaultFetchTimeout  = 15 * time.Second
	maxBodyBytes         = 1 << 20
)

// SpotifyService performs one-shot now-playing requests against the Spotify Web API.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

var _ Fetcher = (*SpotifyService)(nil)

// NewSpotifyService creates a fetcher. A nil client gets a default one with a request timeout.
func NewSpotifyService(client *http.Client, logger *log.Logger) *SpotifyService {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SpotifyService{
		baseURL:    spotifyBaseURL,
		httpClient: client,
		logger:     shared.WithLogger(logger, "service", "spotify"),
	}
}

// WithBaseURL points the service at another API root (used with httptest servers).
func (s *SpotifyService) WithBaseURL(baseURL string) *SpotifyService {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

// Name returns the name of the service
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// FetchOnce issues a single bearer GET for the currently playing item and classifies the outcome.
//
// It never returns an error: failures are folded into the [Result] kind. A cancelled ctx yields
// [KindNetworkError] with Err wrapping [context.Canceled], which callers use to suppress output.
func (s *SpotifyService) FetchOnce(ctx context.Context, token string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+currentlyPlayingPath, nil)
	if err != nil {
		return Result{Kind: KindNetworkError, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Join(ctx.Err(), err)
		}
		s.logger.Debug("request failed", "error", err)
		return Result{Kind: KindNetworkError, Err: fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)}
	}
	defer resp.Body.Close()

	return s.classify(resp)
}

func (s *SpotifyService) classify(resp *http.Response) Result {
	status := resp.StatusCode

	switch {
	case status == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return Result{Kind: KindNetworkError, StatusCode: status, Err: fmt.Errorf("failed to read response: %w", err)}
		}
		return decodePlaying(body, status)
	case status == http.StatusNoContent:
		return Result{Kind: KindIdle, StatusCode: status}
	case status == http.StatusUnauthorized:
		return Result{Kind: KindUnauthorized, StatusCode: status, Err: shared.ErrNotAuthenticated}
	case status >= http.StatusInternalServerError:
		return Result{Kind: KindAPIError, StatusCode: status, Err: fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, status)}
	default:
		s.logger.Warn("unhandled status from currently-playing", "status", status)
		return Result{Kind: KindUnhandled, StatusCode: status, Err: fmt.Errorf("%w: status %d", shared.ErrAPIRequest, status)}
	}
}

// decodePlaying treats an undecodable 200 body like a transport failure,
// and a literal JSON null as a non-playing response without a snapshot.
func decodePlaying(body []byte, status int) Result {
	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("null")) {
		return Result{Kind: KindPaused, StatusCode: status}
	}

	snapshot, err := models.DecodeSnapshot(trimmed)
	if err != nil {
		return Result{Kind: KindNetworkError, StatusCode: status, Err: err}
	}

	if snapshot.IsPlaying {
		return Result{Kind: KindPlaying, StatusCode: status, Snapshot: snapshot}
	}
	return Result{Kind: KindPaused, StatusCode: status, Snapshot: snapshot}
}
