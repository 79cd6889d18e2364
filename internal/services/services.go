package services

import (
	"context"
	"errors"

	"github.com/desertthunder/spotbar/internal/models"
)

// Fetcher performs a single now-playing request for a bearer token.
type Fetcher interface {
	FetchOnce(ctx context.Context, token string) Result
}

// Kind classifies the outcome of one fetch.
type Kind string

const (
	KindPlaying      Kind = "playing"
	KindPaused       Kind = "paused"
	KindIdle         Kind = "idle"
	KindUnauthorized Kind = "unauthorized"
	KindAPIError     Kind = "api_error"
	KindNetworkError Kind = "network_error"
	KindUnhandled    Kind = "unhandled" // any status without a defined reaction (e.g. 429)
)

// Result is the classified outcome of [Fetcher.FetchOnce].
//
// Snapshot is set for playing and paused results when the body carried one.
type Result struct {
	Kind       Kind
	Snapshot   *models.Snapshot
	StatusCode int
	Err        error
}

// Cancelled reports whether the fetch was abandoned because its context ended.
func (r Result) Cancelled() bool {
	return errors.Is(r.Err, context.Canceled)
}

// State maps the kind to the UI state it emits. Unauthorized maps to re-login;
// unhandled has no state and returns "".
func (r Result) State() models.State {
	switch r.Kind {
	case KindPlaying:
		return models.StatePlaying
	case KindPaused:
		return models.StatePaused
	case KindIdle:
		return models.StateIdle
	case KindUnauthorized:
		return models.StateReLogin
	case KindAPIError:
		return models.StateAPIError
	case KindNetworkError:
		return models.StateNetworkError
	}
	return ""
}
