package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/store"
)

// CommandKind names a request a presenter can send to the session.
type CommandKind string

const (
	CmdGetAuthToken   CommandKind = "get-auth-token"
	CmdForcePoll      CommandKind = "force-poll"
	CmdOpenSetupPage  CommandKind = "open-setup-page"
	CmdLogout         CommandKind = "logout"
	CmdOpenSpotifyURI CommandKind = "open-spotify-uri"
)

// Command is a tagged request. URI is only read by [CmdOpenSpotifyURI].
type Command struct {
	Kind CommandKind
	URI  string
}

// Reply carries the outcome of a dispatched command. Token is only set by [CmdGetAuthToken].
type Reply struct {
	Token string
	OK    bool
	Err   error
}

// Dispatch routes cmd to the matching controller operation.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) Reply {
	switch cmd.Kind {
	case CmdGetAuthToken:
		token, ok := c.Login(ctx)
		return Reply{Token: token, OK: ok}
	case CmdForcePoll:
		c.ForcePoll()
		return Reply{OK: true}
	case CmdOpenSetupPage:
		c.OpenSetup()
		return Reply{OK: true}
	case CmdLogout:
		c.Logout(ctx)
		return Reply{OK: true}
	case CmdOpenSpotifyURI:
		if !strings.HasPrefix(cmd.URI, "spotify:") {
			return Reply{Err: fmt.Errorf("%w: not a spotify uri: %q", shared.ErrInvalidArgument, cmd.URI)}
		}
		if err := c.OpenURI(cmd.URI); err != nil {
			return Reply{Err: err}
		}
		return Reply{OK: true}
	}

	c.logger.Warn("ignoring unknown command", "kind", cmd.Kind)
	return Reply{Err: fmt.Errorf("%w: unknown command %q", shared.ErrInvalidArgument, cmd.Kind)}
}

// Watch reacts to store changes until ctx ends: a new client id restarts
// polling and an album display change forces a poll.
func (c *Controller) Watch(ctx context.Context) error {
	changes, unsubscribe := c.store.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			c.handleChange(change)
		}
	}
}

func (c *Controller) handleChange(change store.Change) {
	switch change.Key {
	case store.KeyClientID:
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.visible {
			return
		}
		if change.Removed || change.NewValue == "" {
			c.logger.Info("client id removed, polling stopped")
			c.stopLocked()
			return
		}
		c.logger.Info("client id changed, restarting polling")
		c.startPollingLocked()
	case store.KeyAlbumDisplay:
		c.ForcePoll()
	}
}
