package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotbar/internal/auth"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the PKCE flow in the browser and stores the access token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	var emitted models.State
	emitter := auth.EmitterFunc(func(u models.Update) { emitted = u.State })

	r.logger.Info("starting spotify login", "redirect_uri", r.config.Server.RedirectURI())

	if _, ok := r.authenticator(st, emitter, r.output, nil).Authenticate(ctx, true); !ok {
		switch emitted {
		case models.StateSetupRequired:
			return fmt.Errorf("%w: run `spotbar setup client` first", shared.ErrMissingClientID)
		case models.StateSetupFailed:
			return fmt.Errorf("%w: Spotify rejected the client id, it has been cleared", shared.ErrInvalidClient)
		}
		return fmt.Errorf("%w: login did not complete", shared.ErrAuthFailed)
	}

	return r.writePlain("✓ Logged in to Spotify\n")
}

// AuthLogout removes the stored access token. The client id is kept.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	if err := st.RemoveToken(ctx); err != nil {
		return fmt.Errorf("failed to remove access token: %w", err)
	}
	r.logger.Info("access token removed")
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus reports whether a client id and an access token are stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	clientID, err := st.ClientID(ctx)
	if err != nil {
		return err
	}
	token, err := st.Token(ctx)
	if err != nil {
		return err
	}

	r.writePlainHeader("Spotify authentication")
	if clientID == "" {
		r.writePlain("Client ID: ✗ Not configured (run `spotbar setup client`)\n")
	} else {
		r.writePlain("Client ID: ✓ %s\n", clientID)
	}
	if token == "" {
		r.writePlain("Access token: ✗ Not authenticated (run `spotbar auth login`)\n")
	} else {
		r.writePlain("Access token: ✓ Stored\n")
	}
	return r.writePlain("Redirect URI: %s\n", r.config.Server.RedirectURI())
}
