package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/services"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/urfave/cli/v3"
)

// Status performs one fetch and prints the state update the watcher would emit.
//
// Unlike the watcher it never modifies the store: a rejected token is reported, not removed.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	settings, err := st.LoadSettings(ctx)
	if err != nil {
		return err
	}
	token, err := st.Token(ctx)
	if err != nil {
		return err
	}

	var update models.Update
	switch {
	case !settings.HasClientID():
		update.State = models.StateSetupRequired
	case token == "":
		update.State = models.StateLogin
	default:
		res := r.fetcher().FetchOnce(ctx, token)
		if res.Kind == services.KindUnhandled {
			return fmt.Errorf("%w: unexpected status %d", shared.ErrAPIRequest, res.StatusCode)
		}
		if res.Err != nil {
			r.logger.Debug("fetch failed", "kind", res.Kind, "error", res.Err)
		}
		update = models.Update{State: res.State(), Data: res.Snapshot}
	}

	if cmd.Bool("json") {
		return r.writeJSON(update, cmd.Bool("pretty"))
	}
	return r.writeStatus(update, settings.AlbumDisplay)
}

func (r *Runner) writeStatus(update models.Update, album models.AlbumDisplay) error {
	switch update.State {
	case models.StateSetupRequired:
		return r.writePlain("Setup required: run `spotbar setup client`\n")
	case models.StateLogin:
		return r.writePlain("Not logged in: run `spotbar auth login`\n")
	case models.StateReLogin:
		return r.writePlain("Session expired: run `spotbar auth login`\n")
	case models.StateNetworkError:
		return r.writePlain("Network error: check your internet connection\n")
	case models.StateAPIError:
		return r.writePlain("Spotify is unavailable right now\n")
	}

	if update.Data == nil || update.Data.Item == nil {
		return r.writePlain("No active device\n")
	}

	item := update.Data.Item
	label := "▶ Playing"
	if update.State == models.StatePaused {
		label = "❚❚ Paused"
	}
	r.writePlain("%s: %s\n", label, item.Name)
	r.writePlain("Artists: %s\n", item.ArtistNames())
	if item.ShowAlbum(album) {
		r.writePlain("Album: %s\n", item.Album.Name)
	}
	return r.writePlain("Progress: %s / %s\n",
		shared.FormatMillis(update.Data.ProgressMS),
		shared.FormatMillis(item.DurationMS),
	)
}
