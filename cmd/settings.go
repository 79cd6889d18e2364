package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/store"
	"github.com/urfave/cli/v3"
)

// settingsView is the JSON shape of `settings show`. The client id is reported, never the token.
type settingsView struct {
	ClientID        string              `json:"clientId"`
	PlayingInterval int                 `json:"playingInterval"`
	IdleInterval    int                 `json:"idleInterval"`
	GracePeriod     int                 `json:"gracePeriod"`
	AlbumDisplay    models.AlbumDisplay `json:"albumDisplay"`
}

// SettingsShow prints the effective settings, defaults included.
func (r *Runner) SettingsShow(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	s, err := st.LoadSettings(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(settingsView{
			ClientID:        s.ClientID,
			PlayingInterval: s.PlayingInterval,
			IdleInterval:    s.IdleInterval,
			GracePeriod:     s.GracePeriod,
			AlbumDisplay:    s.AlbumDisplay,
		}, cmd.Bool("pretty"))
	}

	clientID := s.ClientID
	if clientID == "" {
		clientID = "(not set)"
	}
	r.writePlainHeader("Settings")
	r.writePlain("%-16s %s\n", store.KeyClientID, clientID)
	r.writePlain("%-16s %ds\n", store.KeyPlayingInterval, s.PlayingInterval)
	r.writePlain("%-16s %ds\n", store.KeyIdleInterval, s.IdleInterval)
	r.writePlain("%-16s %ds\n", store.KeyGracePeriod, s.GracePeriod)
	return r.writePlain("%-16s %s\n", store.KeyAlbumDisplay, s.AlbumDisplay)
}

// SettingsSet validates and stores a single setting.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	key, value := cmd.StringArg("key"), cmd.StringArg("value")
	if key == "" || value == "" {
		return fmt.Errorf("%w: usage: spotbar settings set <key> <value>", shared.ErrMissingArgument)
	}

	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	if err := st.SetSetting(ctx, key, value); err != nil {
		return err
	}
	r.logger.Info("setting saved", "key", key)
	return r.writePlain("✓ %s = %s\n", key, value)
}

// SettingsReset restores the default intervals and album display.
func (r *Runner) SettingsReset(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	if err := st.ResetSettings(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Settings restored to defaults\n")
}

// SettingsClear deletes every stored key after confirmation.
func (r *Runner) SettingsClear(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		answer, err := r.prompt("This removes the client id, access token and all settings. Continue? [y/N] ")
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			return r.writePlain("Cancelled\n")
		}
	}

	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	if err := st.Clear(ctx); err != nil {
		return err
	}
	r.logger.Info("all stored data cleared")
	return r.writePlain("✓ All stored data cleared\n")
}
