package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/shared"
)

// Bounds enforced when settings are written. They match the ranges offered by the options form.
const (
	MinInterval = 1
	MaxInterval = 60
	MaxGrace    = 120
)

// LoadSettings reads the settings, substituting defaults for absent or unparsable keys.
func (s *Store) LoadSettings(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()

	values, err := s.All(ctx)
	if err != nil {
		return settings, err
	}

	settings.ClientID = strings.TrimSpace(values[KeyClientID])
	s.loadInt(values, KeyPlayingInterval, &settings.PlayingInterval)
	s.loadInt(values, KeyIdleInterval, &settings.IdleInterval)
	s.loadInt(values, KeyGracePeriod, &settings.GracePeriod)

	if raw, ok := values[KeyAlbumDisplay]; ok {
		if mode, err := models.ParseAlbumDisplay(raw); err == nil {
			settings.AlbumDisplay = mode
		} else {
			s.logger.Warn("ignoring stored album display", "value", raw)
		}
	}

	return settings, nil
}

func (s *Store) loadInt(values map[string]string, key string, dst *int) {
	raw, ok := values[key]
	if !ok {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warn("ignoring unparsable setting", "key", key, "value", raw)
		return
	}
	*dst = n
}

// ValidateSettings checks intervals and the album display mode.
func ValidateSettings(settings models.Settings) error {
	for key, v := range map[string]int{
		KeyPlayingInterval: settings.PlayingInterval,
		KeyIdleInterval:    settings.IdleInterval,
	} {
		if v < MinInterval || v > MaxInterval {
			return fmt.Errorf("%w: %s must be between %d and %d seconds", shared.ErrInvalidSetting, key, MinInterval, MaxInterval)
		}
	}
	if settings.GracePeriod < 0 || settings.GracePeriod > MaxGrace {
		return fmt.Errorf("%w: %s must be between 0 and %d seconds", shared.ErrInvalidSetting, KeyGracePeriod, MaxGrace)
	}
	if _, err := models.ParseAlbumDisplay(string(settings.AlbumDisplay)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidSetting, err)
	}
	return nil
}

// SaveSettings validates and persists every field. An empty client id removes the key.
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}

	values := map[string]string{
		KeyPlayingInterval: strconv.Itoa(settings.PlayingInterval),
		KeyIdleInterval:    strconv.Itoa(settings.IdleInterval),
		KeyGracePeriod:     strconv.Itoa(settings.GracePeriod),
		KeyAlbumDisplay:    string(settings.AlbumDisplay),
	}

	clientID := strings.TrimSpace(settings.ClientID)
	if clientID != "" {
		values[KeyClientID] = clientID
	}
	if err := s.SetMany(ctx, values); err != nil {
		return err
	}
	if clientID == "" {
		return s.Remove(ctx, KeyClientID)
	}
	return nil
}

// ResetSettings restores default intervals and album display, keeping the client id and token.
func (s *Store) ResetSettings(ctx context.Context) error {
	current, err := s.LoadSettings(ctx)
	if err != nil {
		return err
	}
	defaults := models.DefaultSettings()
	defaults.ClientID = current.ClientID
	return s.SaveSettings(ctx, defaults)
}

// SetSetting parses and stores a single named setting, as typed on the command line.
func (s *Store) SetSetting(ctx context.Context, key, raw string) error {
	settings, err := s.LoadSettings(ctx)
	if err != nil {
		return err
	}

	switch key {
	case KeyClientID:
		settings.ClientID = raw
	case KeyPlayingInterval, KeyIdleInterval, KeyGracePeriod:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%w: %s must be a whole number of seconds", shared.ErrInvalidSetting, key)
		}
		switch key {
		case KeyPlayingInterval:
			settings.PlayingInterval = n
		case KeyIdleInterval:
			settings.IdleInterval = n
		default:
			settings.GracePeriod = n
		}
	case KeyAlbumDisplay:
		settings.AlbumDisplay = models.AlbumDisplay(strings.TrimSpace(raw))
	default:
		return fmt.Errorf("%w: unknown setting %q", shared.ErrInvalidSetting, key)
	}

	return s.SaveSettings(ctx, settings)
}

// ClientID returns the stored client id, or "" when absent.
func (s *Store) ClientID(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, KeyClientID)
	return strings.TrimSpace(v), err
}

// SetClientID stores a trimmed, non-empty client id.
func (s *Store) SetClientID(ctx context.Context, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return fmt.Errorf("%w: client id cannot be empty", shared.ErrInvalidInput)
	}
	return s.Set(ctx, KeyClientID, clientID)
}

func (s *Store) RemoveClientID(ctx context.Context) error {
	return s.Remove(ctx, KeyClientID)
}

// Token returns the cached access token, or "" when not authenticated.
func (s *Store) Token(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, KeyAccessToken)
	return v, err
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.Set(ctx, KeyAccessToken, token)
}

func (s *Store) RemoveToken(ctx context.Context) error {
	return s.Remove(ctx, KeyAccessToken)
}
