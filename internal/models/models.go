package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// State is the UI state carried by an [Update].
type State string

const (
	StateSetupRequired State = "setup_required"
	StateSetupFailed   State = "setup_failed"
	StateLogin         State = "login"
	StateReLogin       State = "re-login"
	StatePlaying       State = "playing"
	StatePaused        State = "paused"
	StateIdle          State = "idle"
	StateNetworkError  State = "network_error"
	StateAPIError      State = "api_error"
)

// Known reports whether s is one of the states the presenter is expected to render.
func (s State) Known() bool {
	switch s {
	case StateSetupRequired, StateSetupFailed, StateLogin, StateReLogin,
		StatePlaying, StatePaused, StateIdle, StateNetworkError, StateAPIError:
		return true
	}
	return false
}

// RequiresAction reports whether the state blocks playback display until the user acts.
func (s State) RequiresAction() bool {
	switch s {
	case StateSetupRequired, StateSetupFailed, StateLogin, StateReLogin:
		return true
	}
	return false
}

// Update is a single state-update event: {state, data?}.
type Update struct {
	State State     `json:"state"`
	Data  *Snapshot `json:"data,omitempty"`
}

// AlbumDisplay controls when the album name is shown next to a track.
type AlbumDisplay string

const (
	AlbumAlwaysShow AlbumDisplay = "always_show"
	AlbumSmartShow  AlbumDisplay = "smart_show"
)

// ParseAlbumDisplay validates a stored or user-supplied album display value.
func ParseAlbumDisplay(s string) (AlbumDisplay, error) {
	switch v := AlbumDisplay(strings.TrimSpace(s)); v {
	case AlbumAlwaysShow, AlbumSmartShow:
		return v, nil
	}
	return "", fmt.Errorf("unknown album display %q", s)
}

// Settings is the user-tunable configuration read before every poll.
//
// Intervals are whole seconds, as stored.
type Settings struct {
	ClientID        string
	PlayingInterval int
	IdleInterval    int
	GracePeriod     int
	AlbumDisplay    AlbumDisplay
}

// DefaultSettings returns the settings used for any key that has never been stored.
func DefaultSettings() Settings {
	return Settings{
		PlayingInterval: 2,
		IdleInterval:    5,
		GracePeriod:     10,
		AlbumDisplay:    AlbumSmartShow,
	}
}

func (s Settings) HasClientID() bool { return s.ClientID != "" }

func (s Settings) PlayingDelay() time.Duration { return seconds(s.PlayingInterval) }
func (s Settings) IdleDelay() time.Duration    { return seconds(s.IdleInterval) }
func (s Settings) Grace() time.Duration        { return seconds(s.GracePeriod) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Snapshot is one decoded "currently playing" response.
//
// Only the fields the poller and presenter consume are decoded; Raw keeps the
// untouched body so [json.Marshal] of a Snapshot passes everything through.
type Snapshot struct {
	IsPlaying  bool            `json:"is_playing"`
	ProgressMS int             `json:"progress_ms"`
	Timestamp  int64           `json:"timestamp"`
	Item       *Item           `json:"item"`
	Raw        json.RawMessage `json:"-"`
}

// Item is the track object inside a [Snapshot]. It is nil when Spotify reports no item (e.g. during ads).
type Item struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMS int      `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

type Artist struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type Album struct {
	Name   string  `json:"name"`
	URI    string  `json:"uri"`
	Images []Image `json:"images"`
}

type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// DecodeSnapshot decodes body and retains it as the snapshot's raw payload.
func DecodeSnapshot(body []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	s.Raw = append(json.RawMessage(nil), body...)
	return &s, nil
}

// MarshalJSON emits the raw payload when present so unconsumed fields survive.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type plain Snapshot
	return json.Marshal(plain(s))
}

// TrackID returns the item id, or "" when there is no item.
func (s *Snapshot) TrackID() string {
	if s == nil || s.Item == nil {
		return ""
	}
	return s.Item.ID
}

// ArtistNames joins the item's artist names with ", ".
func (i *Item) ArtistNames() string {
	names := make([]string, 0, len(i.Artists))
	for _, a := range i.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// ShowAlbum applies the album display rule: smart_show hides the album when it
// only repeats the track name (case-insensitive, trimmed).
func (i *Item) ShowAlbum(mode AlbumDisplay) bool {
	switch mode {
	case AlbumAlwaysShow:
		return true
	case AlbumSmartShow:
		return !strings.EqualFold(strings.TrimSpace(i.Name), strings.TrimSpace(i.Album.Name))
	}
	return false
}
