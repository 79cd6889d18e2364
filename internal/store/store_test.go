package store

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/shared"
)

// setupTestStore creates a store over an in-memory SQLite database with migrations applied
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(db, shared.NewLogger(io.Discard))
}

func nextChange(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func assertNoChange(t *testing.T, ch <-chan Change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %+v", c)
	default:
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Get missing key", func(t *testing.T) {
		s := setupTestStore(t)

		v, ok, err := s.Get(ctx, "nope")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ok || v != "" {
			t.Errorf("expected missing key, got %q (%v)", v, ok)
		}
	})

	t.Run("Set and Get", func(t *testing.T) {
		s := setupTestStore(t)

		if err := s.Set(ctx, KeyClientID, "abc"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Set(ctx, KeyClientID, "def"); err != nil {
			t.Fatalf("Set() overwrite error = %v", err)
		}

		v, ok, err := s.Get(ctx, KeyClientID)
		if err != nil || !ok || v != "def" {
			t.Errorf("Get() = %q, %v, %v", v, ok, err)
		}
	})

	t.Run("Remove and Clear", func(t *testing.T) {
		s := setupTestStore(t)

		if err := s.SetMany(ctx, map[string]string{KeyClientID: "abc", KeyAccessToken: "tok", KeyGracePeriod: "3"}); err != nil {
			t.Fatalf("SetMany() error = %v", err)
		}
		if err := s.Remove(ctx, KeyAccessToken, "missing"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if tok, _ := s.Token(ctx); tok != "" {
			t.Errorf("expected token removed, got %q", tok)
		}

		if err := s.Clear(ctx); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		all, err := s.All(ctx)
		if err != nil {
			t.Fatalf("All() error = %v", err)
		}
		if len(all) != 0 {
			t.Errorf("expected empty store after clear, got %v", all)
		}
	})

	t.Run("Subscribe receives changes in order", func(t *testing.T) {
		s := setupTestStore(t)
		ch, cancel := s.Subscribe()
		defer cancel()

		if err := s.Set(ctx, KeyClientID, "abc"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Set(ctx, KeyClientID, "abc"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Remove(ctx, KeyClientID); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		first := nextChange(t, ch)
		if first.Key != KeyClientID || first.NewValue != "abc" || first.Removed {
			t.Errorf("unexpected first change %+v", first)
		}
		second := nextChange(t, ch)
		if !second.Removed || second.OldValue != "abc" {
			t.Errorf("expected removal, got %+v", second)
		}
		assertNoChange(t, ch)
	})

	t.Run("Remove of missing key publishes nothing", func(t *testing.T) {
		s := setupTestStore(t)
		ch, cancel := s.Subscribe()
		defer cancel()

		if err := s.Remove(ctx, KeyAccessToken); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		assertNoChange(t, ch)
	})

	t.Run("Unsubscribe closes channel", func(t *testing.T) {
		s := setupTestStore(t)
		ch, cancel := s.Subscribe()
		cancel()
		cancel()

		if _, ok := <-ch; ok {
			t.Error("expected closed channel")
		}
		if err := s.Set(ctx, KeyClientID, "abc"); err != nil {
			t.Fatalf("Set() after unsubscribe error = %v", err)
		}
	})

	t.Run("Slow subscriber never blocks writers", func(t *testing.T) {
		s := setupTestStore(t)
		_, cancel := s.Subscribe()
		defer cancel()

		for i := 0; i < subscriberBuffer*2; i++ {
			if err := s.Set(ctx, KeyGracePeriod, time.Duration(i).String()); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
		}
	})
}

func TestSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadSettings defaults", func(t *testing.T) {
		s := setupTestStore(t)

		got, err := s.LoadSettings(ctx)
		if err != nil {
			t.Fatalf("LoadSettings() error = %v", err)
		}
		if got != models.DefaultSettings() {
			t.Errorf("expected defaults, got %+v", got)
		}
	})

	t.Run("LoadSettings ignores garbage", func(t *testing.T) {
		s := setupTestStore(t)
		if err := s.SetMany(ctx, map[string]string{KeyPlayingInterval: "fast", KeyAlbumDisplay: "sometimes", KeyIdleInterval: "7"}); err != nil {
			t.Fatalf("SetMany() error = %v", err)
		}

		got, err := s.LoadSettings(ctx)
		if err != nil {
			t.Fatalf("LoadSettings() error = %v", err)
		}
		if got.PlayingInterval != 2 || got.AlbumDisplay != models.AlbumSmartShow || got.IdleInterval != 7 {
			t.Errorf("unexpected settings %+v", got)
		}
	})

	t.Run("SaveSettings round trips", func(t *testing.T) {
		s := setupTestStore(t)
		want := models.Settings{ClientID: "  cid  ", PlayingInterval: 3, IdleInterval: 9, GracePeriod: 0, AlbumDisplay: models.AlbumAlwaysShow}

		if err := s.SaveSettings(ctx, want); err != nil {
			t.Fatalf("SaveSettings() error = %v", err)
		}
		got, err := s.LoadSettings(ctx)
		if err != nil {
			t.Fatalf("LoadSettings() error = %v", err)
		}
		want.ClientID = "cid"
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("SaveSettings rejects invalid values", func(t *testing.T) {
		s := setupTestStore(t)
		tt := []models.Settings{
			{PlayingInterval: 0, IdleInterval: 5, GracePeriod: 10, AlbumDisplay: models.AlbumSmartShow},
			{PlayingInterval: 2, IdleInterval: 61, GracePeriod: 10, AlbumDisplay: models.AlbumSmartShow},
			{PlayingInterval: 2, IdleInterval: 5, GracePeriod: -1, AlbumDisplay: models.AlbumSmartShow},
			{PlayingInterval: 2, IdleInterval: 5, GracePeriod: 10, AlbumDisplay: "never"},
		}
		for _, settings := range tt {
			if err := s.SaveSettings(ctx, settings); !errors.Is(err, shared.ErrInvalidSetting) {
				t.Errorf("SaveSettings(%+v) error = %v, want ErrInvalidSetting", settings, err)
			}
		}
	})

	t.Run("ResetSettings keeps client id and token", func(t *testing.T) {
		s := setupTestStore(t)
		if err := s.SaveSettings(ctx, models.Settings{ClientID: "cid", PlayingInterval: 9, IdleInterval: 9, GracePeriod: 9, AlbumDisplay: models.AlbumAlwaysShow}); err != nil {
			t.Fatalf("SaveSettings() error = %v", err)
		}
		if err := s.SetToken(ctx, "tok"); err != nil {
			t.Fatalf("SetToken() error = %v", err)
		}

		if err := s.ResetSettings(ctx); err != nil {
			t.Fatalf("ResetSettings() error = %v", err)
		}

		got, _ := s.LoadSettings(ctx)
		want := models.DefaultSettings()
		want.ClientID = "cid"
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
		if tok, _ := s.Token(ctx); tok != "tok" {
			t.Errorf("expected token kept, got %q", tok)
		}
	})

	t.Run("SetSetting", func(t *testing.T) {
		s := setupTestStore(t)

		tt := []struct {
			key     string
			raw     string
			wantErr bool
		}{
			{key: KeyPlayingInterval, raw: "4"},
			{key: KeyIdleInterval, raw: " 8 "},
			{key: KeyGracePeriod, raw: "0"},
			{key: KeyAlbumDisplay, raw: "always_show"},
			{key: KeyClientID, raw: "cid"},
			{key: KeyPlayingInterval, raw: "soon", wantErr: true},
			{key: "volume", raw: "11", wantErr: true},
		}
		for _, tc := range tt {
			err := s.SetSetting(ctx, tc.key, tc.raw)
			if (err != nil) != tc.wantErr {
				t.Errorf("SetSetting(%s, %q) error = %v, wantErr %v", tc.key, tc.raw, err, tc.wantErr)
			}
		}

		got, _ := s.LoadSettings(ctx)
		want := models.Settings{ClientID: "cid", PlayingInterval: 4, IdleInterval: 8, GracePeriod: 0, AlbumDisplay: models.AlbumAlwaysShow}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("client id helpers", func(t *testing.T) {
		s := setupTestStore(t)

		if err := s.SetClientID(ctx, "   "); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for blank client id, got %v", err)
		}
		if err := s.SetClientID(ctx, " cid "); err != nil {
			t.Fatalf("SetClientID() error = %v", err)
		}
		if id, _ := s.ClientID(ctx); id != "cid" {
			t.Errorf("expected trimmed client id, got %q", id)
		}
		if err := s.RemoveClientID(ctx); err != nil {
			t.Fatalf("RemoveClientID() error = %v", err)
		}
		if id, _ := s.ClientID(ctx); id != "" {
			t.Errorf("expected client id removed, got %q", id)
		}
	})
}
