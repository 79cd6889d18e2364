package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/shared"
)

// Setting keys.
const (
	KeyClientID        = "clientId"
	KeyPlayingInterval = "playingInterval"
	KeyIdleInterval    = "idleInterval"
	KeyGracePeriod     = "gracePeriod"
	KeyAlbumDisplay    = "albumDisplay"
	KeyAccessToken     = "spotify_access_token"
)

const subscriberBuffer = 16

// Change describes a single key transition. Removed is set when the key no longer exists.
type Change struct {
	Key      string
	OldValue string
	NewValue string
	Removed  bool
}

// Store is a persistent key/value store with change notifications.
type Store struct {
	db     *sql.DB
	logger *log.Logger

	// mu serializes mutations so notifications are published in mutation order.
	mu      sync.Mutex
	subs    map[int]chan Change
	nextSub int
}

// New creates a [Store] over a migrated database.
func New(db *sql.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{
		db:     db,
		logger: shared.WithLogger(logger, "component", "store"),
		subs:   make(map[int]chan Change),
	}
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// All returns every stored key/value pair.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}

// Set stores a single key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany stores all values in one transaction.
func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := sortedKeys(values)
	changes, err := s.mutate(ctx, keys, func(tx *sql.Tx, key string) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, values[key], time.Now())
		return err
	}, func(key, old string, existed bool) (Change, bool) {
		return Change{Key: key, OldValue: old, NewValue: values[key]}, !existed || old != values[key]
	})
	if err != nil {
		return err
	}

	s.publish(changes)
	return nil
}

// Remove deletes the given keys. Missing keys are ignored.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes, err := s.mutate(ctx, keys, func(tx *sql.Tx, key string) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
		return err
	}, func(key, old string, existed bool) (Change, bool) {
		return Change{Key: key, OldValue: old, Removed: true}, existed
	})
	if err != nil {
		return err
	}

	s.publish(changes)
	return nil
}

// Clear deletes every key, including the access token.
func (s *Store) Clear(ctx context.Context) error {
	all, err := s.All(ctx)
	if err != nil {
		return err
	}
	return s.Remove(ctx, sortedKeys(all)...)
}

// Subscribe registers for change notifications. The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Change, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// mutate applies op to each key inside a transaction and collects the changes detect reports.
func (s *Store) mutate(
	ctx context.Context,
	keys []string,
	op func(tx *sql.Tx, key string) error,
	detect func(key, old string, existed bool) (Change, bool),
) ([]Change, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var changes []Change
	for _, key := range keys {
		var old string
		existed := true
		err := tx.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&old)
		if err == sql.ErrNoRows {
			existed = false
		} else if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}

		if err := op(tx, key); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", key, err)
		}
		if c, ok := detect(key, old, existed); ok {
			changes = append(changes, c)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settings: %w", err)
	}
	return changes, nil
}

// publish must be called with mu held.
func (s *Store) publish(changes []Change) {
	for _, c := range changes {
		for id, ch := range s.subs {
			select {
			case ch <- c:
			default:
				s.logger.Warn("dropping settings change for slow subscriber", "subscriber", id, "key", c.Key)
			}
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
