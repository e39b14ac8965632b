package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
	"github.com/garyellow/uniflow-chat/internal/event"
)

// Config configures a Store.
type Config struct {
	// TTL is the idle time after which a session is evicted.
	TTL time.Duration
	// SweepInterval is how often expired sessions are purged.
	// Lookups never return expired sessions regardless.
	SweepInterval time.Duration
	// MaxTurns caps stored history per session.
	MaxTurns int
	// OnCountChange is called with the live session count after inserts,
	// deletes and evictions. Optional.
	OnCountChange func(count int)
}

// Store is an in-memory session map with idle-TTL eviction.
//
// Each entry carries its own mutex so that Update serializes turns of one
// session while different sessions proceed in parallel. Callers only ever see
// deep copies; the stored value changes only through a successful Update.
type Store struct {
	items    *cache.Cache
	ttl      time.Duration
	maxTurns int
	onCount  func(int)
	now      func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

// NewStore creates a Store. The go-cache janitor sweeps every SweepInterval.
func NewStore(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}

	s := &Store{
		items:    cache.New(cfg.TTL, cfg.SweepInterval),
		ttl:      cfg.TTL,
		maxTurns: cfg.MaxTurns,
		onCount:  cfg.OnCountChange,
		now:      time.Now,
	}
	s.items.OnEvicted(func(id string, _ any) {
		slog.Debug("session evicted", "session_id", id)
		s.reportCount()
	})
	return s
}

// MaxTurns returns the per-session history cap.
func (s *Store) MaxTurns() int {
	return s.maxTurns
}

// Create starts a new empty session.
func (s *Store) Create(ctx context.Context, lang event.Language) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for range 3 {
		sess := newSession(NewID(), lang, s.now())
		if err := s.items.Add(sess.ID, &entry{session: sess}, cache.DefaultExpiration); err != nil {
			continue // id collision
		}
		s.reportCount()
		return sess.Clone(), nil
	}
	return nil, errors.New("session: could not allocate id")
}

// Get returns a copy of the session.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, ok := s.lookup(id)
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// GetOrCreate returns the session for id, or a new one when id is empty or
// unknown. The boolean reports whether a session was created.
func (s *Store) GetOrCreate(ctx context.Context, id string, lang event.Language) (*Session, bool, error) {
	if id != "" {
		sess, err := s.Get(ctx, id)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, false, err
		}
	}
	sess, err := s.Create(ctx, lang)
	return sess, err == nil, err
}

// Update runs fn on a copy of the session under the session's lock and
// commits the copy only if fn succeeds. The idle TTL restarts on commit.
//
// If the session is deleted or evicted while fn runs, the result is discarded
// and ErrSessionNotFound is returned.
func (s *Store) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, ok := s.lookup(id)
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	draft := e.session.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}

	// The entry must still be the live one for this id.
	if cur, ok := s.lookup(id); !ok || cur != e {
		return nil, apperrors.ErrSessionNotFound
	}

	draft.UpdatedAt = s.now()
	e.session = draft
	s.items.Set(id, e, cache.DefaultExpiration)
	return draft.Clone(), nil
}

// Delete removes a session. Returns ErrSessionNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.lookup(id); !ok {
		return apperrors.ErrSessionNotFound
	}
	// Delete fires OnEvicted, which reports the new count.
	s.items.Delete(id)
	return nil
}

// Sweep purges expired sessions immediately.
func (s *Store) Sweep() {
	s.items.DeleteExpired()
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	return len(s.items.Items())
}

// Close drops every session.
func (s *Store) Close() {
	s.items.Flush()
	s.reportCount()
}

func (s *Store) lookup(id string) (*entry, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	return e, ok
}

func (s *Store) reportCount() {
	if s.onCount != nil {
		s.onCount(s.Count())
	}
}
