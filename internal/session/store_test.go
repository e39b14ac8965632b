package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
	"github.com/garyellow/uniflow-chat/internal/event"
)

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s := NewStore(cfg)
	t.Cleanup(s.Close)
	return s
}

func TestStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})
	ctx := context.Background()

	created, err := s.Create(ctx, event.LangZhEn)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.ID, IDPrefix))
	assert.Equal(t, event.StageInitial, created.Stage)
	assert.Equal(t, event.LangZhEn, created.Language)
	assert.NotNil(t, created.MissingFields)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 1, s.Count())
}

func TestStore_GetUnknown(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})

	_, err := s.Get(context.Background(), "chat_missing")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = s.Get(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})
	ctx := context.Background()

	sess, err := s.Create(ctx, event.LangZh)
	require.NoError(t, err)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	got.Draft.Title = "mutated"
	got.Turns = append(got.Turns, Turn{Role: RoleUser, Content: "x"})

	again, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Draft.Title)
	assert.Empty(t, again.Turns)
}

func TestStore_GetOrCreate(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})
	ctx := context.Background()

	first, created, err := s.GetOrCreate(ctx, "", event.LangZh)
	require.NoError(t, err)
	assert.True(t, created)

	same, created, err := s.GetOrCreate(ctx, first.ID, event.LangZh)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, same.ID)

	fresh, created, err := s.GetOrCreate(ctx, "chat_unknown", event.LangEn)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "chat_unknown", fresh.ID)
}

func TestStore_UpdateCommits(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})
	ctx := context.Background()

	sess, err := s.Create(ctx, event.LangZh)
	require.NoError(t, err)

	updated, err := s.Update(ctx, sess.ID, func(cur *Session) error {
		cur.Draft.Title = "腾讯前端实习"
		cur.Stage = event.StageCollecting
		cur.AddTurn(RoleUser, "腾讯前端实习", time.Now(), s.MaxTurns())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "腾讯前端实习", updated.Draft.Title)
	assert.False(t, updated.UpdatedAt.Before(sess.UpdatedAt))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, event.StageCollecting, got.Stage)
	assert.Equal(t, 1, got.MessageCount())
}

func TestStore_FailedUpdateLeavesSessionUnchanged(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})
	ctx := context.Background()

	sess, err := s.Create(ctx, event.LangZh)
	require.NoError(t, err)
	_, err = s.Update(ctx, sess.ID, func(cur *Session) error {
		cur.Draft.KeyInfo.Company = "腾讯"
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("model unavailable")
	_, err = s.Update(ctx, sess.ID, func(cur *Session) error {
		cur.Draft.KeyInfo.Company = "阿里"
		cur.Draft.Tags = []string{"x"}
		cur.AddTurn(RoleUser, "阿里", time.Now(), 0)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "腾讯", got.Draft.KeyInfo.Company)
	assert.Empty(t, got.Draft.Tags)
	assert.Empty(t, got.Turns)
}

func TestStore_UpdateUnknown(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})

	_, err := s.Update(context.Background(), "chat_nope", func(*Session) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStore_DeleteDuringUpdate(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})
	ctx := context.Background()

	sess, err := s.Create(ctx, event.LangZh)
	require.NoError(t, err)

	_, err = s.Update(ctx, sess.ID, func(cur *Session) error {
		require.NoError(t, s.Delete(ctx, sess.ID))
		cur.Draft.Title = "too late"
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	var count atomic.Int64
	s := newTestStore(t, Config{OnCountChange: func(n int) { count.Store(int64(n)) }})
	ctx := context.Background()

	sess, err := s.Create(ctx, event.LangZh)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count.Load())

	require.NoError(t, s.Delete(ctx, sess.ID))
	assert.ErrorIs(t, s.Delete(ctx, sess.ID), apperrors.ErrSessionNotFound)
	assert.EqualValues(t, 0, count.Load())
}

func TestStore_TTLEviction(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{TTL: 50 * time.Millisecond, SweepInterval: time.Hour})
	ctx := context.Background()

	sess, err := s.Create(ctx, event.LangZh)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)

	// Lookups treat expired sessions as absent before any sweep runs.
	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.Equal(t, 0, s.Count())

	s.Sweep()
	_, err = s.Update(ctx, sess.ID, func(*Session) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStore_UpdateRefreshesTTL(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{TTL: 200 * time.Millisecond, SweepInterval: time.Hour})
	ctx := context.Background()

	sess, err := s.Create(ctx, event.LangZh)
	require.NoError(t, err)

	for range 3 {
		time.Sleep(100 * time.Millisecond)
		_, err := s.Update(ctx, sess.ID, func(*Session) error { return nil })
		require.NoError(t, err)
	}

	_, err = s.Get(ctx, sess.ID)
	assert.NoError(t, err)
}

func TestStore_ConcurrentSessions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})
	ctx := context.Background()

	const sessions, turns = 8, 25
	ids := make([]string, sessions)
	for i := range ids {
		sess, err := s.Create(ctx, event.LangZh)
		require.NoError(t, err)
		ids[i] = sess.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for j := range turns {
			wg.Go(func() {
				_, err := s.Update(ctx, id, func(cur *Session) error {
					cur.AddTurn(RoleUser, fmt.Sprintf("turn %d", j), time.Now(), 0)
					return nil
				})
				assert.NoError(t, err)
			})
		}
	}
	wg.Wait()

	for _, id := range ids {
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.Turns, turns, "no turn of session %s may be lost", id)
	}
}

func TestStore_CanceledContext(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, event.LangZh)
	assert.ErrorIs(t, err, context.Canceled)
}
