package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lensrelay/internal/core/domain"
)

type countingSession struct {
	id       domain.SessionID
	closes   atomic.Int32
	block    chan struct{}
	selected int
}

func (s *countingSession) ID() domain.SessionID { return s.id }

func (s *countingSession) Info() domain.SessionInfo {
	return domain.SessionInfo{ID: s.id, SelectedObjectID: s.selected}
}

func (s *countingSession) SelectObject(id int) { s.selected = id }

func (s *countingSession) Close(ctx context.Context) error {
	s.closes.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func TestRegistry_ConcurrentAddThenDrain(t *testing.T) {
	const k = 50
	r := NewSessionRegistry()
	sessions := make([]*countingSession, k)

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		sessions[i] = &countingSession{id: domain.SessionID(fmt.Sprintf("s-%d", i))}
		wg.Add(1)
		go func(s *countingSession) {
			defer wg.Done()
			assert.NoError(t, r.Add(s))
		}(sessions[i])
	}
	wg.Wait()
	require.Equal(t, k, r.Len())

	require.NoError(t, r.DrainAll(context.Background()))

	var total int32
	for _, s := range sessions {
		assert.Equal(t, int32(1), s.closes.Load(), string(s.id))
		total += s.closes.Load()
	}
	assert.Equal(t, int32(k), total)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_AddIfBelowHoldsLimitUnderContention(t *testing.T) {
	const k, limit = 50, 5
	r := NewSessionRegistry()

	var wg sync.WaitGroup
	var rejected atomic.Int32
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.AddIfBelow(&countingSession{id: domain.SessionID(fmt.Sprintf("s-%d", i))}, limit)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrCapacityReached)
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, limit, r.Len())
	assert.Equal(t, int32(k-limit), rejected.Load())

	// Zero means unlimited.
	require.NoError(t, r.AddIfBelow(&countingSession{id: "extra"}, 0))
	assert.Equal(t, limit+1, r.Len())
}

func TestRegistry_DrainAllWithRealSessions(t *testing.T) {
	r := NewSessionRegistry()
	links := make([]*fakeLink, 5)
	for i := range links {
		s, err := NewSession(SessionOptions{
			ID:         domain.SessionID(fmt.Sprintf("real-%d", i)),
			Transform:  domain.TransformPassthrough,
			OnTerminal: func(s *Session) { r.Release(s) },
		})
		require.NoError(t, err)
		require.NoError(t, r.Add(s))
		links[i] = newFakeLink()
		require.NoError(t, s.Attach(links[i]))
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, r.DrainAll(ctx))

	assert.Equal(t, 0, r.Len())
	for _, l := range links {
		assert.Equal(t, 1, l.Closes())
	}
}

func TestRegistry_DrainAllHonoursDeadline(t *testing.T) {
	r := NewSessionRegistry()
	stuck := &countingSession{id: "stuck", block: make(chan struct{})}
	require.NoError(t, r.Add(stuck))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.DrainAll(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DuplicateAndDoubleRemove(t *testing.T) {
	r := NewSessionRegistry()
	s := &countingSession{id: "a"}

	require.NoError(t, r.Add(s))
	assert.ErrorIs(t, r.Add(&countingSession{id: "a"}), domain.ErrSessionExists)

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ReleaseOnlyRemovesSameSession(t *testing.T) {
	r := NewSessionRegistry()
	s := &countingSession{id: "a"}
	require.NoError(t, r.Add(s))

	assert.False(t, r.Release(&countingSession{id: "a"}))
	assert.True(t, r.Release(s))
	assert.False(t, r.Release(s))
}

func TestRegistry_GetAndList(t *testing.T) {
	r := NewSessionRegistry()
	_, err := r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, r.Add(&countingSession{id: "b"}))
	require.NoError(t, r.Add(&countingSession{id: "a"}))

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("a"), got.ID())

	infos := r.List()
	require.Len(t, infos, 2)
	assert.Equal(t, domain.SessionID("a"), infos[0].ID)
}
