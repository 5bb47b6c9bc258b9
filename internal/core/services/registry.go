package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lensrelay/internal/core/domain"
)

// ManagedSession is what the registry tracks.
type ManagedSession interface {
	ID() domain.SessionID
	Info() domain.SessionInfo
	SelectObject(trackID int)
	Close(ctx context.Context) error
}

// SessionRegistry is the set of live sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]ManagedSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[domain.SessionID]ManagedSession)}
}

// Add registers s. It fails if the id is already present.
func (r *SessionRegistry) Add(s ManagedSession) error {
	return r.AddIfBelow(s, 0)
}

// AddIfBelow registers s unless max sessions are already registered. A max
// of zero means no limit.
func (r *SessionRegistry) AddIfBelow(s ManagedSession, max int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; exists {
		return fmt.Errorf("%w: %s", domain.ErrSessionExists, s.ID())
	}
	if max > 0 && len(r.sessions) >= max {
		return fmt.Errorf("%w: %d sessions", domain.ErrCapacityReached, max)
	}
	r.sessions[s.ID()] = s
	return nil
}

// Remove deregisters id and reports whether it was present.
func (r *SessionRegistry) Remove(id domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Release deregisters s only if it is the session registered under its id.
func (r *SessionRegistry) Release(s ManagedSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, exists := r.sessions[s.ID()]; !exists || cur != s {
		return false
	}
	delete(r.sessions, s.ID())
	return true
}

func (r *SessionRegistry) Get(id domain.SessionID) (ManagedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns snapshots ordered by creation time.
func (r *SessionRegistry) List() []domain.SessionInfo {
	r.mu.RLock()
	infos := make([]domain.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.Info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DrainAll closes every registered session concurrently and waits for them,
// bounded by ctx. Sessions are deregistered whether or not they closed in time.
func (r *SessionRegistry) DrainAll(ctx context.Context) error {
	r.mu.RLock()
	snapshot := make([]ManagedSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range snapshot {
		wg.Add(1)
		go func(s ManagedSession) {
			defer wg.Done()
			_ = s.Close(ctx)
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("draining %d sessions: %w", len(snapshot), ctx.Err())
	}

	for _, s := range snapshot {
		r.Remove(s.ID())
	}
	return err
}
