// Package workspace keeps per-session view state on the server. A browser
// session holds only the workspace id; pages, criteria and selections live
// here until the workspace is dropped or sits idle past its TTL.
package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long an idle workspace survives.
	DefaultTTL = 2 * time.Hour

	gcThreshold = 1000
)

// Workspace holds the views of one signed-in session.
type Workspace struct {
	id       string
	mu       sync.Mutex
	views    map[string]any
	lastSeen time.Time
}

// ID returns the workspace id.
func (w *Workspace) ID() string { return w.id }

// View returns the view registered under resource, creating it with factory
// on first use. Asking for an existing resource with a different type
// replaces it.
func View[V any](w *Workspace, resource string, factory func() V) V {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.views[resource].(V); ok {
		return v
	}
	v := factory()
	w.views[resource] = v
	return v
}

// Store maps workspace ids to workspaces.
type Store struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewStore creates a Store. A non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
		workspaces: map[string]*Workspace{},
	}
}

// NewID mints a workspace id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the workspace for id, creating it when missing or expired.
// An empty id is replaced by a fresh one; callers persist the returned
// workspace's ID.
func (s *Store) Get(id string) *Workspace {
	if _, err := uuid.Parse(id); err != nil {
		id = NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if w, ok := s.workspaces[id]; ok && now.Sub(w.lastSeen) < s.ttl {
		w.lastSeen = now
		return w
	}

	w := &Workspace{id: id, views: map[string]any{}, lastSeen: now}
	s.workspaces[id] = w
	s.gcLocked()
	return w
}

// Drop discards the workspace for id.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, id)
}

// Len returns the number of live workspaces.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

// Sweep removes every expired workspace and returns how many went.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// Run sweeps on every tick of interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("workspaces expired", slog.Int("count", n))
			}
		}
	}
}

func (s *Store) gcLocked() {
	if len(s.workspaces) < gcThreshold {
		return
	}
	s.sweepLocked()
}

func (s *Store) sweepLocked() int {
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, w := range s.workspaces {
		if !w.lastSeen.After(cutoff) {
			delete(s.workspaces, id)
			removed++
		}
	}
	return removed
}
