// Package session holds in-memory chat sessions keyed by opaque identifiers.
//
// Sessions are ephemeral by design: a process restart loses all of them.
// History is append-only and capped; idle sessions are evicted by a periodic
// TTL sweep. All map mutation happens under a single mutex held only for the
// duration of each map operation, never across a network call.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"atlasd/model"
)

const (
	// DefaultTTL is how long an idle session survives before a sweep
	// removes it.
	DefaultTTL = 1 * time.Hour

	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 15 * time.Minute

	// DefaultMaxHistory caps the number of retained messages per session;
	// the oldest entries are discarded first.
	DefaultMaxHistory = 50
)

type sessionState struct {
	createdAt    time.Time
	lastActivity time.Time
	messages     []model.Message
}

// Store is an in-memory session map shared across request handlers.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*sessionState
	maxHistory int
	ttl        time.Duration
	logger     *zap.Logger

	now func() time.Time // injectable for sweep tests
}

// NewStore creates a session store. Zero maxHistory or ttl fall back to the
// package defaults.
func NewStore(maxHistory int, ttl time.Duration, logger *zap.Logger) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions:   make(map[string]*sessionState),
		maxHistory: maxHistory,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateOrTouch returns a usable session identifier. A known id has its
// last-activity time refreshed; an unknown id is registered as a new session
// under that identifier; an empty id mints a fresh one. Never errors.
func (s *Store) CreateOrTouch(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}

	now := s.now()
	if st, ok := s.sessions[id]; ok {
		st.lastActivity = now
		return id
	}

	s.sessions[id] = &sessionState{createdAt: now, lastActivity: now}
	return id
}

// Append adds a message to the session, creating the session if absent, and
// truncates history to the configured cap (oldest first).
func (s *Store) Append(id, role, content string, msgContext map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st, ok := s.sessions[id]
	if !ok {
		st = &sessionState{createdAt: now}
		s.sessions[id] = st
	}

	st.messages = append(st.messages, model.Message{
		Role:      role,
		Content:   content,
		Context:   msgContext,
		Timestamp: now,
	})
	st.lastActivity = now

	if len(st.messages) > s.maxHistory {
		// Copy rather than reslice so the discarded prefix can be collected.
		trimmed := make([]model.Message, s.maxHistory)
		copy(trimmed, st.messages[len(st.messages)-s.maxHistory:])
		st.messages = trimmed
	}
}

// History returns a snapshot copy of the session's messages, or an empty
// slice for an unknown session.
func (s *Store) History(id string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return []model.Message{}
	}

	out := make([]model.Message, len(st.messages))
	copy(out, st.messages)
	return out
}

// HistoryForCompletion returns the session history restricted to user and
// assistant roles and stripped of context, shaped for submission to the
// completion API.
func (s *Store) HistoryForCompletion(id string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return nil
	}

	out := make([]model.Message, 0, len(st.messages))
	for _, msg := range st.messages {
		if msg.Role != model.RoleUser && msg.Role != model.RoleAssistant {
			continue
		}
		out = append(out, model.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// LastUserMessage returns the content and context of the most recent user
// message in the session. ok is false if the session has no user message.
func (s *Store) LastUserMessage(id string) (content string, msgContext map[string]any, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, found := s.sessions[id]
	if !found {
		return "", nil, false
	}
	for i := len(st.messages) - 1; i >= 0; i-- {
		if st.messages[i].Role == model.RoleUser {
			return st.messages[i].Content, st.messages[i].Context, true
		}
	}
	return "", nil, false
}

// Exists reports whether the session is known.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Touch refreshes the session's last-activity time if it exists.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[id]; ok {
		st.lastActivity = s.now()
	}
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes every session idle for longer than the TTL and returns the
// number removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, st := range s.sessions {
		if st.lastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("swept expired chat sessions",
			zap.Int("removed", removed),
			zap.Int("remaining", len(s.sessions)))
	}
	return removed
}

// RunSweeper sweeps on a fixed interval until the context is cancelled. It is
// meant to run on its own goroutine for the lifetime of the process.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
