// Package session holds short-lived, in-memory conversation state. Sessions
// are created on first message, refreshed on every message, and evicted by a
// periodic sweep once idle past the timeout. History loss on eviction is
// expected; a returning client simply starts a fresh session.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultIdleTimeout   = 30 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Session is an ordered message history for one client. Fields are owned by
// the Manager; callers interact through Manager methods only.
type Session struct {
	ID           string
	Messages     []Message
	CreatedAt    time.Time
	LastActivity time.Time
}

// Manager is a concurrency-safe session table.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	sweepEvery  time.Duration
	now         func() time.Time
}

// NewManager creates a Manager. Non-positive durations fall back to the
// defaults (30m idle timeout, 5m sweep interval).
func NewManager(idleTimeout, sweepInterval time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		sweepEvery:  sweepInterval,
		now:         time.Now,
	}
}

// Touch returns the session for id, creating it if absent, and refreshes its
// last-activity time. An empty id allocates a new session with a generated id.
func (m *Manager) Touch(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	s, ok := m.sessions[id]
	if !ok {
		now := m.now()
		s = &Session{ID: id, CreatedAt: now, LastActivity: now}
		m.sessions[id] = s
	}
	s.LastActivity = m.now()
	return s
}

// Append adds a message to the session's history and refreshes activity.
// Appending to an evicted or unknown session recreates it.
func (m *Manager) Append(id string, msg Message) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		now := m.now()
		s = &Session{ID: id, CreatedAt: now, LastActivity: now}
		m.sessions[id] = s
	}
	s.Messages = append(s.Messages, msg)
	s.LastActivity = m.now()
	return s
}

// Recent returns the last n messages of the session, or nil if the session
// does not exist. The returned slice is a copy.
func (m *Manager) Recent(id string, n int) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || len(s.Messages) == 0 {
		return nil
	}
	msgs := s.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MessageCount returns how many messages the session holds (0 if absent).
func (m *Manager) MessageCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return len(s.Messages)
	}
	return 0
}

// Sweep evicts every session idle longer than the timeout and returns how
// many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idleTimeout)
	evicted := 0
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps on a fixed interval until ctx is cancelled. Runs independently
// of request traffic so eviction never blocks request handling.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("idle sessions evicted", "count", n)
			}
		}
	}
}
