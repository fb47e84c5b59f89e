package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mikeboe/querymind/pkg/chat"
	"github.com/mikeboe/querymind/pkg/rag"
)

// DefaultIdleTTL is how long an unused session is kept before eviction.
const DefaultIdleTTL = 30 * time.Minute

// Identity names the caller of a request. UserID is set for signed-in users;
// anonymous callers are told apart by SessionID.
type Identity struct {
	UserID    string
	SessionID string
}

func (id Identity) key() string {
	if id.UserID != "" {
		return "user:" + id.UserID
	}
	return "anon:" + id.SessionID
}

type session struct {
	orch     *chat.Orchestrator
	lastUsed time.Time
}

// Sessions hands out one orchestrator per identity. Sessions idle for longer
// than IdleTTL are dropped; signed-in users get theirs rebuilt from the store.
type Sessions struct {
	Asker   rag.Asker
	Store   chat.MessageStore // nil disables persistence for everyone
	Logger  *slog.Logger
	IdleTTL time.Duration
	Now     func() time.Time

	mu        sync.Mutex
	sessions  map[string]*session
	lastSweep time.Time
}

func NewSessions(asker rag.Asker, store chat.MessageStore) *Sessions {
	return &Sessions{
		Asker:    asker,
		Store:    store,
		Logger:   slog.Default(),
		IdleTTL:  DefaultIdleTTL,
		Now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Lookup returns the caller's orchestrator if one is live. It never creates
// a session.
func (s *Sessions) Lookup(id Identity) (*chat.Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.touch(id.key())
	if !ok {
		return nil, false
	}
	return sess.orch, true
}

// Get returns the caller's orchestrator, creating it on first use. A new
// signed-in session starts from the stored history. If that read fails the
// orchestrator is handed out uncached so the next request tries again.
func (s *Sessions) Get(ctx context.Context, id Identity) *chat.Orchestrator {
	key := id.key()

	s.mu.Lock()
	if sess, ok := s.touch(key); ok {
		s.mu.Unlock()
		return sess.orch
	}
	s.mu.Unlock()

	o := chat.NewOrchestrator(chat.Config{
		Asker:   s.Asker,
		History: chat.NewHistory(s.Store, id.UserID, s.Logger),
		Logger:  s.Logger.With("session", key),
	})
	if id.UserID != "" {
		// The load outlives the request that triggered it.
		if err := o.LoadHistory(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Warn("Session not cached, history load failed", "session", key, "error", err)
			return o
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.touch(key); ok {
		return sess.orch
	}
	s.sessions[key] = &session{orch: o, lastUsed: s.Now()}
	s.Logger.Info("Created session", "session", key, "persistent", id.UserID != "" && s.Store != nil)
	return o
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// touch marks key as used and evicts idle sessions. Callers hold s.mu.
func (s *Sessions) touch(key string) (*session, bool) {
	now := s.Now()
	s.evictIdle(now)

	sess, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	sess.lastUsed = now
	return sess, true
}

func (s *Sessions) evictIdle(now time.Time) {
	if s.IdleTTL <= 0 || now.Sub(s.lastSweep) < s.IdleTTL/4 {
		return
	}
	s.lastSweep = now

	for key, sess := range s.sessions {
		if sess.orch.Busy() || now.Sub(sess.lastUsed) < s.IdleTTL {
			continue
		}
		delete(s.sessions, key)
		s.Logger.Info("Evicted idle session", "session", key)
	}
}
