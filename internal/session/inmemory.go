package session

import (
	"context"
	"sync"
	"time"

	"github.com/docuery/docuery/internal/rag"
)

// InMemoryStore keeps sessions in process memory. It is the fallback
// when no Redis address is configured; histories do not survive a
// restart.
type InMemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*memorySession
	now      func() time.Time
}

type memorySession struct {
	turns     []rag.HistoryItem
	expiresAt time.Time
}

// NewInMemoryStore creates an in-process session store. ttl <= 0 means
// DefaultTTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		ttl:      ttl,
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

func (s *InMemoryStore) History(_ context.Context, id string) ([]rag.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || s.now().After(sess.expiresAt) {
		delete(s.sessions, id)
		return []rag.HistoryItem{}, nil
	}
	out := make([]rag.HistoryItem, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

func (s *InMemoryStore) Append(_ context.Context, id string, turns ...rag.HistoryItem) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || s.now().After(sess.expiresAt) {
		sess = &memorySession{}
		s.sessions[id] = sess
	}
	sess.turns = append(sess.turns, turns...)
	if len(sess.turns) > maxTurns {
		sess.turns = sess.turns[len(sess.turns)-maxTurns:]
	}
	sess.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
