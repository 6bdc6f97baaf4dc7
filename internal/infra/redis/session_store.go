package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"daily-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// The state machines live in a local map; Redis holds a liveness marker per
// session (quiz:live:{id}) holding the owning instance name. Snapshots themselves are written by Store.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	owner    string
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, owner string) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		owner:    owner,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), liveKey(session.ID()), s.owner, s.ttl).Err()
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), liveKey(sessionID)).Err()
}

// Len reports how many sessions this instance holds.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func liveKey(sessionID string) string {
	return "quiz:live:" + sessionID
}
