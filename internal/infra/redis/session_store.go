package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giangittb112000/olympia-sub001/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - It still keeps a local in-memory map of sessions; the round state
//     machine and its broadcast fanout run in-process.
//   - Redis marks session liveness, so an operator dashboard on another
//     instance can tell which matches are active.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.MatchSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.MatchSession),
	}
}

func (s *SessionStore) GetOrCreate(matchID string) *app.MatchSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[matchID]; ok {
		return session
	}
	session := app.NewMatchSession(matchID)
	s.sessions[matchID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(matchID), "1", s.ttl).Err()
	return session
}

func (s *SessionStore) Get(matchID string) (*app.MatchSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[matchID]
	return session, ok
}

func (s *SessionStore) Delete(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, matchID)
	_ = s.client.Del(context.Background(), s.key(matchID)).Err()
}

func (s *SessionStore) key(matchID string) string {
	return "match:session:" + matchID
}
