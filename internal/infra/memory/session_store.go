package memory

import (
	"sync"

	"github.com/giangittb112000/olympia-sub001/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.MatchSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
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
}
