package memory

import (
	"context"
	"sync"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// UsageStore is the in-memory mirror of consumed question refs. It applies
// the same no-overwrite discipline as the Redis store so racing allocations
// surface as ErrConcurrentModification instead of silently double-spending.
type UsageStore struct {
	mu   sync.Mutex
	used map[string]map[string]bool
}

func NewUsageStore() *UsageStore {
	return &UsageStore{used: make(map[string]map[string]bool)}
}

func (s *UsageStore) MarkUsed(_ context.Context, matchID string, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.used[matchID]
	if set == nil {
		set = make(map[string]bool)
		s.used[matchID] = set
	}
	for _, ref := range refs {
		if set[ref] {
			return domain.ErrConcurrentModification
		}
	}
	for _, ref := range refs {
		set[ref] = true
	}
	return nil
}

func (s *UsageStore) Reset(_ context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.used, matchID)
	return nil
}

func (s *UsageStore) UsedRefs(_ context.Context, matchID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refs []string
	for ref := range s.used[matchID] {
		refs = append(refs, ref)
	}
	return refs, nil
}

// ScoreStore keeps committed score records in memory.
type ScoreStore struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.ScoreRecord
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{records: make(map[string]map[string]domain.ScoreRecord)}
}

func (s *ScoreStore) Save(_ context.Context, matchID string, rec domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byPlayer := s.records[matchID]
	if byPlayer == nil {
		byPlayer = make(map[string]domain.ScoreRecord)
		s.records[matchID] = byPlayer
	}
	byPlayer[rec.PlayerID] = rec
	return nil
}

// Get returns the last committed record for a player, if any.
func (s *ScoreStore) Get(matchID, playerID string) (domain.ScoreRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[matchID][playerID]
	return rec, ok
}
