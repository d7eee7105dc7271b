package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// ScoreStore mirrors committed score records as a Redis hash per match:
// HSET match:{matchID}:scores {playerID} {record JSON}.
type ScoreStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScoreStore(client *redis.Client, ttl time.Duration) *ScoreStore {
	return &ScoreStore{client: client, ttl: ttl}
}

func (s *ScoreStore) Save(ctx context.Context, matchID string, rec domain.ScoreRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := s.key(matchID)
	if err := s.client.HSet(ctx, key, rec.PlayerID, data).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		return s.client.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

// Load returns every persisted record for a match.
func (s *ScoreStore) Load(ctx context.Context, matchID string) ([]domain.ScoreRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.key(matchID)).Result()
	if err != nil {
		return nil, err
	}
	records := make([]domain.ScoreRecord, 0, len(raw))
	for _, data := range raw {
		var rec domain.ScoreRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *ScoreStore) key(matchID string) string {
	return "match:" + matchID + ":scores"
}
