package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// usageRetries bounds the optimistic retry loop before giving up with
// ErrConcurrentModification.
const usageRetries = 3

// UsageStore mirrors consumed question refs in a Redis set per match.
// MarkUsed runs WATCH/MULTI so two processes racing for the same questions
// cannot both commit: the loser re-reads, sees the refs taken, and fails.
type UsageStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUsageStore(client *redis.Client, ttl time.Duration) *UsageStore {
	return &UsageStore{client: client, ttl: ttl}
}

func (s *UsageStore) MarkUsed(ctx context.Context, matchID string, refs []string) error {
	key := s.key(matchID)

	for attempt := 0; attempt < usageRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			taken, err := tx.SMembers(ctx, key).Result()
			if err != nil && err != redis.Nil {
				return err
			}
			takenSet := make(map[string]bool, len(taken))
			for _, ref := range taken {
				takenSet[ref] = true
			}
			for _, ref := range refs {
				if takenSet[ref] {
					return domain.ErrConcurrentModification
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				members := make([]interface{}, len(refs))
				for i, ref := range refs {
					members[i] = ref
				}
				pipe.SAdd(ctx, key, members...)
				if s.ttl > 0 {
					pipe.Expire(ctx, key, s.ttl)
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue // the set changed under us, re-read and re-verify
		}
		return err
	}
	return domain.ErrConcurrentModification
}

func (s *UsageStore) Reset(ctx context.Context, matchID string) error {
	return s.client.Del(ctx, s.key(matchID)).Err()
}

func (s *UsageStore) UsedRefs(ctx context.Context, matchID string) ([]string, error) {
	refs, err := s.client.SMembers(ctx, s.key(matchID)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	return refs, nil
}

func (s *UsageStore) key(matchID string) string {
	return "bank:" + matchID + ":used"
}
