package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/giangittb112000/olympia-sub001/internal/bank"
	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// BankLoader fetches bank content from a backing store (e.g., document DB).
type BankLoader interface {
	LoadBank(ctx context.Context, matchID string) (domain.BankDocument, error)
}

// BankRepository keeps the authoritative bank entity in-process and caches the
// bank document in Redis so restarts and sibling instances skip the backing
// store: SET bank:{matchID}:doc {document JSON}. Usage flags live in the
// UsageStore and are reapplied whenever the entity is rebuilt.
type BankRepository struct {
	client *redis.Client
	loader BankLoader
	usage  *UsageStore
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand

	mu       sync.RWMutex
	entities map[string]*bank.Bank
}

func NewBankRepository(client *redis.Client, loader BankLoader, usage *UsageStore, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client:   client,
		loader:   loader,
		usage:    usage,
		ttl:      ttl,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		entities: make(map[string]*bank.Bank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, matchID string) (*bank.Bank, error) {
	r.mu.RLock()
	if b, ok := r.entities[matchID]; ok {
		r.mu.RUnlock()
		return b, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(matchID, func() (interface{}, error) {
		r.mu.RLock()
		if b, ok := r.entities[matchID]; ok {
			r.mu.RUnlock()
			return b, nil
		}
		r.mu.RUnlock()

		doc, err := r.loadDocument(ctx, matchID)
		if err != nil {
			return nil, err
		}
		b, err := bank.New(doc)
		if err != nil {
			return nil, err
		}
		used, err := r.usage.UsedRefs(ctx, matchID)
		if err != nil {
			return nil, err
		}
		b.ApplyUsed(used)

		r.mu.Lock()
		r.entities[matchID] = b
		r.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*bank.Bank), nil
}

func (r *BankRepository) PutBank(ctx context.Context, doc domain.BankDocument) (*bank.Bank, error) {
	b, err := bank.New(doc)
	if err != nil {
		return nil, err
	}
	if err := r.storeDocument(ctx, doc); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.entities[doc.MatchID] = b
	r.mu.Unlock()
	return b, nil
}

func (r *BankRepository) DeleteBank(ctx context.Context, matchID string) error {
	r.mu.Lock()
	delete(r.entities, matchID)
	r.mu.Unlock()
	return r.client.Del(ctx, r.docKey(matchID)).Err()
}

func (r *BankRepository) loadDocument(ctx context.Context, matchID string) (domain.BankDocument, error) {
	raw, err := r.client.Get(ctx, r.docKey(matchID)).Bytes()
	if err == nil && len(raw) > 0 {
		var doc domain.BankDocument
		if err := json.Unmarshal(raw, &doc); err == nil {
			return doc, nil
		}
		// Corrupt cache entry falls through to the loader.
	}

	doc, err := r.loader.LoadBank(ctx, matchID)
	if err != nil {
		return domain.BankDocument{}, err
	}
	// Best-effort cache fill; the loader stays the source of truth.
	_ = r.storeDocument(ctx, doc)
	return doc, nil
}

func (r *BankRepository) storeDocument(ctx context.Context, doc domain.BankDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.docKey(doc.MatchID), data, r.ttlWithJitter()).Err()
}

func (r *BankRepository) docKey(matchID string) string {
	return "bank:" + matchID + ":doc"
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
