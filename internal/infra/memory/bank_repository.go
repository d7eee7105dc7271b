package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giangittb112000/olympia-sub001/internal/bank"
	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// BankLoader fetches bank content from a backing store (e.g., document DB).
type BankLoader interface {
	LoadBank(ctx context.Context, matchID string) (domain.BankDocument, error)
}

// UsageSource lists consumed question refs so a rebuilt bank entity can be
// reconciled with its persisted mirror.
type UsageSource interface {
	UsedRefs(ctx context.Context, matchID string) ([]string, error)
}

// BankRepository caches live bank entities with TTL to avoid repeated loads
// while keeping a single authoritative handle per match. Documents written
// through PutBank shadow the loader.
type BankRepository struct {
	loader BankLoader
	usage  UsageSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cache     map[string]cachedBank
	overrides map[string]domain.BankDocument
	deleted   map[string]bool
}

type cachedBank struct {
	bank      *bank.Bank
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, usage UsageSource, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader:    loader,
		usage:     usage,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:     make(map[string]cachedBank),
		overrides: make(map[string]domain.BankDocument),
		deleted:   make(map[string]bool),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, matchID string) (*bank.Bank, error) {
	now := r.clock()

	r.mu.RLock()
	if r.deleted[matchID] {
		r.mu.RUnlock()
		return nil, domain.ErrBankNotFound
	}
	if entry, ok := r.cache[matchID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.bank, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(matchID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[matchID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.bank, nil
		}
		doc, overridden := r.overrides[matchID]
		r.mu.RUnlock()

		if !overridden {
			var err error
			doc, err = r.loader.LoadBank(ctx, matchID)
			if err != nil {
				return nil, err
			}
		}

		b, err := bank.New(doc)
		if err != nil {
			return nil, err
		}
		if r.usage != nil {
			used, err := r.usage.UsedRefs(ctx, matchID)
			if err != nil {
				return nil, err
			}
			b.ApplyUsed(used)
		}

		r.mu.Lock()
		r.cache[matchID] = cachedBank{bank: b, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*bank.Bank), nil
}

// PutBank validates the document, replaces any previous bank for the match,
// and returns the fresh entity.
func (r *BankRepository) PutBank(_ context.Context, doc domain.BankDocument) (*bank.Bank, error) {
	b, err := bank.New(doc)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.overrides[doc.MatchID] = doc
	delete(r.deleted, doc.MatchID)
	r.cache[doc.MatchID] = cachedBank{bank: b, expiresAt: r.clock().Add(r.ttlWithJitter())}
	r.mu.Unlock()
	return b, nil
}

func (r *BankRepository) DeleteBank(_ context.Context, matchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// The loader may still hold the document; the tombstone hides it.
	delete(r.cache, matchID)
	delete(r.overrides, matchID)
	r.deleted[matchID] = true
	return nil
}

// StaticBankLoader serves bank documents from an in-memory map (tests/demos).
type StaticBankLoader struct {
	banks map[string]domain.BankDocument
}

func NewStaticBankLoader(banks map[string]domain.BankDocument) *StaticBankLoader {
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, matchID string) (domain.BankDocument, error) {
	if doc, ok := l.banks[matchID]; ok {
		return doc, nil
	}
	return domain.BankDocument{}, domain.ErrBankNotFound
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
