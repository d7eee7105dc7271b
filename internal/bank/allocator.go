package bank

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// compositions maps a pack size to its required point values, in deal order.
var compositions = map[int][]int{
	domain.PackSize40: {10, 10, 20},
	domain.PackSize60: {10, 20, 30},
	domain.PackSize80: {20, 30, 30},
}

// Rand is the randomness seam for the allocator; tests inject a seeded source.
type Rand interface {
	Intn(n int) int
}

// Allocator draws composition-valid packs from a bank.
type Allocator struct {
	rnd Rand
}

// NewAllocator builds an allocator. A nil rnd falls back to a time-seeded
// source.
func NewAllocator(rnd Rand) *Allocator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Allocator{rnd: rnd}
}

// Allocate selects the questions required for size, marks them used, and
// returns a pack of ephemeral snapshots. The whole draw is all-or-nothing
// under the bank's lock: on any failure no question is consumed.
func (a *Allocator) Allocate(b *Bank, size int) (domain.Pack, error) {
	required, ok := compositions[size]
	if !ok {
		return domain.Pack{}, domain.Validationf("invalid pack size %d", size)
	}

	need := make(map[int]int)
	for _, points := range required {
		need[points]++
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Check every category before touching anything.
	unused := make(map[int][]*Question, len(need))
	for _, points := range domain.PointValues {
		count, wanted := need[points]
		if !wanted {
			continue
		}
		var free []*Question
		for _, q := range b.buckets[points] {
			if !q.Used {
				free = append(free, q)
			}
		}
		if len(free) < count {
			return domain.Pack{}, &domain.InsufficientQuestionsError{
				Points:    points,
				Needed:    count,
				Available: len(free),
			}
		}
		unused[points] = free
	}

	// Partial Fisher–Yates per category: the first need[points] slots end up
	// uniformly drawn without replacement.
	picked := make(map[int][]*Question, len(need))
	for points, free := range unused {
		count := need[points]
		for i := 0; i < count; i++ {
			j := i + a.rnd.Intn(len(free)-i)
			free[i], free[j] = free[j], free[i]
		}
		picked[points] = free[:count]
	}

	pack := domain.Pack{
		ID:        uuid.New().String(),
		Size:      size,
		Questions: make([]domain.PackQuestion, 0, len(required)),
	}
	cursor := make(map[int]int)
	for _, points := range required {
		q := picked[points][cursor[points]]
		cursor[points]++
		q.Used = true
		pack.Questions = append(pack.Questions, domain.PackQuestion{
			ID:          uuid.New().String(),
			Text:        q.Text,
			Description: q.Description,
			MediaRef:    q.MediaRef,
			Points:      q.Points,
			Answer:      q.Answer,
			BankRef:     q.ID,
		})
	}
	return pack, nil
}
