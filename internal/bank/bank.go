// Package bank implements the consumable finish-line question bank and the
// constrained pack allocator that draws from it.
package bank

import (
	"sync"

	"github.com/google/uuid"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// MinQuestionsPerCategory is enforced when a bank is configured, not
// thereafter; allocation drains buckets below it.
const MinQuestionsPerCategory = 3

// Question is the bank-internal record. Only Used ever changes.
type Question struct {
	ID          string
	Text        string
	Description string
	MediaRef    string
	Answer      string
	Points      int
	Used        bool
}

// Bank is the authoritative in-process question pool for one match.
// All access goes through its mutex; the persistence layer is a
// write-through mirror maintained by the caller.
type Bank struct {
	matchID string

	mu      sync.Mutex
	buckets map[int][]*Question
}

// New validates and builds a bank from its persisted document. Each point
// category must carry at least MinQuestionsPerCategory questions. Questions
// without IDs get generated ones.
func New(doc domain.BankDocument) (*Bank, error) {
	byPoints := map[int][]domain.QuestionDoc{
		domain.Points10: doc.Questions10,
		domain.Points20: doc.Questions20,
		domain.Points30: doc.Questions30,
	}

	buckets := make(map[int][]*Question, len(byPoints))
	for _, points := range domain.PointValues {
		docs := byPoints[points]
		if len(docs) < MinQuestionsPerCategory {
			return nil, domain.Validationf("category %dpt has %d questions, need at least %d",
				points, len(docs), MinQuestionsPerCategory)
		}
		bucket := make([]*Question, 0, len(docs))
		for _, qd := range docs {
			id := qd.ID
			if id == "" {
				id = uuid.New().String()
			}
			bucket = append(bucket, &Question{
				ID:          id,
				Text:        qd.Text,
				Description: qd.Description,
				MediaRef:    qd.MediaRef,
				Answer:      qd.Answer,
				Points:      points,
			})
		}
		buckets[points] = bucket
	}

	return &Bank{matchID: doc.MatchID, buckets: buckets}, nil
}

// MatchID returns the owning match.
func (b *Bank) MatchID() string {
	return b.matchID
}

// MarkUsed flips the used flag for exactly the given question IDs. If any
// reference is unknown or already consumed, nothing is flipped and
// ErrStaleQuestion is returned.
func (b *Bank) MarkUsed(refs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	selected := make([]*Question, 0, len(refs))
	for _, ref := range refs {
		q := b.findLocked(ref)
		if q == nil || q.Used {
			return domain.ErrStaleQuestion
		}
		selected = append(selected, q)
	}
	for _, q := range selected {
		q.Used = true
	}
	return nil
}

// ApplyUsed reconciles usage flags from a persisted mirror on load.
// Unknown references are ignored; the mirror may outlive question edits.
func (b *Bank) ApplyUsed(refs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ref := range refs {
		if q := b.findLocked(ref); q != nil {
			q.Used = true
		}
	}
}

// Release clears the used flag for the given references. It exists so a
// failed write-through can undo an in-memory draw; unknown refs are ignored.
func (b *Bank) Release(refs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ref := range refs {
		if q := b.findLocked(ref); q != nil {
			q.Used = false
		}
	}
}

// ResetUsage clears every used flag. Idempotent.
func (b *Bank) ResetUsage() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bucket := range b.buckets {
		for _, q := range bucket {
			q.Used = false
		}
	}
}

// UsageStats reports total and consumed counts per point category.
func (b *Bank) UsageStats() map[int]domain.CategoryStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := make(map[int]domain.CategoryStats, len(b.buckets))
	for points, bucket := range b.buckets {
		s := domain.CategoryStats{Total: len(bucket)}
		for _, q := range bucket {
			if q.Used {
				s.Used++
			}
		}
		stats[points] = s
	}
	return stats
}

// Document projects the bank back into its persisted shape.
func (b *Bank) Document() domain.BankDocument {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc := domain.BankDocument{MatchID: b.matchID}
	for _, points := range domain.PointValues {
		docs := make([]domain.QuestionDoc, 0, len(b.buckets[points]))
		for _, q := range b.buckets[points] {
			docs = append(docs, domain.QuestionDoc{
				ID:          q.ID,
				Text:        q.Text,
				Description: q.Description,
				MediaRef:    q.MediaRef,
				Answer:      q.Answer,
			})
		}
		switch points {
		case domain.Points10:
			doc.Questions10 = docs
		case domain.Points20:
			doc.Questions20 = docs
		case domain.Points30:
			doc.Questions30 = docs
		}
	}
	return doc
}

func (b *Bank) findLocked(ref string) *Question {
	for _, bucket := range b.buckets {
		for _, q := range bucket {
			if q.ID == ref {
				return q
			}
		}
	}
	return nil
}
