package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

func TestBankRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		BankLoader: NewStaticBankLoader(map[string]domain.BankDocument{
			"match-1": sampleBank(),
		}),
	}
	repo := NewBankRepository(loader, NewUsageStore(), time.Minute)

	first, err := repo.GetBank(context.Background(), "match-1")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	second, err := repo.GetBank(context.Background(), "match-1")
	if err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if first != second {
		t.Fatalf("expected the same authoritative bank entity")
	}
}

func TestBankRepositoryReconcilesUsage(t *testing.T) {
	ctx := context.Background()
	usage := NewUsageStore()
	doc := sampleBank()
	if err := usage.MarkUsed(ctx, "match-1", []string{doc.Questions10[0].ID}); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	repo := NewBankRepository(NewStaticBankLoader(map[string]domain.BankDocument{"match-1": doc}), usage, time.Minute)
	b, err := repo.GetBank(ctx, "match-1")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if got := b.UsageStats()[domain.Points10].Used; got != 1 {
		t.Fatalf("expected mirror usage applied, got %d used", got)
	}
}

func TestPutAndDeleteBank(t *testing.T) {
	ctx := context.Background()
	repo := NewBankRepository(NewStaticBankLoader(nil), NewUsageStore(), time.Minute)

	if _, err := repo.GetBank(ctx, "match-9"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected bank not found, got %v", err)
	}

	doc := sampleBank()
	doc.MatchID = "match-9"
	if _, err := repo.PutBank(ctx, doc); err != nil {
		t.Fatalf("put bank: %v", err)
	}
	if _, err := repo.GetBank(ctx, "match-9"); err != nil {
		t.Fatalf("get configured bank: %v", err)
	}

	if err := repo.DeleteBank(ctx, "match-9"); err != nil {
		t.Fatalf("delete bank: %v", err)
	}
	if _, err := repo.GetBank(ctx, "match-9"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected bank gone, got %v", err)
	}
}

func TestUsageStoreDetectsDoubleSpend(t *testing.T) {
	ctx := context.Background()
	store := NewUsageStore()

	if err := store.MarkUsed(ctx, "match-1", []string{"a", "b"}); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if err := store.MarkUsed(ctx, "match-1", []string{"c", "b"}); !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}
	refs, err := store.UsedRefs(ctx, "match-1")
	if err != nil {
		t.Fatalf("used refs: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("failed batch must not partially apply, got %v", refs)
	}

	if err := store.Reset(ctx, "match-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := store.MarkUsed(ctx, "match-1", []string{"b"}); err != nil {
		t.Fatalf("mark after reset: %v", err)
	}
}

type countingLoader struct {
	BankLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, matchID string) (domain.BankDocument, error) {
	l.calls++
	return l.BankLoader.LoadBank(ctx, matchID)
}

func sampleBank() domain.BankDocument {
	doc := domain.BankDocument{MatchID: "match-1"}
	for i := 0; i < 3; i++ {
		doc.Questions10 = append(doc.Questions10, domain.QuestionDoc{
			ID: fmt.Sprintf("q10-%d", i), Text: "capital of Vietnam?", Answer: "Hà Nội",
		})
		doc.Questions20 = append(doc.Questions20, domain.QuestionDoc{
			ID: fmt.Sprintf("q20-%d", i), Text: "largest city?", Answer: "Hồ Chí Minh",
		})
		doc.Questions30 = append(doc.Questions30, domain.QuestionDoc{
			ID: fmt.Sprintf("q30-%d", i), Text: "longest river?", Answer: "Mê Kông",
		})
	}
	return doc
}
