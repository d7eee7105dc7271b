package bank_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/giangittb112000/olympia-sub001/internal/bank"
	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

func TestNewRequiresThreePerCategory(t *testing.T) {
	doc := bankDoc(3, 2, 3)
	if _, err := bank.New(doc); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := bank.New(bankDoc(3, 3, 3)); err != nil {
		t.Fatalf("expected valid bank, got %v", err)
	}
}

func TestMarkUsedIsAllOrNothing(t *testing.T) {
	b := mustBank(t, 3, 3, 3)
	doc := b.Document()
	first := doc.Questions10[0].ID
	second := doc.Questions10[1].ID

	if err := b.MarkUsed([]string{first}); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	// Re-marking a consumed question must fail and leave the fresh one alone.
	if err := b.MarkUsed([]string{second, first}); !errors.Is(err, domain.ErrStaleQuestion) {
		t.Fatalf("expected stale error, got %v", err)
	}
	if got := b.UsageStats()[domain.Points10].Used; got != 1 {
		t.Fatalf("expected 1 used after failed batch, got %d", got)
	}
	if err := b.MarkUsed([]string{"no-such-question"}); !errors.Is(err, domain.ErrStaleQuestion) {
		t.Fatalf("expected stale error for unknown ref, got %v", err)
	}
}

func TestResetUsageIsIdempotent(t *testing.T) {
	b := mustBank(t, 3, 3, 3)
	doc := b.Document()
	if err := b.MarkUsed([]string{doc.Questions20[0].ID, doc.Questions30[2].ID}); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	b.ResetUsage()
	b.ResetUsage()
	for _, points := range domain.PointValues {
		if got := b.UsageStats()[points].Used; got != 0 {
			t.Fatalf("expected 0 used for %dpt after reset, got %d", points, got)
		}
	}
}

func TestApplyUsedReconcilesMirror(t *testing.T) {
	b := mustBank(t, 3, 3, 3)
	doc := b.Document()
	b.ApplyUsed([]string{doc.Questions10[0].ID, "stale-ref-from-old-bank"})
	if got := b.UsageStats()[domain.Points10].Used; got != 1 {
		t.Fatalf("expected 1 used, got %d", got)
	}
}

func mustBank(t *testing.T, n10, n20, n30 int) *bank.Bank {
	t.Helper()
	b, err := bank.New(bankDoc(n10, n20, n30))
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}
	return b
}

func bankDoc(n10, n20, n30 int) domain.BankDocument {
	doc := domain.BankDocument{MatchID: "match-1"}
	for i := 0; i < n10; i++ {
		doc.Questions10 = append(doc.Questions10, question(10, i))
	}
	for i := 0; i < n20; i++ {
		doc.Questions20 = append(doc.Questions20, question(20, i))
	}
	for i := 0; i < n30; i++ {
		doc.Questions30 = append(doc.Questions30, question(30, i))
	}
	return doc
}

func question(points, i int) domain.QuestionDoc {
	return domain.QuestionDoc{
		ID:     fmt.Sprintf("q%d-%d", points, i),
		Text:   fmt.Sprintf("question %d of the %dpt bucket", i, points),
		Answer: fmt.Sprintf("answer %d", i),
	}
}
