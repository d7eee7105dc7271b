package bank_test

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/giangittb112000/olympia-sub001/internal/bank"
	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

func TestAllocateComposition(t *testing.T) {
	compositions := map[int][]int{
		domain.PackSize40: {10, 10, 20},
		domain.PackSize60: {10, 20, 30},
		domain.PackSize80: {20, 30, 30},
	}
	for size, want := range compositions {
		b := mustBank(t, 5, 5, 5)
		alloc := bank.NewAllocator(rand.New(rand.NewSource(7)))

		pack, err := alloc.Allocate(b, size)
		if err != nil {
			t.Fatalf("allocate %d: %v", size, err)
		}
		if pack.Size != size || pack.ID == "" {
			t.Fatalf("bad pack header: %+v", pack)
		}

		var points []int
		sum := 0
		for _, q := range pack.Questions {
			points = append(points, q.Points)
			sum += q.Points
			if q.ID == "" || q.ID == q.BankRef {
				t.Fatalf("pack must carry fresh display ids, got %q (bank %q)", q.ID, q.BankRef)
			}
		}
		sort.Ints(points)
		if sum != size {
			t.Fatalf("pack %d sums to %d", size, sum)
		}
		for i, p := range want {
			if points[i] != p {
				t.Fatalf("pack %d composition %v, want %v", size, points, want)
			}
		}
	}
}

func TestAllocateNeverReusesBeforeReset(t *testing.T) {
	b := mustBank(t, 6, 6, 6)
	alloc := bank.NewAllocator(rand.New(rand.NewSource(42)))

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		pack, err := alloc.Allocate(b, domain.PackSize60)
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		for _, q := range pack.Questions {
			if seen[q.BankRef] {
				t.Fatalf("question %s dealt twice before reset", q.BankRef)
			}
			seen[q.BankRef] = true
		}
	}

	b.ResetUsage()
	if _, err := alloc.Allocate(b, domain.PackSize60); err != nil {
		t.Fatalf("allocate after reset: %v", err)
	}
}

func TestAllocateFailureLeavesBankUntouched(t *testing.T) {
	// 3 questions per bucket: a 40-pack needs two 10pt, so after one 40-pack
	// and one 60-pack only zero 10pt remain.
	b := mustBank(t, 3, 3, 3)
	alloc := bank.NewAllocator(rand.New(rand.NewSource(1)))

	if _, err := alloc.Allocate(b, domain.PackSize40); err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	if _, err := alloc.Allocate(b, domain.PackSize60); err != nil {
		t.Fatalf("second allocate: %v", err)
	}

	before := b.UsageStats()
	_, err := alloc.Allocate(b, domain.PackSize40)
	var insufficient *domain.InsufficientQuestionsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient questions, got %v", err)
	}
	if insufficient.Points != domain.Points10 {
		t.Fatalf("expected the 10pt category to be short, got %dpt", insufficient.Points)
	}
	after := b.UsageStats()
	for _, points := range domain.PointValues {
		if after[points] != before[points] {
			t.Fatalf("failed allocation mutated %dpt stats: %+v -> %+v", points, before[points], after[points])
		}
	}
}

func TestAllocateRejectsUnknownSize(t *testing.T) {
	b := mustBank(t, 3, 3, 3)
	alloc := bank.NewAllocator(rand.New(rand.NewSource(1)))
	if _, err := alloc.Allocate(b, 50); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAllocate60EndToEnd(t *testing.T) {
	b := mustBank(t, 3, 3, 3)
	alloc := bank.NewAllocator(rand.New(rand.NewSource(3)))

	for turn := 1; turn <= 3; turn++ {
		if _, err := alloc.Allocate(b, domain.PackSize60); err != nil {
			t.Fatalf("allocate turn %d: %v", turn, err)
		}
		for _, points := range domain.PointValues {
			if got := b.UsageStats()[points].Used; got != turn {
				t.Fatalf("turn %d: expected %d used %dpt, got %d", turn, turn, points, got)
			}
		}
	}

	// Every bucket is drained; the next draw must name a short category.
	var insufficient *domain.InsufficientQuestionsError
	if _, err := alloc.Allocate(b, domain.PackSize60); !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient questions, got %v", err)
	}
	if insufficient.Available != 0 || insufficient.Needed != 1 {
		t.Fatalf("unexpected shortfall: %+v", insufficient)
	}
}
