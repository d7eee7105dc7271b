package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

func TestUsageStoreMarkAndReset(t *testing.T) {
	mr, client := newTestRedis(t)
	defer mr.Close()
	ctx := context.Background()

	store := NewUsageStore(client, time.Minute)
	if err := store.MarkUsed(ctx, "match-1", []string{"q1", "q2"}); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	refs, err := store.UsedRefs(ctx, "match-1")
	if err != nil {
		t.Fatalf("used refs: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %v", refs)
	}

	if err := store.Reset(ctx, "match-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	refs, _ = store.UsedRefs(ctx, "match-1")
	if len(refs) != 0 {
		t.Fatalf("expected empty after reset, got %v", refs)
	}
}

func TestUsageStoreRejectsDoubleSpend(t *testing.T) {
	mr, client := newTestRedis(t)
	defer mr.Close()
	ctx := context.Background()

	store := NewUsageStore(client, 0)
	if err := store.MarkUsed(ctx, "match-1", []string{"q1"}); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	err := store.MarkUsed(ctx, "match-1", []string{"q2", "q1"})
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}
	members, _ := mr.Members("bank:match-1:used")
	for _, m := range members {
		if m == "q2" {
			t.Fatalf("failed batch must not partially apply")
		}
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
