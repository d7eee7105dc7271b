package redis

import (
	"context"
	"testing"
	"time"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

func TestScoreStoreRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	defer mr.Close()
	ctx := context.Background()

	store := NewScoreStore(client, time.Minute)
	rec := domain.ScoreRecord{
		PlayerID:    "an",
		DisplayName: "An",
		Rounds:      domain.RoundScores{Warmup: 10, Finish: 40},
		Total:       50,
	}
	if err := store.Save(ctx, "match-1", rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	records, err := store.Load(ctx, "match-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Total != 50 || records[0].Rounds.Finish != 40 {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}
