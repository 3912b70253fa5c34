package results

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := &Record{
		GameID:    "g-1",
		WhiteName: "ana",
		BlackName: "bo",
		Outcome:   "white",
		Reason:    "endzone",
		FinalCode: "final",
		Moves:     2,
		StartedAt: start,
		EndedAt:   start.Add(90 * time.Second),
		States: []StateRow{
			{Seq: 0, Code: "a", At: start},
			{Seq: 1, Code: "b", Selected: "1,1", At: start.Add(time.Minute)},
		},
	}
	if err := repo.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	rec.States[0].Code = "mutated"

	got, err := repo.Get(ctx, "g-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DurationMS != 90_000 {
		t.Fatalf("duration = %d", got.DurationMS)
	}
	if len(got.States) != 2 || got.States[0].Code != "a" {
		t.Fatalf("state log not copied: %+v", got.States)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepositoryRecentOrderAndUpsert(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		r := &Record{GameID: id, Outcome: "draw", StartedAt: base, EndedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.SaveResult(ctx, r); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
	// upsert moves "a" to the front
	if err := repo.SaveResult(ctx, &Record{GameID: "a", Outcome: "black", StartedAt: base, EndedAt: base.Add(5 * time.Hour)}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	list, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(list) != 2 || list[0].GameID != "a" || list[1].GameID != "c" {
		t.Fatalf("unexpected order %+v", list)
	}
	if list[0].Outcome != "black" {
		t.Fatalf("upsert lost: %+v", list[0])
	}
}

func TestNewPostgresRequiresURL(t *testing.T) {
	if _, err := NewPostgres("  "); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}
