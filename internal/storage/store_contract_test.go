package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"chartevo/internal/model"
)

func testRun(id string, startedAt time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		StartedAt:       startedAt,
		PopulationSize:  100,
		Workers:         4,
		Seed:            42,
		Format:          "3-2x5-4",
		InputEncoding:   "entrances",
		ActionEncoding:  "per_side",
		Selection:       "roulette",
		Postprocessor:   "none",
	}
}

// exerciseStore checks the behavior every backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	later := testRun("run-b", base.Add(time.Minute))
	earlier := testRun("run-a", base)
	for _, run := range []model.RunRecord{later, earlier} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if loaded.Seed != 42 || loaded.Format != "3-2x5-4" || !loaded.StartedAt.Equal(later.StartedAt) {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Fatalf("expected runs oldest first, got %+v", runs)
	}

	for _, gen := range []int{1, 0, 2} {
		stats := model.GenerationStats{Generation: gen, MinFitness: -1, AvgFitness: float64(gen), MaxFitness: 10, Trades: gen * 3}
		if err := store.AppendGeneration(ctx, "run-a", stats); err != nil {
			t.Fatalf("append generation %d: %v", gen, err)
		}
	}
	if err := store.AppendGeneration(ctx, "run-a", model.GenerationStats{Generation: 1, MaxFitness: 99}); err != nil {
		t.Fatalf("overwrite generation: %v", err)
	}

	history, ok, err := store.GetGenerations(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get generations: ok=%t err=%v", ok, err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 generations, got %+v", history)
	}
	for i, stats := range history {
		if stats.Generation != i {
			t.Fatalf("expected generations in order, got %+v", history)
		}
	}
	if history[1].MaxFitness != 99 || history[2].Trades != 6 {
		t.Fatalf("unexpected stored stats %+v", history)
	}

	empty, ok, err := store.GetGenerations(ctx, "run-b")
	if err != nil || !ok || len(empty) != 0 {
		t.Fatalf("expected known run without generations, got %v ok=%t err=%v", empty, ok, err)
	}
	if _, ok, err := store.GetGenerations(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected unknown run, ok=%t err=%v", ok, err)
	}

	err = store.AppendGeneration(ctx, "missing", model.GenerationStats{})
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}

	stale := testRun("stale", base)
	stale.SchemaVersion = 0
	if err := store.SaveRun(ctx, stale); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	if err := store.SaveRun(ctx, testRun("", base)); err == nil {
		t.Fatal("expected error for empty run id")
	}
}
