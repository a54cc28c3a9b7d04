package storage

import (
	"context"
	"errors"

	"chartevo/internal/model"
)

var ErrRunNotFound = errors.New("run not found")

// Store persists trainer runs and their per-generation stats.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs oldest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	// AppendGeneration stores stats for a saved run. Writing a generation
	// that is already stored replaces it.
	AppendGeneration(ctx context.Context, runID string, stats model.GenerationStats) error
	// GetGenerations returns stats ordered by generation.
	GetGenerations(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
}
