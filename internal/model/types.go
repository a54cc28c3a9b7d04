package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// GenerationStats is the per-generation fitness summary published to
// consumers.
type GenerationStats struct {
	Generation int     `json:"generation"`
	MinFitness float64 `json:"min_fitness"`
	AvgFitness float64 `json:"avg_fitness"`
	MaxFitness float64 `json:"max_fitness"`
	Trades     int     `json:"trades"`
}

// RunRecord describes one trainer run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	PopulationSize int       `json:"population_size"`
	Workers        int       `json:"workers"`
	Seed           int64     `json:"seed"`
	Format         string    `json:"format"`
	InputEncoding  string    `json:"input_encoding"`
	ActionEncoding string    `json:"action_encoding"`
	Selection      string    `json:"selection"`
	Postprocessor  string    `json:"fitness_postprocessor"`
}
