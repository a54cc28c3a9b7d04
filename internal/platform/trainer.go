package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chartevo/internal/evo"
	"chartevo/internal/logging"
	"chartevo/internal/model"
	"chartevo/internal/nn"
	"chartevo/internal/pool"
	"chartevo/internal/scape"
	"chartevo/internal/storage"
)

const (
	SeedPerGeneration = "per_generation"
	SeedPerIndividual = "per_individual"
)

var ErrAlreadyStarted = errors.New("trainer already started")

// Recorder receives per-generation measurements.
type Recorder interface {
	RecordGeneration(stats model.GenerationStats, evaluations int, elapsed time.Duration)
	RecordError(kind string)
}

type TrainerConfig struct {
	RunID          string
	Scape          scape.Scape
	Format         nn.Format
	Response       float64
	PopulationSize int
	Workers        int
	// Seed drives every random draw of the run. Zero picks a time-based seed.
	Seed           int64
	MaxGenerations int
	SeriesSeeding  string
	Selector       evo.Selector
	Mutation       evo.Operator
	CrossoverRate  float64
	EliteCount     int
	Postprocessor  evo.FitnessPostprocessor

	Store        storage.Store
	Recorder     Recorder
	Logger       *logging.Logger
	OnGeneration func(model.GenerationStats)
}

// Trainer evolves a population on one background goroutine and publishes
// each generation's stats to its feed.
type Trainer struct {
	cfg        TrainerConfig
	rng        *rand.Rand
	log        *logging.Logger
	feed       *Feed
	population *evo.Population
	generation atomic.Int64

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("network format: %w", err)
	}
	if checker, ok := cfg.Scape.(interface{ CheckFormat(nn.Format) error }); ok {
		if err := checker.CheckFormat(cfg.Format); err != nil {
			return nil, err
		}
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [0, population size]")
	}
	if cfg.MaxGenerations < 0 {
		return nil, fmt.Errorf("max generations must be >= 0")
	}
	if cfg.Response == 0 {
		cfg.Response = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	switch cfg.SeriesSeeding {
	case "":
		cfg.SeriesSeeding = SeedPerGeneration
	case SeedPerGeneration, SeedPerIndividual:
	default:
		return nil, fmt.Errorf("unsupported series seeding: %s", cfg.SeriesSeeding)
	}
	if cfg.Selector == nil {
		cfg.Selector = evo.RouletteSelector{}
	}
	if cfg.Mutation == nil {
		cfg.Mutation = evo.GaussianMutation{Rate: evo.DefaultMutationRate, StdDev: evo.DefaultMutationStdDev}
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = evo.NoopFitnessPostprocessor{}
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	population, err := evo.NewPopulation(cfg.PopulationSize, cfg.Format, cfg.Response, rng)
	if err != nil {
		return nil, err
	}

	return &Trainer{
		cfg:        cfg,
		rng:        rng,
		log:        cfg.Logger.With(logging.String("run_id", cfg.RunID)),
		feed:       NewFeed(),
		population: population,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

func (t *Trainer) RunID() string { return t.cfg.RunID }
func (t *Trainer) Seed() int64   { return t.cfg.Seed }
func (t *Trainer) Feed() *Feed   { return t.feed }

// Generation is the number of generations finished so far.
func (t *Trainer) Generation() int {
	return int(t.generation.Load())
}

// Record describes the run for persistence.
func (t *Trainer) Record() model.RunRecord {
	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              t.cfg.RunID,
		PopulationSize:  t.cfg.PopulationSize,
		Workers:         t.cfg.Workers,
		Seed:            t.cfg.Seed,
		Format:          t.cfg.Format.String(),
		Selection:       t.cfg.Selector.Name(),
		Postprocessor:   t.cfg.Postprocessor.Name(),
	}
	if named, ok := t.cfg.Scape.(interface{ Encodings() (string, string) }); ok {
		record.InputEncoding, record.ActionEncoding = named.Encodings()
	}
	return record
}

// Start launches the training loop. Cancelling ctx stops the loop after the
// generation in progress, like Stop.
func (t *Trainer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	record := t.Record()
	record.StartedAt = time.Now().UTC()
	if t.cfg.Store != nil {
		if err := t.cfg.Store.SaveRun(ctx, record); err != nil {
			t.recordError("store", "save run failed", err)
		}
	}
	t.log.Info("trainer started",
		logging.Int64("seed", t.cfg.Seed),
		logging.Int("population", t.cfg.PopulationSize),
		logging.Int("workers", t.cfg.Workers),
		logging.String("format", record.Format),
		logging.String("selection", record.Selection),
	)

	go t.loop(ctx)
	return nil
}

// Stop asks the loop to exit after the generation in progress and waits for
// it. It is safe to call more than once and before Start.
func (t *Trainer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })

	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if started {
		<-t.done
	}
}

// Done is closed once the loop has exited.
func (t *Trainer) Done() <-chan struct{} {
	return t.done
}

// Err reports the error that ended the loop, if any.
func (t *Trainer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// DrainStats returns the stats published since the last call.
func (t *Trainer) DrainStats() []model.GenerationStats {
	return t.feed.Drain()
}

func (t *Trainer) loop(ctx context.Context) {
	defer close(t.done)

	workers := pool.New(t.cfg.Workers)
	defer workers.Close()

	// a running generation always completes, only the loop observes ctx
	evalCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-t.stop:
			t.log.Info("trainer stopped", logging.Int("generations", t.Generation()))
			return
		case <-ctx.Done():
			t.log.Info("trainer cancelled", logging.Int("generations", t.Generation()))
			return
		default:
		}
		if t.cfg.MaxGenerations > 0 && t.Generation() >= t.cfg.MaxGenerations {
			t.log.Info("trainer reached max generations", logging.Int("generations", t.Generation()))
			return
		}

		if err := t.step(evalCtx, workers); err != nil {
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			t.log.Error("trainer failed", logging.Error(err))
			return
		}
	}
}

func (t *Trainer) step(ctx context.Context, workers *pool.Pool) error {
	start := time.Now()
	current := t.population

	err := current.Evaluate(ctx, evo.EvalConfig{
		Pool:          workers,
		Scape:         t.cfg.Scape,
		Postprocessor: t.cfg.Postprocessor,
		Seed:          t.episodeSeeds(current.Size()),
	})
	if err != nil {
		return err
	}
	stats := current.Stats()

	next, err := current.Breed(t.rng, evo.BreedConfig{
		Selector:      t.cfg.Selector,
		Mutation:      t.cfg.Mutation,
		CrossoverRate: t.cfg.CrossoverRate,
		EliteCount:    t.cfg.EliteCount,
	})
	if err != nil {
		return err
	}
	t.population = next
	t.generation.Add(1)

	t.publish(ctx, stats, current.Size(), time.Since(start))
	return nil
}

func (t *Trainer) episodeSeeds(size int) func(int) int64 {
	if t.cfg.SeriesSeeding == SeedPerIndividual {
		seeds := make([]int64, size)
		for i := range seeds {
			seeds[i] = t.rng.Int63()
		}
		return func(i int) int64 { return seeds[i] }
	}
	seed := t.rng.Int63()
	return func(int) int64 { return seed }
}

func (t *Trainer) publish(ctx context.Context, stats model.GenerationStats, evaluations int, elapsed time.Duration) {
	t.feed.Publish(stats)

	if t.cfg.Store != nil {
		if err := t.cfg.Store.AppendGeneration(ctx, t.cfg.RunID, stats); err != nil {
			t.recordError("store", "append generation failed", err)
		}
	}
	if t.cfg.Recorder != nil {
		t.cfg.Recorder.RecordGeneration(stats, evaluations, elapsed)
	}
	if t.cfg.OnGeneration != nil {
		t.cfg.OnGeneration(stats)
	}

	t.log.Debug("generation evaluated",
		logging.Int("generation", stats.Generation),
		logging.Float64("min_fitness", stats.MinFitness),
		logging.Float64("avg_fitness", stats.AvgFitness),
		logging.Float64("max_fitness", stats.MaxFitness),
		logging.Int("trades", stats.Trades),
		logging.Duration("elapsed", elapsed),
	)
}

func (t *Trainer) recordError(kind, msg string, err error) {
	t.log.Warn(msg, logging.String("kind", kind), logging.Error(err))
	if t.cfg.Recorder != nil {
		t.cfg.Recorder.RecordError(kind)
	}
}
