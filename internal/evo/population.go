package evo

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"chartevo/internal/model"
	"chartevo/internal/nn"
	"chartevo/internal/pool"
	"chartevo/internal/scape"
)

// EvalConfig wires one generation's evaluation.
type EvalConfig struct {
	Pool          *pool.Pool
	Scape         scape.Scape
	Postprocessor FitnessPostprocessor
	// Seed returns the episode seed for the individual at index.
	Seed func(index int) int64
}

type BreedConfig struct {
	Selector      Selector
	Mutation      Operator
	CrossoverRate float64
	EliteCount    int
}

// Population is one generation of same-format individuals. Its size never
// changes across Breed.
type Population struct {
	generation  int
	format      nn.Format
	response    float64
	individuals []*Individual
	stats       model.GenerationStats
	evaluated   bool
}

func NewPopulation(size int, format nn.Format, response float64, rng *rand.Rand) (*Population, error) {
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("population format: %w", err)
	}
	if response <= 0 {
		return nil, fmt.Errorf("activation response must be > 0")
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}

	individuals := make([]*Individual, size)
	for i := range individuals {
		individuals[i] = NewIndividual(individualID(0, i), nn.NewRandomNetwork(format, response, rng))
	}
	return &Population{
		format:      format,
		response:    response,
		individuals: individuals,
		stats:       model.GenerationStats{Generation: 0},
	}, nil
}

func (p *Population) Generation() int              { return p.generation }
func (p *Population) Size() int                    { return len(p.individuals) }
func (p *Population) Format() nn.Format            { return p.format }
func (p *Population) Individual(i int) *Individual { return p.individuals[i] }
func (p *Population) Evaluated() bool              { return p.evaluated }

// Stats is zero valued until Evaluate succeeds.
func (p *Population) Stats() model.GenerationStats {
	return p.stats
}

// Best returns the fittest individual, first one on ties.
func (p *Population) Best() *Individual {
	best := p.individuals[0]
	for _, ind := range p.individuals[1:] {
		if ind.fitness > best.fitness {
			best = ind
		}
	}
	return best
}

type evalResult struct {
	fitness float64
	trace   scape.Trace
	err     error
}

// Evaluate runs one episode per individual on the pool and blocks until all
// of them finish. Each task writes only its own result slot.
func (p *Population) Evaluate(ctx context.Context, cfg EvalConfig) error {
	if cfg.Pool == nil {
		return fmt.Errorf("evaluation pool is required")
	}
	if cfg.Scape == nil {
		return fmt.Errorf("scape is required")
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = NoopFitnessPostprocessor{}
	}
	seed := cfg.Seed
	if seed == nil {
		seed = func(int) int64 { return int64(p.generation) }
	}

	results := make([]evalResult, len(p.individuals))
	for i, ind := range p.individuals {
		i, ind, episodeSeed := i, ind, seed(i)
		if err := cfg.Pool.Post(func() {
			fitness, trace, err := cfg.Scape.Evaluate(ctx, ind, episodeSeed)
			results[i] = evalResult{fitness: float64(fitness), trace: trace, err: err}
		}); err != nil {
			_ = cfg.Pool.Complete()
			return fmt.Errorf("post evaluation of %s: %w", ind.id, err)
		}
	}
	if err := cfg.Pool.Complete(); err != nil {
		return fmt.Errorf("evaluate generation %d: %w", p.generation, err)
	}

	raw := make([]float64, len(results))
	for i, res := range results {
		if res.err != nil {
			return fmt.Errorf("evaluate %s: %w", p.individuals[i].id, res.err)
		}
		raw[i] = res.fitness
	}
	processed := cfg.Postprocessor.Process(raw)
	if len(processed) != len(raw) {
		return fmt.Errorf("fitness postprocessor %s returned %d values for %d individuals", cfg.Postprocessor.Name(), len(processed), len(raw))
	}

	for i, ind := range p.individuals {
		ind.fitness = processed[i]
		ind.trace = results[i].trace
	}
	p.stats = summarize(p.generation, p.individuals)
	p.evaluated = true
	return nil
}

// Breed builds the next generation from an evaluated one. Parents are never
// modified: children start from cloned weights.
func (p *Population) Breed(rng *rand.Rand, cfg BreedConfig) (*Population, error) {
	if !p.evaluated {
		return nil, fmt.Errorf("generation %d has not been evaluated", p.generation)
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if cfg.Selector == nil {
		cfg.Selector = RouletteSelector{}
	}
	if cfg.Mutation == nil {
		cfg.Mutation = NoMutation{}
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > len(p.individuals) {
		return nil, fmt.Errorf("elite count must be in [0, %d], got %d", len(p.individuals), cfg.EliteCount)
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return nil, fmt.Errorf("crossover rate must be in [0, 1], got %v", cfg.CrossoverRate)
	}

	fitness := make([]float64, len(p.individuals))
	for i, ind := range p.individuals {
		fitness[i] = ind.fitness
	}

	next := p.generation + 1
	children := make([]*Individual, 0, len(p.individuals))
	for _, idx := range rankByFitness(fitness)[:cfg.EliteCount] {
		// networks are immutable, so elites share theirs
		children = append(children, NewIndividual(individualID(next, len(children)), p.individuals[idx].network))
	}
	for len(children) < len(p.individuals) {
		a, err := cfg.Selector.Pick(rng, fitness)
		if err != nil {
			return nil, fmt.Errorf("select parent: %w", err)
		}
		weights := p.individuals[a].network.Weights()

		if cfg.CrossoverRate > 0 && rng.Float64() < cfg.CrossoverRate {
			b, err := cfg.Selector.Pick(rng, fitness)
			if err != nil {
				return nil, fmt.Errorf("select second parent: %w", err)
			}
			Crossover(rng, weights, p.individuals[b].network.Weights(), fitness[a], fitness[b])
		}
		cfg.Mutation.Apply(rng, weights)

		network := nn.NewNetwork(p.format, weights, p.response)
		children = append(children, NewIndividual(individualID(next, len(children)), network))
	}

	return &Population{
		generation:  next,
		format:      p.format,
		response:    p.response,
		individuals: children,
		stats:       model.GenerationStats{Generation: next},
	}, nil
}

func summarize(generation int, individuals []*Individual) model.GenerationStats {
	stats := model.GenerationStats{
		Generation: generation,
		MinFitness: math.Inf(1),
		MaxFitness: math.Inf(-1),
	}
	total := 0.0
	for _, ind := range individuals {
		total += ind.fitness
		stats.MinFitness = math.Min(stats.MinFitness, ind.fitness)
		stats.MaxFitness = math.Max(stats.MaxFitness, ind.fitness)
		if closed, ok := ind.trace["closed"].(int); ok {
			stats.Trades += closed
		}
	}
	stats.AvgFitness = total / float64(len(individuals))
	return stats
}

func individualID(generation, index int) string {
	return fmt.Sprintf("g%d-%d", generation, index)
}
