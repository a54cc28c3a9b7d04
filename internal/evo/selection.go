package evo

import (
	"fmt"
	"math/rand"
	"sort"
)

// Selector chooses one parent index from post-processed fitness values.
type Selector interface {
	Name() string
	Pick(rng *rand.Rand, fitness []float64) (int, error)
}

// RouletteSelector picks with probability proportional to fitness. Negative
// fitness carries no weight. When no individual has positive weight the last
// one is chosen.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (RouletteSelector) Pick(rng *rand.Rand, fitness []float64) (int, error) {
	if err := checkPick(rng, fitness); err != nil {
		return 0, err
	}

	total := 0.0
	for _, f := range fitness {
		total += rouletteWeight(f)
	}
	last := len(fitness) - 1
	if total <= 0 {
		return last, nil
	}

	draw := rng.Float64() * total
	cum := 0.0
	lastPositive := last
	for i, f := range fitness {
		w := rouletteWeight(f)
		if w <= 0 {
			continue
		}
		lastPositive = i
		cum += w
		if cum >= draw {
			return i, nil
		}
	}
	// float rounding can leave cum a hair below draw
	return lastPositive, nil
}

// TournamentSelector samples Size individuals uniformly and keeps the fittest.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Pick(rng *rand.Rand, fitness []float64) (int, error) {
	if err := checkPick(rng, fitness); err != nil {
		return 0, err
	}
	size := s.Size
	if size <= 0 {
		size = 3
	}

	best := rng.Intn(len(fitness))
	for i := 1; i < size; i++ {
		candidate := rng.Intn(len(fitness))
		if fitness[candidate] > fitness[best] {
			best = candidate
		}
	}
	return best, nil
}

// EliteSelector picks uniformly among the Count fittest individuals.
type EliteSelector struct {
	Count int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) Pick(rng *rand.Rand, fitness []float64) (int, error) {
	if err := checkPick(rng, fitness); err != nil {
		return 0, err
	}
	count := s.Count
	if count <= 0 {
		count = max(1, len(fitness)/5)
	}
	if count > len(fitness) {
		return 0, fmt.Errorf("invalid elite count: %d", count)
	}
	return rankByFitness(fitness)[rng.Intn(count)], nil
}

// rankByFitness returns indices sorted by descending fitness. Ties keep
// population order.
func rankByFitness(fitness []float64) []int {
	order := make([]int, len(fitness))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fitness[order[a]] > fitness[order[b]]
	})
	return order
}

func rouletteWeight(f float64) float64 {
	if f > 0 {
		return f
	}
	return 0
}

func checkPick(rng *rand.Rand, fitness []float64) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if len(fitness) == 0 {
		return fmt.Errorf("cannot select from an empty population")
	}
	return nil
}
