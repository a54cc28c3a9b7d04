package evo

import (
	"fmt"
	"math/rand"

	"chartevo/internal/nn"
)

const (
	DefaultMutationRate   = 0.1
	DefaultMutationStdDev = 0.15
)

// GaussianMutation adds N(0, StdDev) noise to each weight with probability
// Rate.
type GaussianMutation struct {
	Rate   float64
	StdDev float64
}

func (GaussianMutation) Name() string {
	return "gaussian"
}

func (m GaussianMutation) Validate() error {
	if m.Rate < 0 || m.Rate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1], got %v", m.Rate)
	}
	if m.StdDev < 0 {
		return fmt.Errorf("mutation stddev must be >= 0, got %v", m.StdDev)
	}
	return nil
}

func (m GaussianMutation) Apply(rng *rand.Rand, weights nn.Buffer) {
	if m.Rate <= 0 || m.StdDev == 0 {
		return
	}
	for i := 0; i < weights.Len(); i++ {
		if rng.Float64() < m.Rate {
			weights.Add(i, rng.NormFloat64()*m.StdDev)
		}
	}
}

// NoMutation leaves weights untouched.
type NoMutation struct{}

func (NoMutation) Name() string                 { return "none" }
func (NoMutation) Apply(*rand.Rand, nn.Buffer) {}
