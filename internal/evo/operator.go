package evo

import (
	"math/rand"

	"chartevo/internal/nn"
)

// Operator rewrites a child's weight buffer in place. Callers hand it a
// clone, never a buffer owned by a live network.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, weights nn.Buffer)
}
