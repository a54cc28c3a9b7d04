package evo

import (
	"fmt"
	"math/rand"

	"chartevo/internal/nn"
)

// Crossover overwrites child genes with other's, gene by gene. Each gene
// stays with the child with probability childFitness/(childFitness+otherFitness)
// after negative fitness is floored at zero; an even split is used when both
// are zero.
func Crossover(rng *rand.Rand, child, other nn.Buffer, childFitness, otherFitness float64) {
	if child.Len() != other.Len() {
		panic(fmt.Sprintf("evo: crossover of buffers with lengths %d and %d", child.Len(), other.Len()))
	}
	fa, fb := rouletteWeight(childFitness), rouletteWeight(otherFitness)
	keep := 0.5
	if fa+fb > 0 {
		keep = fa / (fa + fb)
	}
	for i := 0; i < child.Len(); i++ {
		if rng.Float64() >= keep {
			child.Set(i, other.At(i))
		}
	}
}
