package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartevo/internal/nn"
)

func TestFitnessPostprocessors(t *testing.T) {
	raw := []float64{-2, 0, 3.5}

	none := NoopFitnessPostprocessor{}.Process(raw)
	assert.Equal(t, raw, none)
	none[0] = 99
	assert.Equal(t, -2.0, raw[0], "output must not alias input")

	clamped := NonNegativePostprocessor{}.Process(raw)
	assert.Equal(t, []float64{0, 0, 3.5}, clamped)
	assert.Equal(t, -2.0, raw[0])
}

func TestGaussianMutationRateBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	original := nn.RandomBuffer(200, rng)

	untouched := original.Clone()
	GaussianMutation{Rate: 0, StdDev: 0.15}.Apply(rng, untouched)
	assert.True(t, untouched.Equal(original))

	all := original.Clone()
	GaussianMutation{Rate: 1, StdDev: 0.15}.Apply(rng, all)
	for i := 0; i < all.Len(); i++ {
		assert.NotEqual(t, original.At(i), all.At(i), "weight %d", i)
	}
}

func TestGaussianMutationDefaultRateTouchesAFraction(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	original := nn.RandomBuffer(5000, rng)
	mutated := original.Clone()
	GaussianMutation{Rate: DefaultMutationRate, StdDev: DefaultMutationStdDev}.Apply(rng, mutated)

	changed := 0
	for i := 0; i < mutated.Len(); i++ {
		if mutated.At(i) != original.At(i) {
			changed++
		}
	}
	assert.InDelta(t, 0.1, float64(changed)/5000, 0.02)
}

func TestGaussianMutationValidate(t *testing.T) {
	assert.NoError(t, GaussianMutation{Rate: 0.1, StdDev: 0.15}.Validate())
	assert.Error(t, GaussianMutation{Rate: 1.5, StdDev: 0.15}.Validate())
	assert.Error(t, GaussianMutation{Rate: 0.1, StdDev: -1}.Validate())
}

func TestCrossoverFollowsFitnessShare(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := nn.BufferOf(1, 1, 1, 1, 1, 1)
	b := nn.BufferOf(2, 2, 2, 2, 2, 2)

	child := a.Clone()
	Crossover(rng, child, b, 5, 0)
	assert.True(t, child.Equal(a), "a parent with all the fitness keeps every gene")

	child = a.Clone()
	Crossover(rng, child, b, -1, 3)
	assert.True(t, child.Equal(b), "a parent with no positive fitness keeps no gene")
	assert.Equal(t, 1.0, a.At(0), "crossover must not touch the other parent")
}

func TestCrossoverEvenSplitOnZeroFitness(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	child := nn.NewBuffer(4000)
	other := nn.NewBuffer(4000)
	for i := 0; i < other.Len(); i++ {
		other.Set(i, 1)
	}
	Crossover(rng, child, other, 0, 0)

	taken := 0.0
	for _, v := range child.Values() {
		taken += v
	}
	assert.InDelta(t, 0.5, taken/4000, 0.03)
}

func TestCrossoverPanicsOnLengthMismatch(t *testing.T) {
	require.Panics(t, func() {
		Crossover(rand.New(rand.NewSource(5)), nn.NewBuffer(3), nn.NewBuffer(4), 1, 1)
	})
}
