package evo

// FitnessPostprocessor adjusts raw episode fitness before stats and
// selection.
type FitnessPostprocessor interface {
	Name() string
	Process(fitness []float64) []float64
}

// NoopFitnessPostprocessor keeps raw capital.
type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Process(fitness []float64) []float64 {
	return cloneFitness(fitness)
}

// NonNegativePostprocessor clamps losses at zero.
type NonNegativePostprocessor struct{}

func (NonNegativePostprocessor) Name() string {
	return "non_negative"
}

func (NonNegativePostprocessor) Process(fitness []float64) []float64 {
	out := cloneFitness(fitness)
	for i, f := range out {
		if f < 0 {
			out[i] = 0
		}
	}
	return out
}

func cloneFitness(fitness []float64) []float64 {
	out := make([]float64, len(fitness))
	copy(out, fitness)
	return out
}
