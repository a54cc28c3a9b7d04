package chart

import (
	"fmt"
	"math"
	"math/rand"
)

// SeriesParams bounds a generated price series.
type SeriesParams struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Volatility float64 `json:"volatility"`
	TickCount  int     `json:"tick_count"`
}

func (p SeriesParams) Validate() error {
	if !(p.Min < p.Max) {
		return fmt.Errorf("series min %v must be below max %v", p.Min, p.Max)
	}
	if !(p.Volatility > 0 && p.Volatility <= 1) {
		return fmt.Errorf("series volatility must be in (0, 1], got %v", p.Volatility)
	}
	if p.TickCount <= 0 {
		return fmt.Errorf("series tick count must be > 0, got %d", p.TickCount)
	}
	return nil
}

// Series is an immutable sequence of prices inside [Min, Max].
type Series struct {
	min        float64
	max        float64
	volatility float64
	values     []float64
}

// Generate builds a bounded random walk. Each step is drawn from a window of
// width Volatility*(Max-Min) that is cut at the bounds, so no value leaves
// [Min, Max] for any seed.
func Generate(p SeriesParams, seed int64) (*Series, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	absVol := p.Volatility * (p.Max - p.Min)

	values := make([]float64, p.TickCount)
	cur := uniform(rng, p.Min, p.Max)
	for i := range values {
		values[i] = cur

		lo := math.Max(-absVol/2, p.Min-cur)
		hi := math.Min(absVol/2, p.Max-cur)
		// rounding in cur+step can land a hair outside the range
		cur = clamp(cur+uniform(rng, lo, hi), p.Min, p.Max)
	}

	return &Series{min: p.Min, max: p.Max, volatility: p.Volatility, values: values}, nil
}

// NewSeries wraps explicit prices, e.g. a replayed chart.
func NewSeries(min, max float64, values []float64) (*Series, error) {
	if !(min < max) {
		return nil, fmt.Errorf("series min %v must be below max %v", min, max)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("series must hold at least one value")
	}
	for i, v := range values {
		if v < min || v > max {
			return nil, fmt.Errorf("series value %v at tick %d outside [%v, %v]", v, i, min, max)
		}
	}
	return &Series{min: min, max: max, values: append([]float64(nil), values...)}, nil
}

func (s *Series) Min() float64 {
	return s.min
}

func (s *Series) Max() float64 {
	return s.max
}

func (s *Series) Volatility() float64 {
	return s.volatility
}

func (s *Series) TickCount() int {
	return len(s.values)
}

// Value panics when tick is outside [0, TickCount).
func (s *Series) Value(tick int) float64 {
	if tick < 0 || tick >= len(s.values) {
		panic(fmt.Sprintf("chart: tick %d outside series of %d ticks", tick, len(s.values)))
	}
	return s.values[tick]
}

func (s *Series) Values() []float64 {
	return append([]float64(nil), s.values...)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
