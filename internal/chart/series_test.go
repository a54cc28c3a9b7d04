package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateStaysWithinBounds(t *testing.T) {
	params := SeriesParams{Min: 0, Max: 10, Volatility: 0.25, TickCount: 600}
	for seed := int64(0); seed < 200; seed++ {
		series, err := Generate(params, seed)
		require.NoError(t, err)
		require.Equal(t, params.TickCount, series.TickCount())
		for i, v := range series.Values() {
			if v < params.Min || v > params.Max {
				t.Fatalf("seed=%d tick=%d value %v outside [%v, %v]", seed, i, v, params.Min, params.Max)
			}
		}
	}
}

func TestGenerateStepWidthBoundedByVolatility(t *testing.T) {
	params := SeriesParams{Min: -5, Max: 5, Volatility: 0.1, TickCount: 2000}
	series, err := Generate(params, 42)
	require.NoError(t, err)

	halfWidth := params.Volatility * (params.Max - params.Min) / 2
	values := series.Values()
	for i := 1; i < len(values); i++ {
		step := values[i] - values[i-1]
		assert.LessOrEqual(t, step, halfWidth+1e-9)
		assert.GreaterOrEqual(t, step, -halfWidth-1e-9)
	}
}

func TestGenerateFullVolatilityStillBounded(t *testing.T) {
	params := SeriesParams{Min: 100, Max: 101, Volatility: 1, TickCount: 5000}
	series, err := Generate(params, 9)
	require.NoError(t, err)
	for _, v := range series.Values() {
		require.GreaterOrEqual(t, v, params.Min)
		require.LessOrEqual(t, v, params.Max)
	}
}

func TestGenerateIsSeedDeterministic(t *testing.T) {
	params := SeriesParams{Min: 0, Max: 10, Volatility: 0.25, TickCount: 100}
	a, err := Generate(params, 5)
	require.NoError(t, err)
	b, err := Generate(params, 5)
	require.NoError(t, err)
	c, err := Generate(params, 6)
	require.NoError(t, err)

	assert.Equal(t, a.Values(), b.Values())
	assert.NotEqual(t, a.Values(), c.Values())
	assert.Equal(t, 0.25, a.Volatility())
}

func TestSeriesParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params SeriesParams
	}{
		{name: "inverted bounds", params: SeriesParams{Min: 10, Max: 0, Volatility: 0.2, TickCount: 10}},
		{name: "equal bounds", params: SeriesParams{Min: 1, Max: 1, Volatility: 0.2, TickCount: 10}},
		{name: "zero volatility", params: SeriesParams{Min: 0, Max: 1, Volatility: 0, TickCount: 10}},
		{name: "volatility above one", params: SeriesParams{Min: 0, Max: 1, Volatility: 1.5, TickCount: 10}},
		{name: "no ticks", params: SeriesParams{Min: 0, Max: 1, Volatility: 0.5, TickCount: 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(tc.params, 1)
			assert.Error(t, err)
		})
	}
}

func TestNewSeries(t *testing.T) {
	series, err := NewSeries(0, 10, []float64{5, 8})
	require.NoError(t, err)
	assert.Equal(t, 2, series.TickCount())
	assert.Equal(t, 0.0, series.Min())
	assert.Equal(t, 10.0, series.Max())
	assert.Equal(t, 8.0, series.Value(1))
	assert.Panics(t, func() { series.Value(2) })

	_, err = NewSeries(0, 10, []float64{11})
	assert.Error(t, err)
	_, err = NewSeries(0, 10, nil)
	assert.Error(t, err)
}
