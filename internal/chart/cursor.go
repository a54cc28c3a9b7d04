package chart

import (
	"fmt"
	"math"
)

// Cursor walks a Series. The tick may run past the end; reads clamp to the
// last sample and Done reports the overrun.
type Cursor interface {
	Series() *Series
	CurrentTick() int
	CurrentValue() float64
	Done() bool
}

// TickCursor advances in explicit discrete steps.
type TickCursor struct {
	series *Series
	tick   int
}

func NewTickCursor(series *Series) *TickCursor {
	mustWalkable(series)
	return &TickCursor{series: series}
}

// Advance moves count ticks forward and reports whether it moved at all.
func (c *TickCursor) Advance(count int) bool {
	if count < 0 {
		panic(fmt.Sprintf("chart: cannot advance by negative count %d", count))
	}
	c.tick += count
	return count > 0
}

func (c *TickCursor) Series() *Series       { return c.series }
func (c *TickCursor) CurrentTick() int      { return c.tick }
func (c *TickCursor) CurrentValue() float64 { return currentValue(c.series, c.tick) }
func (c *TickCursor) Done() bool            { return c.tick >= c.series.TickCount() }
func (c *TickCursor) VisibleCount() int     { return visibleCount(c.series, c.tick) }

func (c *TickCursor) TickValue(tick int) float64 {
	return tickValue(c.series, c.tick, tick)
}

// TimeCursor derives its tick from accumulated wall time at a fixed rate.
type TimeCursor struct {
	series         *Series
	ticksPerSecond float64
	elapsed        float64
}

func NewTimeCursor(series *Series, ticksPerSecond float64) *TimeCursor {
	mustWalkable(series)
	if !(ticksPerSecond > 0) {
		panic(fmt.Sprintf("chart: ticks per second must be > 0, got %v", ticksPerSecond))
	}
	return &TimeCursor{series: series, ticksPerSecond: ticksPerSecond}
}

// Advance adds seconds of elapsed time and reports whether the integer tick
// changed.
func (c *TimeCursor) Advance(seconds float64) bool {
	if seconds < 0 {
		panic(fmt.Sprintf("chart: cannot advance by negative time %v", seconds))
	}
	before := c.CurrentTick()
	c.elapsed += seconds
	return c.CurrentTick() > before
}

func (c *TimeCursor) Series() *Series         { return c.series }
func (c *TimeCursor) CurrentTime() float64    { return c.elapsed }
func (c *TimeCursor) TicksPerSecond() float64 { return c.ticksPerSecond }
func (c *TimeCursor) CurrentValue() float64   { return currentValue(c.series, c.CurrentTick()) }
func (c *TimeCursor) Done() bool              { return c.CurrentTick() >= c.series.TickCount() }
func (c *TimeCursor) VisibleCount() int       { return visibleCount(c.series, c.CurrentTick()) }

func (c *TimeCursor) CurrentTick() int {
	return int(math.Floor(c.elapsed * c.ticksPerSecond))
}

func (c *TimeCursor) TickValue(tick int) float64 {
	return tickValue(c.series, c.CurrentTick(), tick)
}

// TimeValue reads the sample shown at the given time offset.
func (c *TimeCursor) TimeValue(seconds float64) float64 {
	return c.TickValue(int(math.Floor(seconds * c.ticksPerSecond)))
}

func mustWalkable(series *Series) {
	if series == nil || series.TickCount() == 0 {
		panic("chart: cursor requires a non-empty series")
	}
}

func visibleCount(series *Series, tick int) int {
	return min(tick+1, series.TickCount())
}

func currentValue(series *Series, tick int) float64 {
	return series.Value(visibleCount(series, tick) - 1)
}

// tickValue never reveals samples past the cursor.
func tickValue(series *Series, current, tick int) float64 {
	return series.Value(max(0, min(tick, visibleCount(series, current)-1)))
}
