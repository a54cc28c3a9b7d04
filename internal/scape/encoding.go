package scape

import (
	"fmt"

	"chartevo/internal/trader"
)

const (
	InputEntrances  = "entrances"
	InputPosition   = "position"
	ActionPerSide   = "per_side"
	ActionCombined  = "combined"
	DefaultActivity = 0.5
)

// InputEncoding writes the network input vector for the current tick.
type InputEncoding interface {
	Name() string
	Width() int
	Encode(dst []float64, t *trader.Trader)
}

// ActionEncoding turns a network output vector into order transitions. It
// never asks an order for an illegal transition.
type ActionEncoding interface {
	Name() string
	Width() int
	Apply(out []float64, t *trader.Trader) (opened, closed int)
}

// EntrancesInput feeds [price, long entrance, short entrance], with -1 for an
// inactive side.
type EntrancesInput struct{}

func (EntrancesInput) Name() string { return InputEntrances }
func (EntrancesInput) Width() int   { return 3 }

func (EntrancesInput) Encode(dst []float64, t *trader.Trader) {
	dst[0] = t.Price()
	dst[1] = entranceOr(t.Long(), -1)
	dst[2] = entranceOr(t.Short(), -1)
}

// PositionInput feeds [price, position, entrance]. Position is 1 when only
// long, -1 when only short and 0 when flat or holding both; entrance is the
// mean entrance of open orders or -1.
type PositionInput struct{}

func (PositionInput) Name() string { return InputPosition }
func (PositionInput) Width() int   { return 3 }

func (PositionInput) Encode(dst []float64, t *trader.Trader) {
	long, short := t.Long(), t.Short()
	dst[0] = t.Price()
	switch {
	case long.Active() && short.Active():
		dst[1] = 0
		dst[2] = (long.Entrance() + short.Entrance()) / 2
	case long.Active():
		dst[1] = 1
		dst[2] = long.Entrance()
	case short.Active():
		dst[1] = -1
		dst[2] = short.Entrance()
	default:
		dst[1] = 0
		dst[2] = -1
	}
}

// PerSideActions reads [long enter, long leave, short enter, short leave].
// Leaving an open side wins over entering it.
type PerSideActions struct {
	Threshold float64
}

func (PerSideActions) Name() string { return ActionPerSide }
func (PerSideActions) Width() int   { return 4 }

func (a PerSideActions) Apply(out []float64, t *trader.Trader) (opened, closed int) {
	th := threshold(a.Threshold)
	for i, order := range []*trader.Order{t.Long(), t.Short()} {
		enter, leave := out[2*i], out[2*i+1]
		if order.Active() && leave > th {
			order.Leave()
			closed++
		} else if !order.Active() && enter > th {
			order.Breach()
			opened++
		}
	}
	return opened, closed
}

// CombinedActions reads [act, enter vs leave, side]. Nothing happens unless
// act crosses the threshold; side above the threshold means long.
type CombinedActions struct {
	Threshold float64
}

func (CombinedActions) Name() string { return ActionCombined }
func (CombinedActions) Width() int   { return 3 }

func (a CombinedActions) Apply(out []float64, t *trader.Trader) (opened, closed int) {
	th := threshold(a.Threshold)
	if out[0] <= th {
		return 0, 0
	}
	side := trader.Short
	if out[2] > th {
		side = trader.Long
	}
	order := t.Order(side)
	enter := out[1] > th
	switch {
	case enter && !order.Active():
		order.Breach()
		return 1, 0
	case !enter && order.Active():
		order.Leave()
		return 0, 1
	}
	return 0, 0
}

func ResolveInputEncoding(name string) (InputEncoding, error) {
	switch name {
	case "", InputEntrances:
		return EntrancesInput{}, nil
	case InputPosition:
		return PositionInput{}, nil
	default:
		return nil, fmt.Errorf("unsupported input encoding: %s", name)
	}
}

func ResolveActionEncoding(name string, threshold float64) (ActionEncoding, error) {
	switch name {
	case "", ActionPerSide:
		return PerSideActions{Threshold: threshold}, nil
	case ActionCombined:
		return CombinedActions{Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("unsupported action encoding: %s", name)
	}
}

func entranceOr(order *trader.Order, fallback float64) float64 {
	if order.Active() {
		return order.Entrance()
	}
	return fallback
}

func threshold(v float64) float64 {
	if v <= 0 {
		return DefaultActivity
	}
	return v
}
