package trader

import "fmt"

type Side int

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ChargeFunc returns the cost deducted from capital when an order enters or
// leaves at price.
type ChargeFunc func(price float64) float64

func NoCharge(float64) float64 {
	return 0
}

// ProportionalCharge charges rate*price per transaction.
func ProportionalCharge(rate float64) ChargeFunc {
	return func(price float64) float64 {
		return rate * price
	}
}

// FixedCharge charges a flat fee per transaction.
func FixedCharge(fee float64) ChargeFunc {
	return func(float64) float64 {
		return fee
	}
}

// PriceSource supplies the current market price; chart cursors satisfy it.
type PriceSource interface {
	CurrentValue() float64
}

// Trader holds capital plus one long and one short order slot. A Trader must
// not be copied after New: its orders point back at it.
type Trader struct {
	prices  PriceSource
	capital float64
	charge  ChargeFunc
	long    Order
	short   Order
}

func New(prices PriceSource, capital float64, charge ChargeFunc) *Trader {
	if prices == nil {
		panic("trader: price source is required")
	}
	if charge == nil {
		charge = NoCharge
	}
	t := &Trader{prices: prices, capital: capital, charge: charge}
	t.long = Order{side: Long, trader: t}
	t.short = Order{side: Short, trader: t}
	return t
}

func (t *Trader) Capital() float64 {
	return t.capital
}

func (t *Trader) Long() *Order {
	return &t.long
}

func (t *Trader) Short() *Order {
	return &t.short
}

func (t *Trader) Order(side Side) *Order {
	switch side {
	case Long:
		return &t.long
	case Short:
		return &t.short
	default:
		panic(fmt.Sprintf("trader: unknown side %v", side))
	}
}

// Trading reports whether any order is open.
func (t *Trader) Trading() bool {
	return t.long.active || t.short.active
}

// Price is the current quote seen by both orders.
func (t *Trader) Price() float64 {
	return t.prices.CurrentValue()
}

type OrderSnapshot struct {
	Side     string  `json:"side"`
	Active   bool    `json:"active"`
	Entrance float64 `json:"entrance,omitempty"`
}

type Snapshot struct {
	Capital float64       `json:"capital"`
	Trading bool          `json:"trading"`
	Long    OrderSnapshot `json:"long"`
	Short   OrderSnapshot `json:"short"`
}

// Snapshot copies the read-only state a chart overlay needs.
func (t *Trader) Snapshot() Snapshot {
	return Snapshot{
		Capital: t.capital,
		Trading: t.Trading(),
		Long:    t.long.snapshot(),
		Short:   t.short.snapshot(),
	}
}
