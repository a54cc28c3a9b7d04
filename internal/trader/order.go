package trader

import "fmt"

// Order is one position slot owned by a Trader. It moves between inactive
// and active; any other transition is a programming error.
type Order struct {
	side     Side
	trader   *Trader
	active   bool
	entrance float64
}

func (o *Order) Side() Side {
	return o.side
}

func (o *Order) Active() bool {
	return o.active
}

// Entrance is the price the order opened at. Only valid while active.
func (o *Order) Entrance() float64 {
	if !o.active {
		panic(fmt.Sprintf("trader: %s order has no entrance while inactive", o.side))
	}
	return o.entrance
}

// Breach opens the order at the current price and pays the entry charge.
func (o *Order) Breach() {
	if o.active {
		panic(fmt.Sprintf("trader: breach on active %s order", o.side))
	}
	o.entrance = o.trader.Price()
	o.trader.capital -= o.trader.charge(o.entrance)
	o.active = true
}

// Leave closes the order, books the price difference (negated for shorts),
// pays the exit charge and returns the net change in capital.
func (o *Order) Leave() float64 {
	if !o.active {
		panic(fmt.Sprintf("trader: leave on inactive %s order", o.side))
	}
	t := o.trader
	before := t.capital
	price := t.Price()
	diff := price - o.entrance

	switch o.side {
	case Long:
		t.capital += diff
	case Short:
		t.capital -= diff
	default:
		panic(fmt.Sprintf("trader: unknown side %v", o.side))
	}
	t.capital -= t.charge(price)

	o.active = false
	o.entrance = 0
	return t.capital - before
}

func (o *Order) snapshot() OrderSnapshot {
	s := OrderSnapshot{Side: o.side.String(), Active: o.active}
	if o.active {
		s.Entrance = o.entrance
	}
	return s
}
