package risk

import (
	"github.com/shopspring/decimal"
)

// Price and size rounding runs through decimals so repeated tick arithmetic
// cannot drift through float error and silently grow the budgeted risk.

// roundMode selects the direction a price is pushed when it falls between ticks.
type roundMode int

const (
	roundNearest roundMode = iota
	roundUp
	roundDown
)

// RoundToTick rounds a price to the instrument tick size in the given
// direction. Stops round away from entry and targets toward entry, so the
// realized risk never exceeds the budgeted amount.
func RoundToTick(price, tick float64, mode roundMode) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	q := p.Div(t)
	switch mode {
	case roundUp:
		q = q.Ceil()
	case roundDown:
		q = q.Floor()
	default:
		q = q.Round(0)
	}
	f, _ := q.Mul(t).Float64()
	return f
}

// FloorToStep rounds a position size down to the instrument's size
// increment. Sizing only ever rounds down: rounding up would raise risk
// beyond the configured cap.
func FloorToStep(size, step float64) float64 {
	if step <= 0 {
		return size
	}
	s := decimal.NewFromFloat(size)
	st := decimal.NewFromFloat(step)
	f, _ := s.Div(st).Floor().Mul(st).Float64()
	return f
}
