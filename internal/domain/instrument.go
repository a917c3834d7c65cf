package domain

// InstrumentKind categorises an instrument for pricing purposes.
type InstrumentKind string

const (
	KindFX        InstrumentKind = "fx"
	KindIndex     InstrumentKind = "index"
	KindCommodity InstrumentKind = "commodity"
	KindStock     InstrumentKind = "stock"
)

// Fees holds the cost model parameters for an instrument.
// Costs are applied round-trip when judging whether a signal is economic.
type Fees struct {
	SpreadPoints   float64 // Bid/ask spread expressed in price points
	CommissionRate float64 // Commission as a fraction of position value, per side
	SwapDailyRate  float64 // Expected overnight financing as a fraction of position value, per day
	SwapDays       int     // Expected holding days used for the swap estimate
}

// Instrument is the static descriptor for a tradable symbol.
// It is owned by configuration and read-only to the decision core.
type Instrument struct {
	Symbol           string
	Kind             InstrumentKind
	PointValue       float64 // Monetary value of a one-point move per unit of size
	TickSize         float64 // Minimum price increment
	MinLot           float64 // Smallest tradable size
	LotStep          float64 // Size increment
	MarginRate       float64 // Fraction of position value required as margin
	CorrelationGroup string  // Instruments sharing a group count against one exposure cap
	LTF              string  // Lower timeframe used for entries (e.g., "5m")
	HTF              string  // Higher timeframe used for trend (e.g., "1h")
	Fees             Fees
}

// RoundTripCost returns the total expected cost of opening and closing a
// position of the given size at the given price.
func (i *Instrument) RoundTripCost(size, price float64) float64 {
	positionValue := price * size * i.PointValue
	spreadCost := i.Fees.SpreadPoints * i.PointValue * size
	commission := 2 * i.Fees.CommissionRate * positionValue
	swapDays := i.Fees.SwapDays
	if swapDays <= 0 {
		swapDays = 1
	}
	swap := i.Fees.SwapDailyRate * positionValue * float64(swapDays)
	return spreadCost + commission + swap
}
