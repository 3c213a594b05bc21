package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the side that closes exposure opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Action is the decision emitted by a signal source.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Side maps a trading action to an order side. Hold has no side.
func (a Action) Side() (OrderSide, bool) {
	switch a {
	case ActionBuy:
		return Buy, true
	case ActionSell:
		return Sell, true
	default:
		return "", false
	}
}

// Bias is a directional read of a market factor.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// Mode selects where a bot's orders are executed.
type Mode string

const (
	ModePaper Mode = "paper" // Simulated against the local ledger
	ModeReal  Mode = "real"  // Routed to the exchange
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePaper || m == ModeReal
}
