package domain

import "time"

// PriceLevel is one side entry of an order book.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is a depth snapshot, best levels first.
type OrderBook struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
	Time   time.Time
}

// OrderFlow summarizes buying and selling pressure.
type OrderFlow struct {
	BuyVolume      float64
	SellVolume     float64
	BuyPressure    float64 // Buy share of volume, [0,1]
	BidAskRatio    float64 // Depth imbalance
	Spread         float64 // Relative spread
	LiquidityScore float64 // [0,1]
	Signal         Bias
}

// ValuePosition locates price relative to the value area.
type ValuePosition string

const (
	AboveValue ValuePosition = "above_value"
	BelowValue ValuePosition = "below_value"
	InValue    ValuePosition = "in_value"
)

// VolumeProfile is a volume-by-price distribution summary.
type VolumeProfile struct {
	POC           float64 // Point of control
	ValueAreaHigh float64
	ValueAreaLow  float64
	Position      ValuePosition
	Valid         bool
}
