// Package microstructure analyzes order flow and volume distribution.
package microstructure

import (
	"math"

	"cryptoDecisionEngine/internal/domain"
)

const (
	flowWindow     = 20
	bookDepth      = 10
	defaultSpread  = 0.001
	bullishFlowBP  = 0.6
	bearishFlowBP  = 0.4
	bullishImbal   = 1.2
	bearishImbal   = 0.8
	neutralBalance = 0.5
)

// AnalyzeOrderFlow estimates buying pressure from candle direction and depth imbalance.
// A nil or one-sided book falls back to a neutral imbalance and default spread.
func AnalyzeOrderFlow(candles []domain.Candle, book *domain.OrderBook) domain.OrderFlow {
	var flow domain.OrderFlow
	for _, c := range domain.Tail(candles, flowWindow) {
		if c.Close > c.Open {
			flow.BuyVolume += c.Volume
		} else {
			flow.SellVolume += c.Volume
		}
	}
	total := flow.BuyVolume + flow.SellVolume
	flow.BuyPressure = neutralBalance
	if total > 0 {
		flow.BuyPressure = flow.BuyVolume / total
	}

	flow.BidAskRatio = 1.0
	flow.Spread = defaultSpread
	if book != nil {
		bidQty := sumQuantity(book.Bids, bookDepth)
		askQty := sumQuantity(book.Asks, bookDepth)
		if askQty > 0 {
			flow.BidAskRatio = bidQty / askQty
		}
		if len(book.Bids) > 0 && len(book.Asks) > 0 && book.Bids[0].Price > 0 {
			flow.Spread = (book.Asks[0].Price - book.Bids[0].Price) / book.Bids[0].Price
		}
	}
	flow.LiquidityScore = 1 - math.Min(math.Max(flow.Spread, 0)*100, 1)

	switch {
	case flow.BuyPressure > bullishFlowBP && flow.BidAskRatio > bullishImbal:
		flow.Signal = domain.BiasBullish
	case flow.BuyPressure < bearishFlowBP && flow.BidAskRatio < bearishImbal:
		flow.Signal = domain.BiasBearish
	default:
		flow.Signal = domain.BiasNeutral
	}
	return flow
}

func sumQuantity(levels []domain.PriceLevel, depth int) float64 {
	total := 0.0
	for i, l := range levels {
		if i >= depth {
			break
		}
		total += l.Quantity
	}
	return total
}
