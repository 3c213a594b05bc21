package risk

import (
	"errors"
	"fmt"
	"math"

	"cryptoDecisionEngine/internal/domain"
)

// ErrInvalidSizing is returned when sizing inputs cannot produce a quantity.
var ErrInvalidSizing = errors.New("invalid sizing input")

// SizingInput carries the values needed by every sizing method.
type SizingInput struct {
	Balance         float64
	Price           float64
	StopLossPrice   float64
	Volatility      float64
	MaxPositionSize float64 // Fraction of balance
	RiskPerTrade    float64
}

// PositionSize returns a quantity in base units, never above MaxPositionSize of balance.
func (r *RiskManager) PositionSize(method domain.SizingMethod, in SizingInput) (float64, error) {
	if in.Balance <= 0 || in.Price <= 0 {
		return 0, fmt.Errorf("%w: balance %.2f, price %.2f", ErrInvalidSizing, in.Balance, in.Price)
	}
	capQty := in.MaxPositionSize * in.Balance / in.Price

	var qty float64
	switch method {
	case domain.SizingFixedFractional:
		distance := math.Abs(in.Price - in.StopLossPrice)
		if distance == 0 {
			return 0, nil
		}
		qty = in.Balance * in.RiskPerTrade / distance
	case domain.SizingKelly:
		half := math.Max(0, math.Min(r.KellyFraction()*0.5, in.MaxPositionSize))
		qty = in.Balance * half / in.Price
	case domain.SizingVolatility:
		if in.Volatility <= 0 {
			return 0, fmt.Errorf("%w: volatility must be positive", ErrInvalidSizing)
		}
		qty = in.Balance * in.RiskPerTrade / in.Volatility / in.Price
	default:
		return 0, fmt.Errorf("%w: unknown sizing method %q", ErrInvalidSizing, method)
	}
	return math.Min(qty, capQty), nil
}
