package domain

import "time"

// SafetyConfig holds the trading rules enforced by the safety gate.
type SafetyConfig struct {
	MaxPositionSizePct   float64 `json:"max_position_size_pct" yaml:"max_position_size_pct" default:"0.10" validate:"gt=0,lte=1"`
	DailyLossLimitPct    float64 `json:"daily_loss_limit_pct" yaml:"daily_loss_limit_pct" default:"0.05" validate:"gt=0,lte=1"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses" default:"3" validate:"gte=1"`
	MinAccountBalance    float64 `json:"min_account_balance" yaml:"min_account_balance" default:"100" validate:"gte=0"`
	MaxSlippagePct       float64 `json:"max_slippage_pct" yaml:"max_slippage_pct" default:"0.005" validate:"gt=0,lte=1"`
	MaxPortfolioHeat     float64 `json:"max_portfolio_heat" yaml:"max_portfolio_heat" default:"0.30" validate:"gt=0,lte=1"`
}

// SafetyConfigUpdate is a partial SafetyConfig; nil fields are left unchanged.
type SafetyConfigUpdate struct {
	MaxPositionSizePct   *float64 `json:"max_position_size_pct,omitempty"`
	DailyLossLimitPct    *float64 `json:"daily_loss_limit_pct,omitempty"`
	MaxConsecutiveLosses *int     `json:"max_consecutive_losses,omitempty"`
	MinAccountBalance    *float64 `json:"min_account_balance,omitempty"`
	MaxSlippagePct       *float64 `json:"max_slippage_pct,omitempty"`
	MaxPortfolioHeat     *float64 `json:"max_portfolio_heat,omitempty"`
}

// TradeOutcome is a completed trade as seen by the safety gate.
type TradeOutcome struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	PnL      float64   `json:"pnl"`
	Time     time.Time `json:"time"`
}

// SafetyState is the mutable kill-switch and loss-tracking state.
type SafetyState struct {
	KillSwitchActive      bool           `json:"kill_switch_active"`
	KillSwitchReason      string         `json:"kill_switch_reason,omitempty"`
	KillSwitchActivatedAt *time.Time     `json:"kill_switch_activated_at,omitempty"`
	DailyPnL              float64        `json:"daily_pnl"`
	TradesToday           []TradeOutcome `json:"trades_today"`
	ConsecutiveLosses     int            `json:"consecutive_losses"`
	LastResetDate         string         `json:"last_reset_date"` // UTC, YYYY-MM-DD
	LastKnownBalance      float64        `json:"last_known_balance"`
}

// SafetyStatus is a read-only snapshot of the gate.
type SafetyStatus struct {
	Config         SafetyConfig `json:"config"`
	State          SafetyState  `json:"state"`
	TradingAllowed bool         `json:"trading_allowed"`
}

// PositionExposure is an open position counted toward portfolio heat.
type PositionExposure struct {
	Symbol   string
	Quantity float64
	Price    float64
}

// Value is the absolute notional of the position.
func (p PositionExposure) Value() float64 {
	v := p.Quantity * p.Price
	if v < 0 {
		return -v
	}
	return v
}

// AccountSnapshot is the balance and open exposure of a bot owner.
type AccountSnapshot struct {
	Balance   float64
	Positions []PositionExposure
}

// TradeRequest is a proposed order submitted to safety validation.
type TradeRequest struct {
	Symbol   string
	Side     OrderSide
	Quantity float64
	Price    float64
}

// SafetyDecision is the outcome of safety validation.
type SafetyDecision struct {
	Allowed  bool
	Reason   string
	Quantity float64 // Possibly reduced quantity
	Adjusted bool
	Warnings []string
}
