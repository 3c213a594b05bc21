package domain

import "time"

// TradeDetails is a prepared order ready for validation and execution.
type TradeDetails struct {
	BotID           string
	UserID          string
	Symbol          string
	Side            OrderSide
	Quantity        float64
	Price           float64 // Reference price at decision time
	StopLossPrice   float64
	TakeProfitPrice float64
	Strategy        StrategyKind
	Mode            Mode
	Confidence      float64
}

// Notional returns quantity times reference price.
func (t TradeDetails) Notional() float64 {
	return t.Quantity * t.Price
}

// ExecutionReport is the result of a filled order.
type ExecutionReport struct {
	OrderID       string
	Symbol        string
	Side          OrderSide
	Quantity      float64
	ExecutedPrice float64
	PnL           float64 // Realized by this fill, 0 when it only opens exposure
	Mode          Mode
	Time          time.Time
}

// ProtectiveOrders are the stop-loss and take-profit orders attached to a fill.
type ProtectiveOrders struct {
	StopLossOrderID   string
	TakeProfitOrderID string
	StopLossPrice     float64
	TakeProfitPrice   float64
}

// TradeRecord is a persisted trade.
type TradeRecord struct {
	ID         int64
	BotID      string
	UserID     string
	Symbol     string
	Side       OrderSide
	Quantity   float64
	Price      float64
	PnL        float64
	Mode       Mode
	OrderID    string
	Strategy   StrategyKind
	Confidence float64
	CreatedAt  time.Time
}

// EventType categorizes published engine events.
type EventType string

const (
	EventTradeExecuted   EventType = "trade_executed"
	EventKillSwitchOn    EventType = "kill_switch_activated"
	EventKillSwitchReset EventType = "kill_switch_reset"
)

// Event is an engine notification published to downstream consumers.
type Event struct {
	ID      string                 `json:"id"`
	Type    EventType              `json:"type"`
	BotID   string                 `json:"bot_id,omitempty"`
	Symbol  string                 `json:"symbol,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Time    time.Time              `json:"time"`
}
