package ports

import (
	"context"
	"time"

	"cryptoDecisionEngine/internal/domain"
)

// EventPublisher delivers engine events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Metrics records engine telemetry.
type Metrics interface {
	ObserveCycle(botID, action string, duration time.Duration)
	IncTrades(symbol string, side domain.OrderSide, mode domain.Mode)
	SetKillSwitch(active bool)
	SetDailyPnL(pnl float64)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }

// NopMetrics discards telemetry.
type NopMetrics struct{}

func (NopMetrics) ObserveCycle(string, string, time.Duration)      {}
func (NopMetrics) IncTrades(string, domain.OrderSide, domain.Mode) {}
func (NopMetrics) SetKillSwitch(bool)                              {}
func (NopMetrics) SetDailyPnL(float64)                             {}
