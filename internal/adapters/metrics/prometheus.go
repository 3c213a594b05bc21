package metrics

import (
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements ports.Metrics using Prometheus.
type Recorder struct {
	cycles     *prometheus.CounterVec
	cycleTime  *prometheus.HistogramVec
	trades     *prometheus.CounterVec
	killSwitch prometheus.Gauge
	dailyPnL   prometheus.Gauge
}

var _ ports.Metrics = (*Recorder)(nil)

// New registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decision_engine_cycles_total",
				Help: "Trading cycles by bot and outcome",
			},
			[]string{"bot", "action"},
		),
		cycleTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "decision_engine_cycle_duration_seconds",
				Help:    "Duration of trading cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"bot"},
		),
		trades: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decision_engine_trades_total",
				Help: "Executed trades by symbol, side and mode",
			},
			[]string{"symbol", "side", "mode"},
		),
		killSwitch: factory.NewGauge(prometheus.GaugeOpts{
			Name: "decision_engine_kill_switch_active",
			Help: "1 while the safety kill switch is engaged",
		}),
		dailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "decision_engine_daily_pnl",
			Help: "Realized PnL since the last UTC day rollover",
		}),
	}
}

// ObserveCycle records one cycle outcome and its duration.
func (r *Recorder) ObserveCycle(botID, action string, duration time.Duration) {
	r.cycles.WithLabelValues(botID, action).Inc()
	r.cycleTime.WithLabelValues(botID).Observe(duration.Seconds())
}

// IncTrades counts an executed trade.
func (r *Recorder) IncTrades(symbol string, side domain.OrderSide, mode domain.Mode) {
	r.trades.WithLabelValues(symbol, string(side), string(mode)).Inc()
}

// SetKillSwitch reports the kill switch state.
func (r *Recorder) SetKillSwitch(active bool) {
	if active {
		r.killSwitch.Set(1)
		return
	}
	r.killSwitch.Set(0)
}

// SetDailyPnL reports today's realized PnL.
func (r *Recorder) SetDailyPnL(pnl float64) {
	r.dailyPnL.Set(pnl)
}
