package risk

import (
	"context"
	"sync"
	"testing"
	"time"

	"cryptoDecisionEngine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestManager() *RiskManager {
	return NewRiskManager(DefaultRiskConfig(), &mockLogger{})
}

func pnlTrades(symbol string, pnls ...float64) []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(pnls))
	for i, p := range pnls {
		out[i] = domain.TradeRecord{Symbol: symbol, Side: domain.Sell, Quantity: 1, Price: 100, PnL: p}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRiskManager_KellyFraction(t *testing.T) {
	tests := []struct {
		name   string
		trades []domain.TradeRecord
		want   float64
	}{
		{name: "no history", want: 0.1},
		{name: "fewer than ten realized", trades: pnlTrades("BTCUSDT", 100, -50, 100, -50, 100), want: 0.1},
		{name: "entries without realized pnl", trades: pnlTrades("BTCUSDT", repeat(0, 20)...), want: 0.1},
		{name: "no losses", trades: pnlTrades("BTCUSDT", repeat(100, 12)...), want: 0.1},
		{
			name:   "sixty percent at two to one",
			trades: pnlTrades("BTCUSDT", append(repeat(200, 6), repeat(-100, 4)...)...),
			want:   0.4,
		},
		{
			name:   "clamped to half",
			trades: pnlTrades("BTCUSDT", append(repeat(500, 9), -10)...),
			want:   0.5,
		},
		{
			name:   "negative edge floors at zero",
			trades: pnlTrades("BTCUSDT", append(repeat(10, 2), repeat(-100, 8)...)...),
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestManager()
			for _, tr := range tt.trades {
				r.RecordTrade(tr)
			}
			assert.InDelta(t, tt.want, r.KellyFraction(), 1e-9)
			assert.InDelta(t, tt.want, r.Metrics().KellyFraction, 1e-9)
		})
	}
}

func TestRiskManager_HistoryBounded(t *testing.T) {
	r := newTestManager()
	for i := 0; i < 1100; i++ {
		r.RecordTrade(domain.TradeRecord{Symbol: "ETHUSDT", PnL: float64(i%3 - 1)})
	}
	assert.Equal(t, 1000, r.TradeCount())
}

func TestRiskManager_ConcurrentRecordTrade(t *testing.T) {
	r := newTestManager()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.RecordTrade(domain.TradeRecord{Symbol: "BTCUSDT", PnL: float64(g - 5)})
				_ = r.CalculateRiskProfile(domain.MarketConditions{Volatility: 0.02})
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 500, r.TradeCount())
	k := r.KellyFraction()
	assert.GreaterOrEqual(t, k, 0.0)
	assert.LessOrEqual(t, k, 0.5)
}

func TestRiskManager_CurrentRisk(t *testing.T) {
	r := newTestManager()
	assert.Equal(t, 0.5, r.Metrics().CurrentRisk)

	// Half wins, profit factor 1, single symbol.
	for _, tr := range pnlTrades("BTCUSDT", 100, -100, 100, -100) {
		r.RecordTrade(tr)
	}
	want := 0.4*0.5 + 0.3*(1-0.2) + 0.3*1
	assert.InDelta(t, want, r.Metrics().CurrentRisk, 1e-9)
}

func TestRiskManager_CalculateRiskProfile(t *testing.T) {
	tests := []struct {
		name       string
		conditions domain.MarketConditions
		wantSize   float64
		wantStop   float64
		wantTP     float64
		wantConf   float64
	}{
		{
			name: "trending with volume",
			conditions: domain.MarketConditions{
				Volatility: 0.02, Regime: domain.RegimeTrending, TrendStrength: 0.8,
				HighVolume: true, LiquiditySufficient: true,
			},
			wantSize: 0.1 * 0.5 * 1 * 0.98,
			wantStop: 0.04,
			wantTP:   0.12,
			wantConf: 0.8,
		},
		{
			name: "volatile and illiquid",
			conditions: domain.MarketConditions{
				Volatility: 0.04, Regime: domain.RegimeVolatile, LiquiditySufficient: false,
			},
			wantSize: 0.1 * 0.5 * 1 * 0.96,
			wantStop: 0.12,
			wantTP:   0.30,
			wantConf: 0.2,
		},
		{
			name:       "quiet range uses minimum stop",
			conditions: domain.MarketConditions{Volatility: 0.001, Regime: domain.RegimeRanging, LiquiditySufficient: true},
			wantSize:   0.1 * 0.5 * 1 * 0.999,
			wantStop:   0.01,
			wantTP:     0.02,
			wantConf:   0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestManager().CalculateRiskProfile(tt.conditions)
			assert.InDelta(t, tt.wantSize, p.MaxPositionSize, 1e-9)
			assert.InDelta(t, tt.wantStop, p.StopLossPct, 1e-9)
			assert.InDelta(t, tt.wantTP, p.TakeProfitPct, 1e-9)
			assert.InDelta(t, tt.wantConf, p.EntryConfidence, 1e-9)
			assert.Equal(t, tt.conditions.Regime, p.Regime)
		})
	}
}

func TestRiskManager_ProfileSizeFloor(t *testing.T) {
	r := newTestManager()
	for _, tr := range pnlTrades("BTCUSDT", append(repeat(10, 2), repeat(-100, 8)...)...) {
		r.RecordTrade(tr)
	}

	p := r.CalculateRiskProfile(domain.MarketConditions{Volatility: 0.02})
	assert.Equal(t, 0.005, p.MaxPositionSize)
	assert.Greater(t, p.MaxPositionSize, 0.0)
	assert.LessOrEqual(t, p.MaxPositionSize, 0.1)
}

func TestRewardRatio(t *testing.T) {
	tests := []struct {
		regime domain.MarketRegime
		want   float64
	}{
		{domain.RegimeTrending, 3.0},
		{domain.RegimeRanging, 2.0},
		{domain.RegimeVolatile, 2.5},
		{domain.RegimeUnknown, 2.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.regime), func(t *testing.T) {
			assert.Equal(t, tt.want, RewardRatio(tt.regime))
		})
	}
}

func TestRiskManager_PositionSize(t *testing.T) {
	base := SizingInput{Balance: 10000, Price: 100, StopLossPrice: 98, Volatility: 0.05, MaxPositionSize: 0.1, RiskPerTrade: 0.02}

	tests := []struct {
		name    string
		method  domain.SizingMethod
		modify  func(*SizingInput)
		want    float64
		wantErr bool
	}{
		{name: "fixed fractional capped", method: domain.SizingFixedFractional, want: 10},
		{name: "fixed fractional wide stop", method: domain.SizingFixedFractional, modify: func(in *SizingInput) { in.StopLossPrice = 50 }, want: 4},
		{name: "fixed fractional zero distance", method: domain.SizingFixedFractional, modify: func(in *SizingInput) { in.StopLossPrice = 100 }, want: 0},
		{name: "half kelly", method: domain.SizingKelly, want: 5},
		{name: "volatility capped", method: domain.SizingVolatility, want: 10},
		{name: "volatility high", method: domain.SizingVolatility, modify: func(in *SizingInput) { in.Volatility = 0.5 }, want: 4},
		{name: "volatility zero", method: domain.SizingVolatility, modify: func(in *SizingInput) { in.Volatility = 0 }, wantErr: true},
		{name: "zero price", method: domain.SizingKelly, modify: func(in *SizingInput) { in.Price = 0 }, wantErr: true},
		{name: "unknown method", method: domain.SizingMethod("martingale"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			if tt.modify != nil {
				tt.modify(&in)
			}
			got, err := newTestManager().PositionSize(tt.method, in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSizing)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRiskManager_ValidateTrade(t *testing.T) {
	profile := domain.RiskProfile{MaxPositionSize: 0.1}

	tests := []struct {
		name    string
		trade   domain.TradeDetails
		wantErr error
	}{
		{name: "within cap", trade: domain.TradeDetails{Quantity: 10, Price: 100}},
		{name: "inside tolerance", trade: domain.TradeDetails{Quantity: 10.09, Price: 100}},
		{name: "over cap", trade: domain.TradeDetails{Quantity: 10.2, Price: 100}, wantErr: ErrPositionTooLarge},
		{name: "zero quantity", trade: domain.TradeDetails{Quantity: 0, Price: 100}, wantErr: ErrInvalidTrade},
		{name: "negative price", trade: domain.TradeDetails{Quantity: 1, Price: -1}, wantErr: ErrInvalidTrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestManager().ValidateTrade(tt.trade, 10000, profile)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRiskManager_UpdateMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("short series keeps default drawdown", func(t *testing.T) {
		m := newTestManager().UpdateMetrics(ctx, []float64{100, 101, 100, 102})
		assert.Equal(t, 0.2, m.ExpectedDrawdown)
		assert.GreaterOrEqual(t, m.OptimalLeverage, 1.0)
	})

	t.Run("steady series floors drawdown", func(t *testing.T) {
		closes := make([]float64, 60)
		price := 100.0
		for i := range closes {
			closes[i] = price
			price *= 1.001
		}
		m := newTestManager().UpdateMetrics(ctx, closes)
		assert.InDelta(t, 0.0, m.HistoricalVolatility, 1e-9)
		assert.Equal(t, 0.05, m.ExpectedDrawdown)
		assert.Equal(t, 1.0, m.OptimalLeverage)
	})
}

func TestRiskManager_AdjustRiskParameters(t *testing.T) {
	tests := []struct {
		name    string
		start   float64
		losses  int
		wantLev float64
	}{
		{name: "streak at limit", start: 5, losses: 3, wantLev: 5},
		{name: "streak over limit", start: 5, losses: 4, wantLev: 4},
		{name: "floor at one", start: 1.1, losses: 6, wantLev: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestManager()
			r.metrics.OptimalLeverage = tt.start
			r.AdjustRiskParameters(context.Background(), tt.losses)
			assert.InDelta(t, tt.wantLev, r.Metrics().OptimalLeverage, 1e-9)
		})
	}
}

func TestRiskManager_RunPeriodicUpdates(t *testing.T) {
	r := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan struct{}, 10)
	source := func(ctx context.Context) ([]float64, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return []float64{100, 102, 101, 103}, nil
	}

	done := make(chan struct{})
	go func() {
		r.RunPeriodicUpdates(ctx, 5*time.Millisecond, source)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("periodic update never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic updates did not stop")
	}
	assert.Greater(t, r.Metrics().HistoricalVolatility, 0.0)
}
