package paper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// memLedger is an in-memory ports.LedgerRepository.
type memLedger struct {
	mu        sync.Mutex
	balances  map[string]float64
	positions map[string]map[string]domain.PositionExposure
	failWrite error
}

func newMemLedger() *memLedger {
	return &memLedger{
		balances:  map[string]float64{},
		positions: map[string]map[string]domain.PositionExposure{},
	}
}

func (m *memLedger) GetAccountSnapshot(ctx context.Context, userID string) (*domain.AccountSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &domain.AccountSnapshot{Balance: m.balances[userID]}
	for _, p := range m.positions[userID] {
		snap.Positions = append(snap.Positions, p)
	}
	return snap, nil
}

func (m *memLedger) UpsertBalance(ctx context.Context, userID string, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	m.balances[userID] = balance
	return nil
}

func (m *memLedger) UpsertPosition(ctx context.Context, userID, symbol string, quantity, avgPrice float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	if m.positions[userID] == nil {
		m.positions[userID] = map[string]domain.PositionExposure{}
	}
	if quantity == 0 {
		delete(m.positions[userID], symbol)
		return nil
	}
	m.positions[userID][symbol] = domain.PositionExposure{Symbol: symbol, Quantity: quantity, Price: avgPrice}
	return nil
}

func newTestExecutor(t *testing.T, cfg Config) (*Executor, *memLedger) {
	t.Helper()
	ledger := newMemLedger()
	exec, err := NewExecutor(ledger, &mockLogger{}, cfg)
	require.NoError(t, err)
	return exec, ledger
}

func trade(side domain.OrderSide, symbol string, qty, price float64) domain.TradeDetails {
	return domain.TradeDetails{UserID: "u1", Symbol: symbol, Side: side, Quantity: qty, Price: price, Mode: domain.ModePaper}
}

func TestNewExecutor(t *testing.T) {
	_, err := NewExecutor(nil, &mockLogger{}, Config{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	exec, _ := newTestExecutor(t, Config{CommissionRate: -1})
	assert.Equal(t, DefaultStartingBalance, exec.cfg.StartingBalance)
	assert.Equal(t, DefaultCommissionRate, exec.cfg.CommissionRate)
}

func TestGetAccountSnapshotSeedsNewAccount(t *testing.T) {
	exec, ledger := newTestExecutor(t, Config{StartingBalance: 2500})

	snap, err := exec.GetAccountSnapshot(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2500.0, snap.Balance)
	assert.Equal(t, 2500.0, ledger.balances["u1"])
}

func TestLongRoundTrip(t *testing.T) {
	exec, ledger := newTestExecutor(t, Config{CommissionRate: 0.001})
	ctx := context.Background()

	open, err := exec.SubmitOrder(ctx, trade(domain.Buy, "BTCUSDT", 0.1, 50000))
	require.NoError(t, err)
	assert.Zero(t, open.PnL)
	assert.Equal(t, 50000.0, open.ExecutedPrice)
	assert.Equal(t, domain.ModePaper, open.Mode)
	assert.Contains(t, open.OrderID, "paper-")
	assert.InDelta(t, 9995.0, ledger.balances["u1"], 1e-9)
	assert.Equal(t, domain.PositionExposure{Symbol: "BTCUSDT", Quantity: 0.1, Price: 50000}, ledger.positions["u1"]["BTCUSDT"])

	closed, err := exec.SubmitOrder(ctx, trade(domain.Sell, "BTCUSDT", 0.1, 51000))
	require.NoError(t, err)
	assert.InDelta(t, 94.9, closed.PnL, 1e-9)
	assert.InDelta(t, 10089.9, ledger.balances["u1"], 1e-9)
	assert.Empty(t, ledger.positions["u1"])
}

func TestShortFlipsToLong(t *testing.T) {
	exec, ledger := newTestExecutor(t, Config{CommissionRate: 0.001})
	ctx := context.Background()

	_, err := exec.SubmitOrder(ctx, trade(domain.Sell, "ETHUSDT", 1, 2000))
	require.NoError(t, err)
	assert.InDelta(t, 9998.0, ledger.balances["u1"], 1e-9)
	assert.Equal(t, -1.0, ledger.positions["u1"]["ETHUSDT"].Quantity)

	flip, err := exec.SubmitOrder(ctx, trade(domain.Buy, "ETHUSDT", 1.5, 1900))
	require.NoError(t, err)
	assert.InDelta(t, 97.15, flip.PnL, 1e-9)
	assert.InDelta(t, 10095.15, ledger.balances["u1"], 1e-9)
	pos := ledger.positions["u1"]["ETHUSDT"]
	assert.InDelta(t, 0.5, pos.Quantity, 1e-12)
	assert.Equal(t, 1900.0, pos.Price)
}

func TestAveragingIntoPosition(t *testing.T) {
	exec, ledger := newTestExecutor(t, Config{})
	ctx := context.Background()

	_, err := exec.SubmitOrder(ctx, trade(domain.Buy, "SOLUSDT", 1, 100))
	require.NoError(t, err)
	_, err = exec.SubmitOrder(ctx, trade(domain.Buy, "SOLUSDT", 3, 120))
	require.NoError(t, err)

	pos := ledger.positions["u1"]["SOLUSDT"]
	assert.Equal(t, 4.0, pos.Quantity)
	assert.Equal(t, 115.0, pos.Price)
}

func TestCloseExposureUsesOppositeSide(t *testing.T) {
	exec, ledger := newTestExecutor(t, Config{})
	ctx := context.Background()

	buy := trade(domain.Buy, "BTCUSDT", 0.2, 40000)
	_, err := exec.SubmitOrder(ctx, buy)
	require.NoError(t, err)

	rep, err := exec.CloseExposure(ctx, buy, 0.2)
	require.NoError(t, err)
	assert.Equal(t, domain.Sell, rep.Side)
	assert.Empty(t, ledger.positions["u1"])
}

func TestSubmitOrderErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		trade   domain.TradeDetails
		failing error
		wantErr error
	}{
		{"zero quantity", Config{}, trade(domain.Buy, "BTCUSDT", 0, 100), nil, ports.ErrInvalidRequest},
		{"zero price", Config{}, trade(domain.Buy, "BTCUSDT", 1, 0), nil, ports.ErrInvalidRequest},
		{"bad side", Config{}, trade("HOLD", "BTCUSDT", 1, 100), nil, ports.ErrInvalidRequest},
		{"fee exceeds balance", Config{StartingBalance: 1, CommissionRate: 0.001}, trade(domain.Buy, "BTCUSDT", 1, 2000), nil, ports.ErrInsufficientFunds},
		{"ledger write fails", Config{}, trade(domain.Buy, "BTCUSDT", 1, 100), ports.ErrUpdateFailed, ports.ErrUpdateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, ledger := newTestExecutor(t, tt.cfg)
			if tt.failing != nil {
				ledger.balances["u1"] = 1000
				ledger.failWrite = tt.failing
			}
			_, err := exec.SubmitOrder(context.Background(), tt.trade)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestFillPriceSlippage(t *testing.T) {
	assert.True(t, fillPrice(100, domain.Buy, 10).Equal(decimal.RequireFromString("100.1")))
	assert.True(t, fillPrice(100, domain.Sell, 10).Equal(decimal.RequireFromString("99.9")))
	assert.True(t, fillPrice(100, domain.Buy, 0).Equal(decimal.NewFromInt(100)))
}

func TestPlaceProtectiveOrders(t *testing.T) {
	exec, _ := newTestExecutor(t, Config{})
	td := trade(domain.Buy, "BTCUSDT", 0.1, 50000)
	td.StopLossPrice = 49000
	td.TakeProfitPrice = 53000

	orders, err := exec.PlaceProtectiveOrders(context.Background(), td, &domain.ExecutionReport{Quantity: 0.1})
	require.NoError(t, err)
	assert.Contains(t, orders.StopLossOrderID, "paper-sl-")
	assert.Contains(t, orders.TakeProfitOrderID, "paper-tp-")
	assert.Equal(t, 49000.0, orders.StopLossPrice)

	_, err = exec.PlaceProtectiveOrders(context.Background(), td, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}
