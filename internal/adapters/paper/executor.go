package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultStartingBalance = 10000.0
	DefaultCommissionRate  = 0.001
)

// Config tunes the simulated venue.
type Config struct {
	StartingBalance float64 // Seeded into an account on first use
	CommissionRate  float64 // Charged on every fill's notional
	SlippageBps     float64 // Adverse price move applied to every fill, in basis points
}

// Executor simulates fills against the local ledger. It never reaches an exchange.
type Executor struct {
	mu     sync.Mutex
	ledger ports.LedgerRepository
	logger ports.Logger
	cfg    Config
	now    func() time.Time
}

var (
	_ ports.ExecutionClient = (*Executor)(nil)
	_ ports.AccountProvider = (*Executor)(nil)
)

// NewExecutor creates a paper executor backed by ledger.
func NewExecutor(ledger ports.LedgerRepository, logger ports.Logger, cfg Config) (*Executor, error) {
	if ledger == nil || logger == nil {
		return nil, fmt.Errorf("%w: paper executor needs a ledger and a logger", ports.ErrConfigurationError)
	}
	if cfg.StartingBalance <= 0 {
		cfg.StartingBalance = DefaultStartingBalance
	}
	if cfg.CommissionRate < 0 {
		cfg.CommissionRate = DefaultCommissionRate
	}
	return &Executor{ledger: ledger, logger: logger, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}, nil
}

// GetAccountSnapshot returns the paper account, seeding a never-funded one.
func (e *Executor) GetAccountSnapshot(ctx context.Context, userID string) (*domain.AccountSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(ctx, userID)
}

func (e *Executor) snapshotLocked(ctx context.Context, userID string) (*domain.AccountSnapshot, error) {
	snap, err := e.ledger.GetAccountSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap.Balance == 0 && len(snap.Positions) == 0 {
		if err := e.ledger.UpsertBalance(ctx, userID, e.cfg.StartingBalance); err != nil {
			return nil, err
		}
		snap.Balance = e.cfg.StartingBalance
		e.logger.Info(ctx, "Paper account funded", map[string]interface{}{"userID": userID, "balance": snap.Balance})
	}
	return snap, nil
}

// SubmitOrder fills the trade at its reference price moved by the configured slippage.
func (e *Executor) SubmitOrder(ctx context.Context, trade domain.TradeDetails) (*domain.ExecutionReport, error) {
	return e.fill(ctx, "SubmitOrder", trade)
}

// CloseExposure flattens quantity opened by trade with an opposite fill.
func (e *Executor) CloseExposure(ctx context.Context, trade domain.TradeDetails, quantity float64) (*domain.ExecutionReport, error) {
	closing := trade
	closing.Side = trade.Side.Opposite()
	closing.Quantity = quantity
	return e.fill(ctx, "CloseExposure", closing)
}

// PlaceProtectiveOrders records the stop and target levels. Paper protective
// orders are not triggered by later prices.
func (e *Executor) PlaceProtectiveOrders(ctx context.Context, trade domain.TradeDetails, fill *domain.ExecutionReport) (*domain.ProtectiveOrders, error) {
	if fill == nil {
		return nil, fmt.Errorf("PlaceProtectiveOrders failed: %w: missing fill", ports.ErrInvalidRequest)
	}
	orders := &domain.ProtectiveOrders{
		StopLossPrice:   trade.StopLossPrice,
		TakeProfitPrice: trade.TakeProfitPrice,
	}
	if trade.StopLossPrice > 0 {
		orders.StopLossOrderID = "paper-sl-" + uuid.NewString()
	}
	if trade.TakeProfitPrice > 0 {
		orders.TakeProfitOrderID = "paper-tp-" + uuid.NewString()
	}
	e.logger.Debug(ctx, "Paper protective orders recorded", map[string]interface{}{
		"symbol":     trade.Symbol,
		"stopLoss":   trade.StopLossPrice,
		"takeProfit": trade.TakeProfitPrice,
	})
	return orders, nil
}

func (e *Executor) fill(ctx context.Context, op string, trade domain.TradeDetails) (*domain.ExecutionReport, error) {
	if trade.Quantity <= 0 || trade.Price <= 0 {
		return nil, fmt.Errorf("%s failed: %w: quantity and price must be positive", op, ports.ErrInvalidRequest)
	}
	if trade.Side != domain.Buy && trade.Side != domain.Sell {
		return nil, fmt.Errorf("%s failed: %w: unknown side %q", op, ports.ErrInvalidRequest, trade.Side)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.snapshotLocked(ctx, trade.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	var held domain.PositionExposure
	for _, p := range snap.Positions {
		if p.Symbol == trade.Symbol {
			held = p
		}
	}

	price := fillPrice(trade.Price, trade.Side, e.cfg.SlippageBps)
	res := applyFill(
		decimal.NewFromFloat(snap.Balance),
		decimal.NewFromFloat(held.Quantity),
		decimal.NewFromFloat(held.Price),
		trade.Side,
		decimal.NewFromFloat(trade.Quantity),
		price,
		decimal.NewFromFloat(e.cfg.CommissionRate),
	)
	if res.balance.IsNegative() {
		return nil, fmt.Errorf("%s failed: %w: balance %s cannot cover fill", op, ports.ErrInsufficientFunds, decimal.NewFromFloat(snap.Balance).StringFixed(2))
	}

	if err := e.ledger.UpsertPosition(ctx, trade.UserID, trade.Symbol, res.quantity.InexactFloat64(), res.avgPrice.InexactFloat64()); err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	if err := e.ledger.UpsertBalance(ctx, trade.UserID, res.balance.InexactFloat64()); err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	report := &domain.ExecutionReport{
		OrderID:       "paper-" + uuid.NewString(),
		Symbol:        trade.Symbol,
		Side:          trade.Side,
		Quantity:      trade.Quantity,
		ExecutedPrice: price.InexactFloat64(),
		PnL:           res.realized.InexactFloat64(),
		Mode:          domain.ModePaper,
		Time:          e.now(),
	}
	e.logger.Info(ctx, "Paper trade executed", map[string]interface{}{
		"orderID":  report.OrderID,
		"symbol":   trade.Symbol,
		"side":     trade.Side,
		"quantity": trade.Quantity,
		"price":    report.ExecutedPrice,
		"pnl":      report.PnL,
		"balance":  res.balance.StringFixed(2),
	})
	return report, nil
}

func fillPrice(ref float64, side domain.OrderSide, slippageBps float64) decimal.Decimal {
	p := decimal.NewFromFloat(ref)
	if slippageBps <= 0 {
		return p
	}
	move := p.Mul(decimal.NewFromFloat(slippageBps)).Div(decimal.NewFromInt(10000))
	if side == domain.Buy {
		return p.Add(move)
	}
	return p.Sub(move)
}

type fillResult struct {
	balance  decimal.Decimal
	quantity decimal.Decimal // Signed position after the fill
	avgPrice decimal.Decimal
	realized decimal.Decimal // PnL realized by this fill, net of commission
}

// applyFill updates a signed position. A reducing fill realizes PnL against the
// average price, net of commission, and any part that crosses zero opens a new
// position at price. An opening fill only pays commission.
func applyFill(balance, held, avg decimal.Decimal, side domain.OrderSide, qty, price, commissionRate decimal.Decimal) fillResult {
	signed := qty
	if side == domain.Sell {
		signed = qty.Neg()
	}
	fee := qty.Mul(price).Mul(commissionRate)
	res := fillResult{avgPrice: avg}

	if held.IsZero() || held.Sign() == signed.Sign() {
		total := held.Add(signed)
		res.avgPrice = held.Abs().Mul(avg).Add(qty.Mul(price)).Div(total.Abs())
		res.quantity = total
		res.balance = balance.Sub(fee)
		return res
	}

	closing := decimal.Min(qty, held.Abs())
	pnl := price.Sub(avg).Mul(closing)
	if held.IsNegative() {
		pnl = pnl.Neg()
	}
	res.realized = pnl.Sub(fee)
	res.balance = balance.Add(res.realized)
	res.quantity = held.Add(signed)
	switch {
	case res.quantity.IsZero():
		res.avgPrice = decimal.Zero
	case res.quantity.Sign() != held.Sign():
		res.avgPrice = price
	}
	return res
}
