// Package safety enforces account-level trading rules and owns the kill switch.
package safety

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const dayLayout = "2006-01-02"

var (
	// ErrResetNotAllowed is returned when the kill switch is reset on the same UTC day without an override.
	ErrResetNotAllowed = errors.New("kill switch can only be reset on a new day or with admin override")
	// ErrInvalidConfig is returned when a safety configuration fails validation.
	ErrInvalidConfig = errors.New("invalid safety configuration")
)

// DefaultConfig returns the safety configuration populated from struct defaults.
func DefaultConfig() domain.SafetyConfig {
	var cfg domain.SafetyConfig
	_ = defaults.Set(&cfg)
	return cfg
}

// Gate validates trades against the safety rules. All methods are safe for concurrent use.
type Gate struct {
	mu        sync.Mutex
	config    domain.SafetyConfig
	state     domain.SafetyState
	logger    ports.Logger
	store     ports.SafetyStateStore
	publisher ports.EventPublisher
	metrics   ports.Metrics
	validate  *validator.Validate
	now       func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithStateStore shares the gate state through store. Every operation starts
// from the stored state and writes its changes back atomically.
func WithStateStore(store ports.SafetyStateStore) Option {
	return func(g *Gate) { g.store = store }
}

// WithPublisher emits kill switch events to p.
func WithPublisher(p ports.EventPublisher) Option {
	return func(g *Gate) { g.publisher = p }
}

// WithMetrics reports kill switch and daily PnL gauges to m.
func WithMetrics(m ports.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a Gate with a validated configuration.
func NewGate(cfg domain.SafetyConfig, logger ports.Logger, opts ...Option) (*Gate, error) {
	g := &Gate{
		config:    cfg,
		logger:    logger,
		publisher: ports.NopPublisher{},
		metrics:   ports.NopMetrics{},
		validate:  validator.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	g.state.LastResetDate = g.today()
	return g, nil
}

func (g *Gate) today() string {
	return g.now().UTC().Format(dayLayout)
}

// Restore loads persisted state. A day change since the save is applied immediately.
func (g *Gate) Restore(ctx context.Context) error {
	op := "Restore"
	if g.store == nil {
		return nil
	}
	state, err := g.store.LoadSafetyState(ctx)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrStateStore, err)
	}
	if state == nil {
		g.logger.Info(ctx, op+": no persisted safety state found")
		return nil
	}

	g.mu.Lock()
	g.state = *state
	g.rolloverLocked(ctx)
	active := g.state.KillSwitchActive
	g.mu.Unlock()

	g.metrics.SetKillSwitch(active)
	g.logger.Info(ctx, op+": safety state restored", map[string]interface{}{
		"kill_switch_active": active,
		"last_reset_date":    state.LastResetDate,
	})
	return nil
}

// rolloverLocked clears the daily counters and the kill switch on a new UTC day.
func (g *Gate) rolloverLocked(ctx context.Context) bool {
	today := g.today()
	if g.state.LastResetDate == today {
		return false
	}
	g.logger.Info(ctx, "Daily safety reset", map[string]interface{}{
		"daily_pnl":          g.state.DailyPnL,
		"trades":             len(g.state.TradesToday),
		"consecutive_losses": g.state.ConsecutiveLosses,
	})
	if g.state.KillSwitchActive {
		g.logger.Warn(ctx, "Kill switch auto-reset on new day", map[string]interface{}{
			"previous_reason": g.state.KillSwitchReason,
		})
	}
	g.state.DailyPnL = 0
	g.state.TradesToday = nil
	g.state.ConsecutiveLosses = 0
	g.state.KillSwitchActive = false
	g.state.KillSwitchReason = ""
	g.state.KillSwitchActivatedAt = nil
	g.state.LastResetDate = today
	return true
}

// transact runs fn under the gate lock. With a store, fn starts from the stored
// state and a changed state is written back atomically; fn may run again when
// another process wrote in between. When the store is unavailable fn runs on the
// local state. fn reports whether it changed the state and the reason of a new trip.
func (g *Gate) transact(ctx context.Context, fn func() (bool, string)) (domain.SafetyState, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.store == nil {
		_, tripped := fn()
		return g.snapshotLocked(), tripped
	}

	base := g.snapshotLocked()
	var tripped string
	err := g.store.UpdateSafetyState(ctx, func(current *domain.SafetyState) (*domain.SafetyState, error) {
		if current != nil {
			g.state = cloneState(*current)
		} else {
			g.state = cloneState(base)
		}
		var changed bool
		changed, tripped = fn()
		if !changed {
			return nil, nil
		}
		next := g.snapshotLocked()
		return &next, nil
	})
	if err != nil {
		g.logger.Error(ctx, err, "Shared safety state unavailable, using local state")
		g.state = cloneState(base)
		_, tripped = fn()
	}
	return g.snapshotLocked(), tripped
}

// Preflight runs the blockers checked at the start of every cycle.
func (g *Gate) Preflight(ctx context.Context, account domain.AccountSnapshot) domain.SafetyDecision {
	var decision domain.SafetyDecision
	snap, tripped := g.transact(ctx, func() (bool, string) {
		changed := g.rolloverLocked(ctx)
		var tripped string
		decision, tripped = g.blockersLocked(account.Balance)
		return changed || tripped != "", tripped
	})

	g.afterChange(ctx, snap, tripped)
	return decision
}

// blockersLocked checks kill switch, balance floor, daily loss and loss streak.
// It returns the reason for a new trip, if any.
func (g *Gate) blockersLocked(balance float64) (domain.SafetyDecision, string) {
	if g.state.KillSwitchActive {
		return reject("kill switch active: " + g.state.KillSwitchReason), ""
	}
	if balance < g.config.MinAccountBalance {
		return reject(fmt.Sprintf("account balance $%.2f below minimum $%.2f", balance, g.config.MinAccountBalance)), ""
	}
	if g.state.DailyPnL < 0 && balance > 0 {
		lossPct := -g.state.DailyPnL / balance
		if lossPct >= g.config.DailyLossLimitPct {
			reason := fmt.Sprintf("daily loss limit reached: %.2f%% (limit: %.2f%%)", lossPct*100, g.config.DailyLossLimitPct*100)
			g.tripLocked(reason)
			return reject(reason), reason
		}
	}
	if g.state.ConsecutiveLosses >= g.config.MaxConsecutiveLosses {
		reason := fmt.Sprintf("consecutive loss limit reached: %d losses", g.state.ConsecutiveLosses)
		g.tripLocked(reason)
		return reject(reason), reason
	}
	return domain.SafetyDecision{Allowed: true}, ""
}

func reject(reason string) domain.SafetyDecision {
	return domain.SafetyDecision{Allowed: false, Reason: reason}
}

// ValidateTrade runs every safety rule against a proposed trade. An oversized
// trade is reduced to the size cap rather than rejected.
func (g *Gate) ValidateTrade(ctx context.Context, req domain.TradeRequest, account domain.AccountSnapshot) domain.SafetyDecision {
	op := "ValidateTrade"
	var decision domain.SafetyDecision
	snap, tripped := g.transact(ctx, func() (bool, string) {
		changed := g.rolloverLocked(ctx)
		var tripped string
		decision, tripped = g.validateLocked(ctx, req, account)
		return changed || tripped != "", tripped
	})

	g.afterChange(ctx, snap, tripped)
	if !decision.Allowed {
		g.logger.Warn(ctx, op+": trade rejected", map[string]interface{}{
			"symbol": req.Symbol,
			"reason": decision.Reason,
		})
	}
	return decision
}

func (g *Gate) validateLocked(ctx context.Context, req domain.TradeRequest, account domain.AccountSnapshot) (domain.SafetyDecision, string) {
	if req.Quantity <= 0 || req.Price <= 0 {
		return reject(fmt.Sprintf("invalid trade: quantity %f, price %f", req.Quantity, req.Price)), ""
	}
	if g.state.KillSwitchActive {
		return reject("kill switch active: " + g.state.KillSwitchReason), ""
	}
	balance := account.Balance
	if balance < g.config.MinAccountBalance || balance <= 0 {
		return reject(fmt.Sprintf("account balance $%.2f below minimum $%.2f", balance, g.config.MinAccountBalance)), ""
	}

	decision := domain.SafetyDecision{Allowed: true, Quantity: req.Quantity}
	maxValue := balance * g.config.MaxPositionSizePct
	if req.Quantity*req.Price > maxValue {
		adjusted := maxValue / req.Price
		decision.Warnings = append(decision.Warnings, fmt.Sprintf(
			"position size reduced from %.6f to %.6f to stay within %.1f%% of balance",
			req.Quantity, adjusted, g.config.MaxPositionSizePct*100))
		decision.Quantity = adjusted
		decision.Adjusted = true
		g.logger.Warn(ctx, "Position size adjusted to stay within limits", map[string]interface{}{
			"symbol":            req.Symbol,
			"original_quantity": req.Quantity,
			"adjusted_quantity": adjusted,
		})
	}

	if blocked, tripped := g.blockersLocked(balance); !blocked.Allowed {
		return blocked, tripped
	}

	var exposure float64
	for _, p := range account.Positions {
		exposure += p.Value()
	}
	heat := (exposure + decision.Quantity*req.Price) / balance
	if heat > g.config.MaxPortfolioHeat {
		return reject(fmt.Sprintf("portfolio heat too high: %.2f%% (max: %.2f%%)", heat*100, g.config.MaxPortfolioHeat*100)), ""
	}

	decision.Reason = "trade validation passed"
	if decision.Adjusted {
		decision.Reason = "position size adjusted to stay within limits"
	}
	return decision, ""
}

// RecordTradeResult updates the daily counters with a fill and trips the kill
// switch when a limit is reached. Only realized PnL moves the losing streak: a
// loss extends it, a win resets it and a fill that realizes nothing leaves it as
// is. A zero balance falls back to the last known one.
func (g *Gate) RecordTradeResult(ctx context.Context, outcome domain.TradeOutcome, balance float64) {
	if outcome.Time.IsZero() {
		outcome.Time = g.now().UTC()
	}
	snap, tripped := g.transact(ctx, func() (bool, string) {
		g.rolloverLocked(ctx)
		g.state.TradesToday = append(g.state.TradesToday, outcome)
		g.state.DailyPnL += outcome.PnL
		switch {
		case outcome.PnL < 0:
			g.state.ConsecutiveLosses++
		case outcome.PnL > 0:
			g.state.ConsecutiveLosses = 0
		}
		if balance > 0 {
			g.state.LastKnownBalance = balance
		}
		known := g.state.LastKnownBalance

		var tripped string
		if !g.state.KillSwitchActive {
			switch {
			case g.state.DailyPnL < 0 && known > 0 && -g.state.DailyPnL/known >= g.config.DailyLossLimitPct:
				tripped = fmt.Sprintf("daily loss limit reached: %.2f%% (limit: %.2f%%)",
					-g.state.DailyPnL/known*100, g.config.DailyLossLimitPct*100)
			case g.state.ConsecutiveLosses >= g.config.MaxConsecutiveLosses:
				tripped = fmt.Sprintf("too many consecutive losses: %d", g.state.ConsecutiveLosses)
			}
			if tripped != "" {
				g.tripLocked(tripped)
			}
		}
		return true, tripped
	})

	g.logger.Info(ctx, "Trade result recorded", map[string]interface{}{
		"symbol":             outcome.Symbol,
		"pnl":                outcome.PnL,
		"daily_pnl":          snap.DailyPnL,
		"consecutive_losses": snap.ConsecutiveLosses,
		"trades_today":       len(snap.TradesToday),
	})
	g.afterChange(ctx, snap, tripped)
}

// ActivateKillSwitch halts all trading until reset.
func (g *Gate) ActivateKillSwitch(ctx context.Context, reason string) {
	snap, _ := g.transact(ctx, func() (bool, string) {
		g.tripLocked(reason)
		return true, reason
	})

	g.afterChange(ctx, snap, reason)
}

func (g *Gate) tripLocked(reason string) {
	now := g.now().UTC()
	g.state.KillSwitchActive = true
	g.state.KillSwitchReason = reason
	g.state.KillSwitchActivatedAt = &now
}

// ResetKillSwitch clears the kill switch. Without adminOverride it only succeeds
// once the UTC day has rolled over. An admin override also clears the losing
// streak and the day's PnL, so neither trips the switch again on the next check;
// the day's trades stay recorded.
func (g *Gate) ResetKillSwitch(ctx context.Context, adminOverride bool) error {
	var previous string
	var notAllowed bool
	g.transact(ctx, func() (bool, string) {
		previous = g.state.KillSwitchReason
		rolled := g.rolloverLocked(ctx)
		notAllowed = !adminOverride && !rolled
		if notAllowed {
			return false, ""
		}
		g.state.KillSwitchActive = false
		g.state.KillSwitchReason = ""
		g.state.KillSwitchActivatedAt = nil
		if adminOverride {
			g.state.ConsecutiveLosses = 0
			g.state.DailyPnL = 0
		}
		return true, ""
	})
	if notAllowed {
		return ErrResetNotAllowed
	}

	resetType := "new_day"
	if adminOverride {
		resetType = "admin_override"
	}
	g.logger.Warn(ctx, "Kill switch reset", map[string]interface{}{
		"reset_type":      resetType,
		"previous_reason": previous,
	})
	g.metrics.SetKillSwitch(false)
	g.metrics.SetDailyPnL(0)
	g.publish(ctx, domain.EventKillSwitchReset, map[string]interface{}{
		"reset_type":      resetType,
		"previous_reason": previous,
	})
	return nil
}

// SlippageCheck is the result of CheckSlippage.
type SlippageCheck struct {
	Acceptable  bool
	SlippagePct float64 // Positive when the fill is worse than expected
	Reason      string
}

// CheckSlippage compares a fill against the expected price. Fills better than
// expected are always acceptable.
func (g *Gate) CheckSlippage(expected, actual float64, side domain.OrderSide) SlippageCheck {
	g.mu.Lock()
	limit := g.config.MaxSlippagePct
	g.mu.Unlock()

	if expected <= 0 {
		return SlippageCheck{Acceptable: true, Reason: "acceptable"}
	}
	slippage := (actual - expected) / expected
	if side == domain.Sell {
		slippage = -slippage
	}
	if slippage > limit {
		return SlippageCheck{
			SlippagePct: slippage,
			Reason:      fmt.Sprintf("slippage %.2f%% exceeds max %.2f%%", slippage*100, limit*100),
		}
	}
	return SlippageCheck{Acceptable: true, SlippagePct: slippage, Reason: "acceptable"}
}

// UpdateConfig applies a partial update. An invalid result leaves the configuration unchanged.
func (g *Gate) UpdateConfig(ctx context.Context, upd domain.SafetyConfigUpdate) (domain.SafetyConfig, error) {
	g.mu.Lock()
	next := g.config
	var updated []string
	if upd.MaxPositionSizePct != nil {
		next.MaxPositionSizePct = *upd.MaxPositionSizePct
		updated = append(updated, "max_position_size_pct")
	}
	if upd.DailyLossLimitPct != nil {
		next.DailyLossLimitPct = *upd.DailyLossLimitPct
		updated = append(updated, "daily_loss_limit_pct")
	}
	if upd.MaxConsecutiveLosses != nil {
		next.MaxConsecutiveLosses = *upd.MaxConsecutiveLosses
		updated = append(updated, "max_consecutive_losses")
	}
	if upd.MinAccountBalance != nil {
		next.MinAccountBalance = *upd.MinAccountBalance
		updated = append(updated, "min_account_balance")
	}
	if upd.MaxSlippagePct != nil {
		next.MaxSlippagePct = *upd.MaxSlippagePct
		updated = append(updated, "max_slippage_pct")
	}
	if upd.MaxPortfolioHeat != nil {
		next.MaxPortfolioHeat = *upd.MaxPortfolioHeat
		updated = append(updated, "max_portfolio_heat")
	}
	if err := g.validate.Struct(next); err != nil {
		current := g.config
		g.mu.Unlock()
		return current, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	g.config = next
	g.mu.Unlock()

	g.logger.Info(ctx, "Safety configuration updated", map[string]interface{}{
		"updated_fields": updated,
	})
	return next, nil
}

// Status returns a snapshot of configuration and state. With a store the state
// is the one read by the gate's latest operation.
func (g *Gate) Status() domain.SafetyStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.SafetyStatus{
		Config:         g.config,
		State:          g.snapshotLocked(),
		TradingAllowed: !g.state.KillSwitchActive,
	}
}

// ConsecutiveLosses returns the current losing streak.
func (g *Gate) ConsecutiveLosses() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.ConsecutiveLosses
}

func (g *Gate) snapshotLocked() domain.SafetyState {
	return cloneState(g.state)
}

// cloneState copies s without sharing its slice or time pointer.
func cloneState(s domain.SafetyState) domain.SafetyState {
	out := s
	out.TradesToday = append([]domain.TradeOutcome(nil), s.TradesToday...)
	if s.KillSwitchActivatedAt != nil {
		at := *s.KillSwitchActivatedAt
		out.KillSwitchActivatedAt = &at
	}
	return out
}

// afterChange reports gauges and a new trip. It runs without the lock held.
func (g *Gate) afterChange(ctx context.Context, snap domain.SafetyState, tripped string) {
	g.metrics.SetDailyPnL(snap.DailyPnL)
	if tripped == "" {
		return
	}
	g.logger.Error(ctx, errors.New(tripped), "KILL SWITCH ACTIVATED", map[string]interface{}{
		"daily_pnl":          snap.DailyPnL,
		"consecutive_losses": snap.ConsecutiveLosses,
	})
	g.metrics.SetKillSwitch(true)
	g.publish(ctx, domain.EventKillSwitchOn, map[string]interface{}{
		"reason":             tripped,
		"daily_pnl":          snap.DailyPnL,
		"consecutive_losses": snap.ConsecutiveLosses,
	})
}

func (g *Gate) publish(ctx context.Context, typ domain.EventType, payload map[string]interface{}) {
	event := domain.Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Payload: payload,
		Time:    g.now().UTC(),
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.logger.Error(ctx, err, "Failed to publish safety event", map[string]interface{}{
			"event_type": string(typ),
		})
	}
}
