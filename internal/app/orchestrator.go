package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cryptoDecisionEngine/internal/analytics"
	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"
	"cryptoDecisionEngine/internal/risk"
	"cryptoDecisionEngine/internal/safety"
	"cryptoDecisionEngine/internal/signal"
	"cryptoDecisionEngine/internal/strategy"
)

const orderBookDepth = 20

// CycleAction is the outcome class of one trading cycle.
type CycleAction string

const (
	CycleSkipped CycleAction = "skipped"
	CycleBlocked CycleAction = "blocked"
	CycleHold    CycleAction = "hold"
	CycleBuy     CycleAction = "buy"
	CycleSell    CycleAction = "sell"
	CycleError   CycleAction = "error"
)

// Cycle reasons reported alongside the action.
const (
	ReasonBotInactive      = "bot_inactive"
	ReasonBotNotFound      = "bot_not_found"
	ReasonSafetyValidation = "safety_validation_failed"
	ReasonSizing           = "position_sizing_failed"
	ReasonDataUnavailable  = "data_unavailable"
	ReasonSignalHold       = "signal_hold"
	ReasonTradeExecuted    = "trade_executed"
	ReasonExecutionFailed  = "execution_failed"
	ReasonInternal         = "internal_error"
)

// CycleResult reports what one cycle did.
type CycleResult struct {
	CycleID    string
	Action     CycleAction
	Reason     string
	Error      error
	Signal     *domain.MarketSignal
	Trade      *domain.TradeDetails
	Execution  *domain.ExecutionReport
	Protective *domain.ProtectiveOrders
	Validation *domain.SafetyDecision
	Warnings   []string
}

// Venue is where a bot mode executes and reads its account.
type Venue struct {
	Executor ports.ExecutionClient
	Account  ports.AccountProvider
}

// Deps are the collaborators of the orchestrator. Learner, Publisher and Metrics are optional.
type Deps struct {
	Bots       ports.BotRepository
	Trades     ports.TradeRepository
	MarketData ports.MarketDataProvider
	Venues     map[domain.Mode]Venue
	Gate       *safety.Gate
	Risk       *risk.RiskManager
	Learner    *analytics.Learner
	Publisher  ports.EventPublisher
	Metrics    ports.Metrics
	Logger     ports.Logger
}

// Orchestrator runs the per-bot trading cycle.
type Orchestrator struct {
	bots       ports.BotRepository
	trades     ports.TradeRepository
	marketData ports.MarketDataProvider
	venues     map[domain.Mode]Venue
	gate       *safety.Gate
	risk       *risk.RiskManager
	learner    *analytics.Learner
	publisher  ports.EventPublisher
	metrics    ports.Metrics
	logger     ports.Logger
	now        func() time.Time
}

// NewOrchestrator validates deps and builds an Orchestrator.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required for orchestrator")
	case deps.Bots == nil || deps.Trades == nil:
		return nil, fmt.Errorf("bot and trade repositories are required for orchestrator")
	case deps.MarketData == nil:
		return nil, fmt.Errorf("market data provider is required for orchestrator")
	case deps.Gate == nil || deps.Risk == nil:
		return nil, fmt.Errorf("safety gate and risk manager are required for orchestrator")
	case len(deps.Venues) == 0:
		return nil, fmt.Errorf("at least one execution venue is required for orchestrator")
	}
	for mode, v := range deps.Venues {
		if v.Executor == nil || v.Account == nil {
			return nil, fmt.Errorf("venue %q needs an executor and an account provider", mode)
		}
	}
	o := &Orchestrator{
		bots:       deps.Bots,
		trades:     deps.Trades,
		marketData: deps.MarketData,
		venues:     deps.Venues,
		gate:       deps.Gate,
		risk:       deps.Risk,
		learner:    deps.Learner,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        time.Now,
	}
	if o.publisher == nil {
		o.publisher = ports.NopPublisher{}
	}
	if o.metrics == nil {
		o.metrics = ports.NopMetrics{}
	}
	return o, nil
}

// ExecuteCycle runs one decision cycle for botID. Every failure, including a panic,
// is reported in the result; nothing escapes.
func (o *Orchestrator) ExecuteCycle(ctx context.Context, botID string, source strategy.Source) (res CycleResult) {
	op := "ExecuteCycle"
	cycleID := uuid.NewString()
	started := o.now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s failed: %w: panic: %v", op, ports.ErrInternal, r)
			o.logger.Error(ctx, err, op+": recovered from panic", map[string]interface{}{"botID": botID, "cycleID": cycleID})
			res = CycleResult{Action: CycleError, Reason: ReasonInternal, Error: err}
		}
		res.CycleID = cycleID
		o.metrics.ObserveCycle(botID, string(res.Action), o.now().Sub(started))
	}()

	bot, err := o.bots.FindBotByID(ctx, botID)
	if err != nil {
		return o.fail(ctx, op, botID, ReasonInternal, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInternal, err))
	}
	if bot == nil {
		return CycleResult{Action: CycleSkipped, Reason: ReasonBotNotFound}
	}
	if !bot.IsActive() {
		return CycleResult{Action: CycleSkipped, Reason: ReasonBotInactive}
	}

	venue, ok := o.venues[bot.Mode]
	if !ok {
		return o.fail(ctx, op, botID, ReasonInternal,
			fmt.Errorf("%s failed: %w: no execution venue for mode %q", op, ports.ErrConfigurationError, bot.Mode))
	}

	account, err := venue.Account.GetAccountSnapshot(ctx, bot.UserID)
	if err != nil {
		return o.fail(ctx, op, botID, ReasonDataUnavailable, fmt.Errorf("%s failed: %w: %w", op, ports.ErrDataUnavailable, err))
	}

	preflight := o.gate.Preflight(ctx, *account)
	if !preflight.Allowed {
		return o.blocked(ctx, botID, preflight, nil)
	}

	candles, err := o.marketData.FetchCandles(ctx, bot.Symbol, bot.Config.Timeframe, bot.Config.CandleLimit)
	if err != nil {
		return o.fail(ctx, op, botID, ReasonDataUnavailable, fmt.Errorf("%s failed: %w: %w", op, ports.ErrDataUnavailable, err))
	}
	if len(candles) == 0 {
		return o.fail(ctx, op, botID, ReasonDataUnavailable,
			fmt.Errorf("%s failed: %w: no candles for %s %s", op, ports.ErrDataUnavailable, bot.Symbol, bot.Config.Timeframe))
	}
	book, err := o.marketData.FetchOrderBook(ctx, bot.Symbol, orderBookDepth)
	if err != nil {
		o.logger.Warn(ctx, op+": order book unavailable, order flow uses defaults", map[string]interface{}{
			"botID":  botID,
			"symbol": bot.Symbol,
			"error":  err.Error(),
		})
		book = nil
	}

	sig, err := source.Evaluate(ctx, strategy.Input{Symbol: bot.Symbol, Candles: candles, OrderBook: book})
	if err != nil {
		return o.fail(ctx, op, botID, ReasonInternal, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInternal, err))
	}
	res.Signal = &sig
	if sig.IsHold() {
		o.logger.Debug(ctx, op+": holding", map[string]interface{}{
			"botID":      botID,
			"symbol":     bot.Symbol,
			"confidence": sig.Confidence,
		})
		res.Action, res.Reason = CycleHold, ReasonSignalHold
		return res
	}
	side, _ := sig.Action.Side()

	conditions := signal.Conditions(candles, book)
	profile := o.risk.CalculateRiskProfile(conditions)
	price := candles[len(candles)-1].Close

	trade := domain.TradeDetails{
		BotID:      bot.ID,
		UserID:     bot.UserID,
		Symbol:     bot.Symbol,
		Side:       side,
		Price:      price,
		Strategy:   source.Kind(),
		Mode:       bot.Mode,
		Confidence: sig.Confidence,
	}
	trade.StopLossPrice, trade.TakeProfitPrice = protectivePrices(side, price, profile)

	quantity := bot.Config.FixedQuantity
	if quantity <= 0 {
		quantity, err = o.risk.PositionSize(bot.Config.SizingMethod, risk.SizingInput{
			Balance:         account.Balance,
			Price:           price,
			StopLossPrice:   trade.StopLossPrice,
			Volatility:      conditions.Volatility,
			MaxPositionSize: profile.MaxPositionSize,
			RiskPerTrade:    profile.RiskPerTrade,
		})
		if err != nil || quantity <= 0 {
			if err == nil {
				err = fmt.Errorf("sizing method %s produced no quantity", bot.Config.SizingMethod)
			}
			res.Action, res.Reason = CycleBlocked, ReasonSizing
			res.Error = fmt.Errorf("%s failed: %w: %w", op, ports.ErrValidationBlocked, err)
			o.logger.Warn(ctx, op+": position sizing failed", map[string]interface{}{"botID": botID, "error": err.Error()})
			return res
		}
	}
	// A fixed quantity larger than the profile allows is reduced, not rejected.
	if limit := profile.MaxPositionSize * account.Balance; limit > 0 && quantity*price > limit {
		reduced := limit / price
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"position size reduced from %.6f to %.6f to fit the risk profile", quantity, reduced))
		o.logger.Warn(ctx, op+": quantity reduced to risk profile cap", map[string]interface{}{
			"botID":    botID,
			"original": quantity,
			"reduced":  reduced,
		})
		quantity = reduced
	}
	trade.Quantity = quantity
	res.Trade = &trade

	if err := o.risk.ValidateTrade(trade, account.Balance, profile); err != nil {
		decision := domain.SafetyDecision{Allowed: false, Reason: err.Error()}
		return o.blocked(ctx, botID, decision, &res)
	}
	decision := o.gate.ValidateTrade(ctx, domain.TradeRequest{
		Symbol:   trade.Symbol,
		Side:     trade.Side,
		Quantity: trade.Quantity,
		Price:    trade.Price,
	}, *account)
	if !decision.Allowed {
		return o.blocked(ctx, botID, decision, &res)
	}
	res.Validation = &decision
	res.Warnings = append(res.Warnings, decision.Warnings...)
	trade.Quantity = decision.Quantity

	o.logger.Info(ctx, op+": executing trade", map[string]interface{}{
		"botID":      botID,
		"symbol":     trade.Symbol,
		"side":       string(trade.Side),
		"quantity":   trade.Quantity,
		"price":      trade.Price,
		"mode":       string(trade.Mode),
		"confidence": trade.Confidence,
	})
	fill, err := venue.Executor.SubmitOrder(ctx, trade)
	if err != nil {
		return o.fail(ctx, op, botID, ReasonExecutionFailed, fmt.Errorf("%s failed: %w: %w", op, ports.ErrExecutionFailed, err), &res)
	}
	res.Execution = fill

	if slip := o.gate.CheckSlippage(trade.Price, fill.ExecutedPrice, trade.Side); !slip.Acceptable {
		res.Warnings = append(res.Warnings, slip.Reason)
		o.logger.Warn(ctx, op+": excessive slippage", map[string]interface{}{
			"botID":       botID,
			"expected":    trade.Price,
			"executed":    fill.ExecutedPrice,
			"slippagePct": slip.SlippagePct,
		})
	}

	balance := account.Balance + fill.PnL
	o.record(ctx, trade, fill, balance, &res)

	if o.learner != nil {
		if _, err := o.learner.Learn(ctx, bot.ID, balance); err != nil {
			o.logger.Warn(ctx, op+": adaptive learning skipped", map[string]interface{}{"botID": botID, "error": err.Error()})
		}
	}

	if !bot.Config.SkipProtectiveOrders {
		o.protect(ctx, venue, trade, fill, &res)
	}

	res.Action, res.Reason = tradedAction(trade.Side), ReasonTradeExecuted
	return res
}

// tradedAction tags a cycle that placed an order with the side it traded.
func tradedAction(side domain.OrderSide) CycleAction {
	if side == domain.Sell {
		return CycleSell
	}
	return CycleBuy
}

// protectivePrices places the stop below and the target above a buy, mirrored for a sell.
func protectivePrices(side domain.OrderSide, price float64, profile domain.RiskProfile) (stop, target float64) {
	if side == domain.Buy {
		return price * (1 - profile.StopLossPct), price * (1 + profile.TakeProfitPct)
	}
	return price * (1 + profile.StopLossPct), price * (1 - profile.TakeProfitPct)
}

// record persists the fill and feeds it to the gate, the risk history and subscribers.
// Failures here are warnings: the order is already on the venue.
func (o *Orchestrator) record(ctx context.Context, trade domain.TradeDetails, fill *domain.ExecutionReport, balance float64, res *CycleResult) {
	op := "recordResult"
	record := domain.TradeRecord{
		BotID:      trade.BotID,
		UserID:     trade.UserID,
		Symbol:     fill.Symbol,
		Side:       fill.Side,
		Quantity:   fill.Quantity,
		Price:      fill.ExecutedPrice,
		PnL:        fill.PnL,
		Mode:       fill.Mode,
		OrderID:    fill.OrderID,
		Strategy:   trade.Strategy,
		Confidence: trade.Confidence,
		CreatedAt:  fill.Time,
	}
	if _, err := o.trades.CreateTrade(ctx, &record); err != nil {
		o.logger.Error(ctx, err, op+": failed to save trade", map[string]interface{}{"botID": trade.BotID, "orderID": fill.OrderID})
		res.Warnings = append(res.Warnings, "trade record not persisted: "+err.Error())
	}

	o.gate.RecordTradeResult(ctx, domain.TradeOutcome{
		Symbol:   fill.Symbol,
		Side:     fill.Side,
		Quantity: fill.Quantity,
		Price:    fill.ExecutedPrice,
		PnL:      fill.PnL,
		Time:     fill.Time,
	}, balance)
	o.risk.RecordTrade(record)
	o.metrics.IncTrades(fill.Symbol, fill.Side, fill.Mode)

	event := domain.Event{
		ID:     uuid.NewString(),
		Type:   domain.EventTradeExecuted,
		BotID:  trade.BotID,
		Symbol: fill.Symbol,
		Payload: map[string]interface{}{
			"order_id":   fill.OrderID,
			"side":       string(fill.Side),
			"quantity":   fill.Quantity,
			"price":      fill.ExecutedPrice,
			"pnl":        fill.PnL,
			"mode":       string(fill.Mode),
			"strategy":   string(trade.Strategy),
			"confidence": trade.Confidence,
		},
		Time: o.now().UTC(),
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Error(ctx, err, op+": failed to publish trade event", map[string]interface{}{"botID": trade.BotID})
	}
}

// protect places stop-loss and take-profit orders. On the real venue a fill left
// without a stop is flattened immediately.
func (o *Orchestrator) protect(ctx context.Context, venue Venue, trade domain.TradeDetails, fill *domain.ExecutionReport, res *CycleResult) {
	op := "protect"
	orders, err := venue.Executor.PlaceProtectiveOrders(ctx, trade, fill)
	res.Protective = orders
	if err == nil {
		return
	}
	res.Warnings = append(res.Warnings, "protective orders incomplete: "+err.Error())
	stopPlaced := orders != nil && orders.StopLossOrderID != ""
	if stopPlaced || trade.Mode != domain.ModeReal {
		o.logger.Warn(ctx, op+": protective orders incomplete", map[string]interface{}{"botID": trade.BotID, "error": err.Error()})
		return
	}

	o.logger.Error(ctx, err, op+": stop loss placement failed, closing exposure", map[string]interface{}{
		"botID":    trade.BotID,
		"symbol":   trade.Symbol,
		"quantity": fill.Quantity,
	})
	if _, closeErr := venue.Executor.CloseExposure(ctx, trade, fill.Quantity); closeErr != nil {
		o.logger.Error(ctx, closeErr, op+": EMERGENCY CLOSE FAILED", map[string]interface{}{"botID": trade.BotID})
		res.Warnings = append(res.Warnings, "emergency close failed: "+closeErr.Error())
		return
	}
	res.Warnings = append(res.Warnings, "position closed after stop loss placement failure")
}

func (o *Orchestrator) blocked(ctx context.Context, botID string, decision domain.SafetyDecision, partial *CycleResult) CycleResult {
	var res CycleResult
	if partial != nil {
		res = *partial
	}
	sentinel := ports.ErrValidationBlocked
	if o.gate.Status().State.KillSwitchActive {
		sentinel = ports.ErrSafetyTripped
	}
	res.Action, res.Reason = CycleBlocked, ReasonSafetyValidation
	res.Validation = &decision
	res.Error = fmt.Errorf("%w: %s", sentinel, decision.Reason)
	o.logger.Warn(ctx, "Cycle blocked by safety validation", map[string]interface{}{
		"botID":  botID,
		"reason": decision.Reason,
	})
	return res
}

func (o *Orchestrator) fail(ctx context.Context, op, botID, reason string, err error, partial ...*CycleResult) CycleResult {
	var res CycleResult
	if len(partial) > 0 && partial[0] != nil {
		res = *partial[0]
	}
	res.Action, res.Reason, res.Error = CycleError, reason, err
	fields := map[string]interface{}{"botID": botID, "reason": reason}
	if errors.Is(err, ports.ErrDataUnavailable) {
		o.logger.Warn(ctx, op+": market data unavailable", fields)
		return res
	}
	o.logger.Error(ctx, err, op+": cycle failed", fields)
	return res
}
