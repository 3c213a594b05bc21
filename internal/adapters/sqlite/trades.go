package sqlite

import (
	"context"
	"fmt"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"
)

const tradeColumns = `id, bot_id, user_id, symbol, side, quantity, price, pnl, mode, order_id, strategy, confidence, created_at`

// CreateTrade saves a trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.TradeRecord) (int64, error) {
	op := "CreateTrade"
	if trade == nil {
		return 0, fmt.Errorf("%s failed: %w: nil trade", op, ports.ErrInvalidRequest)
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}

	const query = `
	INSERT INTO trades (bot_id, user_id, symbol, side, quantity, price, pnl, mode, order_id, strategy, confidence, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.BotID, trade.UserID, trade.Symbol, string(trade.Side), trade.Quantity, trade.Price, trade.PnL,
		string(trade.Mode), trade.OrderID, string(trade.Strategy), trade.Confidence, trade.CreatedAt)
	if err != nil {
		return 0, updateErr(op, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, updateErr(op, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"tradeID": id, "botID": trade.BotID, "symbol": trade.Symbol, "pnl": trade.PnL})
	return id, nil
}

// FindRecentByBot returns the latest trades of a bot, newest first.
func (r *Repository) FindRecentByBot(ctx context.Context, botID string, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE bot_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	return r.queryTrades(ctx, "FindRecentByBot", query, botID, limit)
}

// FindRecent returns the latest trades across all bots, newest first.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY created_at DESC, id DESC LIMIT ?`
	return r.queryTrades(ctx, "FindRecent", query, limit)
}

func (r *Repository) queryTrades(ctx context.Context, op, query string, args ...interface{}) ([]*domain.TradeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, queryErr(op, err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(op, err)
	}
	return trades, nil
}

func scanTrade(s scanner) (*domain.TradeRecord, error) {
	t := &domain.TradeRecord{}
	var side, mode, strategy string
	err := s.Scan(&t.ID, &t.BotID, &t.UserID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.PnL,
		&mode, &t.OrderID, &strategy, &t.Confidence, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Side = domain.OrderSide(side)
	t.Mode = domain.Mode(mode)
	t.Strategy = domain.StrategyKind(strategy)
	return t, nil
}
