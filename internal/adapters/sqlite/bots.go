package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"
)

const botColumns = `id, user_id, name, symbol, strategy, mode, status, config`

// SaveBot inserts or replaces a bot definition.
func (r *Repository) SaveBot(ctx context.Context, bot *domain.BotContext) error {
	op := "SaveBot"
	if bot == nil || bot.ID == "" {
		return fmt.Errorf("%s failed: %w: bot id is required", op, ports.ErrInvalidRequest)
	}
	cfg, err := json.Marshal(bot.Config)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}

	const query = `
	INSERT INTO bots (id, user_id, name, symbol, strategy, mode, status, config, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id, name = excluded.name, symbol = excluded.symbol,
		strategy = excluded.strategy, mode = excluded.mode, status = excluded.status,
		config = excluded.config, updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		bot.ID, bot.UserID, bot.Name, bot.Symbol, string(bot.Strategy), string(bot.Mode),
		string(bot.Status), string(cfg), time.Now().UTC())
	if err != nil {
		return updateErr(op, err)
	}
	r.logger.Debug(ctx, "Bot saved", map[string]interface{}{"botID": bot.ID, "status": bot.Status})
	return nil
}

// FindBotByID returns nil, nil when the bot does not exist.
func (r *Repository) FindBotByID(ctx context.Context, id string) (*domain.BotContext, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE id = ?`

	bot, err := scanBot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, queryErr("FindBotByID", err)
	}
	return bot, nil
}

// FindActiveBots returns every bot with active status ordered by id.
func (r *Repository) FindActiveBots(ctx context.Context) ([]*domain.BotContext, error) {
	op := "FindActiveBots"
	query := `SELECT ` + botColumns + ` FROM bots WHERE status = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, string(domain.BotActive))
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer rows.Close()

	bots := make([]*domain.BotContext, 0)
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, queryErr(op, err)
		}
		bots = append(bots, bot)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(op, err)
	}
	return bots, nil
}

// SetBotStatus changes a bot's lifecycle status.
func (r *Repository) SetBotStatus(ctx context.Context, id string, status domain.BotStatus) error {
	op := "SetBotStatus"
	const query = `UPDATE bots SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return updateErr(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return updateErr(op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s failed: bot %s: %w", op, id, ports.ErrNotFound)
	}
	r.logger.Info(ctx, "Bot status changed", map[string]interface{}{"botID": id, "status": status})
	return nil
}

func scanBot(s scanner) (*domain.BotContext, error) {
	b := &domain.BotContext{}
	var strategy, mode, status, cfg string
	if err := s.Scan(&b.ID, &b.UserID, &b.Name, &b.Symbol, &strategy, &mode, &status, &cfg); err != nil {
		return nil, err
	}
	b.Strategy = domain.StrategyKind(strategy)
	b.Mode = domain.Mode(mode)
	b.Status = domain.BotStatus(status)
	if err := json.Unmarshal([]byte(cfg), &b.Config); err != nil {
		return nil, fmt.Errorf("decode config of bot %s: %w", b.ID, err)
	}
	return b, nil
}
