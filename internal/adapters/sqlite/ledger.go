package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/shopspring/decimal"
)

// Paper balances and positions are stored as decimal strings.

// GetAccountSnapshot returns the paper balance and open positions of a user.
// An unknown user yields a zero snapshot.
func (r *Repository) GetAccountSnapshot(ctx context.Context, userID string) (*domain.AccountSnapshot, error) {
	op := "GetAccountSnapshot"
	snapshot := &domain.AccountSnapshot{Positions: []domain.PositionExposure{}}

	var balance string
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM paper_accounts WHERE user_id = ?`, userID).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, queryErr(op, err)
	default:
		d, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, queryErr(op, err)
		}
		snapshot.Balance = d.InexactFloat64()
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT symbol, quantity, avg_price FROM paper_positions WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol, qty, price string
		if err := rows.Scan(&symbol, &qty, &price); err != nil {
			return nil, queryErr(op, err)
		}
		q, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, queryErr(op, err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, queryErr(op, err)
		}
		snapshot.Positions = append(snapshot.Positions, domain.PositionExposure{
			Symbol:   symbol,
			Quantity: q.InexactFloat64(),
			Price:    p.InexactFloat64(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(op, err)
	}
	return snapshot, nil
}

// UpsertBalance sets the cash balance of a user.
func (r *Repository) UpsertBalance(ctx context.Context, userID string, balance float64) error {
	const query = `
	INSERT INTO paper_accounts (user_id, balance, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, userID, decimal.NewFromFloat(balance).String(), time.Now().UTC()); err != nil {
		return updateErr("UpsertBalance", err)
	}
	return nil
}

// UpsertPosition sets the signed quantity and average price of a position.
// A zero quantity removes the position.
func (r *Repository) UpsertPosition(ctx context.Context, userID, symbol string, quantity, avgPrice float64) error {
	op := "UpsertPosition"
	if symbol == "" {
		return fmt.Errorf("%s failed: %w: symbol is required", op, ports.ErrInvalidRequest)
	}
	if decimal.NewFromFloat(quantity).IsZero() {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM paper_positions WHERE user_id = ? AND symbol = ?`, userID, symbol); err != nil {
			return updateErr(op, err)
		}
		return nil
	}

	const query = `
	INSERT INTO paper_positions (user_id, symbol, quantity, avg_price, updated_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id, symbol) DO UPDATE SET
		quantity = excluded.quantity, avg_price = excluded.avg_price, updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, userID, symbol,
		decimal.NewFromFloat(quantity).String(), decimal.NewFromFloat(avgPrice).String(), time.Now().UTC())
	if err != nil {
		return updateErr(op, err)
	}
	return nil
}
