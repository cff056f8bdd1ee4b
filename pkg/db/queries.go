package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by lookups that target a specific row.
var ErrNotFound = errors.New("record not found")

// ----------------------------------------
// Users
// ----------------------------------------

// CreateUser inserts a new user row.
func (d *Database) CreateUser(ctx context.Context, u User) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP), COALESCE(?, CURRENT_TIMESTAMP))
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, nullTime(u.CreatedAt), nullTime(u.UpdatedAt))
	return err
}

// GetUserByEmail returns a user by email or nil if not found.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, strings.ToLower(email))
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ----------------------------------------
// Strategies
// ----------------------------------------

// CreateStrategy inserts a new strategy row.
func (d *Database) CreateStrategy(ctx context.Context, s Strategy) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO strategies (
			id, name, symbol, family, timeframe, params, qty, notional, dry_run, enabled,
			max_trades_per_day, max_loss_per_day, max_consecutive_losses, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP), COALESCE(?, CURRENT_TIMESTAMP))
	`,
		s.ID, s.Name, s.Symbol, s.Family, s.Timeframe, s.Params, s.Qty, s.Notional, s.DryRun, s.Enabled,
		s.MaxTradesPerDay, s.MaxLossPerDay, s.MaxConsecutiveLosses, nullTime(s.CreatedAt), nullTime(s.UpdatedAt),
	)
	return err
}

// UpdateStrategy rewrites the mutable fields of a strategy row.
func (d *Database) UpdateStrategy(ctx context.Context, s Strategy) error {
	res, err := d.DB.ExecContext(ctx, `
		UPDATE strategies SET
			name = ?, symbol = ?, family = ?, timeframe = ?, params = ?, qty = ?, notional = ?,
			dry_run = ?, enabled = ?, max_trades_per_day = ?, max_loss_per_day = ?,
			max_consecutive_losses = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		s.Name, s.Symbol, s.Family, s.Timeframe, s.Params, s.Qty, s.Notional,
		s.DryRun, s.Enabled, s.MaxTradesPerDay, s.MaxLossPerDay,
		s.MaxConsecutiveLosses, s.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStrategy removes a strategy and its execution/audit rows.
func (d *Database) DeleteStrategy(ctx context.Context, id string) error {
	for _, q := range []string{
		`DELETE FROM executions WHERE strategy_id = ?`,
		`DELETE FROM signals WHERE strategy_id = ?`,
		`DELETE FROM trades WHERE strategy_id = ?`,
		`DELETE FROM strategies WHERE id = ?`,
	} {
		if _, err := d.DB.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

const strategyColumns = `id, name, symbol, family, timeframe, params, COALESCE(qty, 0),
	COALESCE(notional, 0), dry_run, enabled, max_trades_per_day, max_loss_per_day,
	max_consecutive_losses, created_at, updated_at`

func scanStrategy(row interface{ Scan(...any) error }) (Strategy, error) {
	var s Strategy
	err := row.Scan(&s.ID, &s.Name, &s.Symbol, &s.Family, &s.Timeframe, &s.Params, &s.Qty,
		&s.Notional, &s.DryRun, &s.Enabled, &s.MaxTradesPerDay, &s.MaxLossPerDay,
		&s.MaxConsecutiveLosses, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// GetStrategy returns a strategy by id or nil if not found.
func (d *Database) GetStrategy(ctx context.Context, id string) (*Strategy, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE id = ?`, id)
	s, err := scanStrategy(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListStrategies returns all strategy rows, newest first.
func (d *Database) ListStrategies(ctx context.Context) ([]Strategy, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT `+strategyColumns+` FROM strategies ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// GetStrategyByName returns a strategy by its unique name or nil if not found.
// Used by the YAML bootstrap to upsert declarative entries.
func (d *Database) GetStrategyByName(ctx context.Context, name string) (*Strategy, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE name = ?`, name)
	s, err := scanStrategy(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ----------------------------------------
// Executions
// ----------------------------------------

const executionColumns = `strategy_id, state, has_open_position, position_qty, entry_price,
	trades_today, max_trades_per_day, loss_today, max_loss_per_day, consecutive_losses,
	max_consecutive_losses, error_count, COALESCE(last_error, ''), paused_for_day,
	last_evaluated_at, last_signal_at, updated_at`

func scanExecution(row interface{ Scan(...any) error }) (Execution, error) {
	var (
		e           Execution
		evaluatedAt sql.NullTime
		signalAt    sql.NullTime
	)
	err := row.Scan(&e.StrategyID, &e.State, &e.HasOpenPosition, &e.PositionQty, &e.EntryPrice,
		&e.TradesToday, &e.MaxTradesPerDay, &e.LossToday, &e.MaxLossPerDay, &e.ConsecutiveLosses,
		&e.MaxConsecutiveLosses, &e.ErrorCount, &e.LastError, &e.PausedForDay,
		&evaluatedAt, &signalAt, &e.UpdatedAt)
	e.LastEvaluatedAt = evaluatedAt.Time
	e.LastSignalAt = signalAt.Time
	return e, err
}

// SaveExecution upserts the full execution row.
func (d *Database) SaveExecution(ctx context.Context, e Execution) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO executions (
			strategy_id, state, has_open_position, position_qty, entry_price,
			trades_today, max_trades_per_day, loss_today, max_loss_per_day,
			consecutive_losses, max_consecutive_losses, error_count, last_error,
			paused_for_day, last_evaluated_at, last_signal_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(strategy_id) DO UPDATE SET
			state = excluded.state,
			has_open_position = excluded.has_open_position,
			position_qty = excluded.position_qty,
			entry_price = excluded.entry_price,
			trades_today = excluded.trades_today,
			max_trades_per_day = excluded.max_trades_per_day,
			loss_today = excluded.loss_today,
			max_loss_per_day = excluded.max_loss_per_day,
			consecutive_losses = excluded.consecutive_losses,
			max_consecutive_losses = excluded.max_consecutive_losses,
			error_count = excluded.error_count,
			last_error = excluded.last_error,
			paused_for_day = excluded.paused_for_day,
			last_evaluated_at = excluded.last_evaluated_at,
			last_signal_at = excluded.last_signal_at,
			updated_at = CURRENT_TIMESTAMP
	`,
		e.StrategyID, e.State, e.HasOpenPosition, e.PositionQty, e.EntryPrice,
		e.TradesToday, e.MaxTradesPerDay, e.LossToday, e.MaxLossPerDay,
		e.ConsecutiveLosses, e.MaxConsecutiveLosses, e.ErrorCount, e.LastError,
		e.PausedForDay, nullTime(e.LastEvaluatedAt), nullTime(e.LastSignalAt),
	)
	return err
}

// GetExecution returns the execution row for a strategy or nil if not found.
func (d *Database) GetExecution(ctx context.Context, strategyID string) (*Execution, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE strategy_id = ?`, strategyID)
	e, err := scanExecution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListExecutionsByState returns all executions currently in the given state.
func (d *Database) ListExecutionsByState(ctx context.Context, state string) ([]Execution, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE state = ?`, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListExecutions returns every execution row.
func (d *Database) ListExecutions(ctx context.Context) ([]Execution, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT `+executionColumns+` FROM executions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ----------------------------------------
// Signals
// ----------------------------------------

// InsertSignal appends the audit row for one evaluation cycle.
func (d *Database) InsertSignal(ctx context.Context, s SignalRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO signals (
			id, strategy_id, symbol, signal_type, strength, price_at_signal,
			indicator_snapshot, reasoning, was_executed, rejection_reason,
			execution_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`,
		s.ID, s.StrategyID, s.Symbol, s.SignalType, s.Strength, s.PriceAtSignal,
		s.IndicatorSnapshot, s.Reasoning, s.WasExecuted, s.RejectionReason,
		s.ExecutionError, nullTime(s.CreatedAt),
	)
	return err
}

// UpdateSignalOutcome attaches the execution outcome to an existing signal row.
// This is the only mutation a signal record ever receives.
func (d *Database) UpdateSignalOutcome(ctx context.Context, id string, wasExecuted bool, rejectionReason, executionError string) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE signals
		SET was_executed = ?, rejection_reason = ?, execution_error = ?
		WHERE id = ?
	`, wasExecuted, rejectionReason, executionError, id)
	return err
}

// ListSignalsByStrategy returns the most recent signals for a strategy.
func (d *Database) ListSignalsByStrategy(ctx context.Context, strategyID string, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, strategy_id, symbol, signal_type, strength, price_at_signal,
		       indicator_snapshot, COALESCE(reasoning, ''), was_executed,
		       COALESCE(rejection_reason, ''), COALESCE(execution_error, ''), created_at
		FROM signals WHERE strategy_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []SignalRecord
	for rows.Next() {
		var s SignalRecord
		if err := rows.Scan(&s.ID, &s.StrategyID, &s.Symbol, &s.SignalType, &s.Strength,
			&s.PriceAtSignal, &s.IndicatorSnapshot, &s.Reasoning, &s.WasExecuted,
			&s.RejectionReason, &s.ExecutionError, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ----------------------------------------
// Trades
// ----------------------------------------

// InsertTrade appends a fill audit row.
func (d *Database) InsertTrade(ctx context.Context, t Trade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (
			id, strategy_id, order_id, symbol, side, qty, price, notional, pnl, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`,
		t.ID, t.StrategyID, t.OrderID, t.Symbol, t.Side, t.Qty, t.Price, t.Notional, t.PnL,
		nullTime(t.ExecutedAt),
	)
	return err
}

// ListTradesByStrategy returns the most recent trades for a strategy.
func (d *Database) ListTradesByStrategy(ctx context.Context, strategyID string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, strategy_id, COALESCE(order_id, ''), symbol, side, qty, price,
		       COALESCE(notional, 0), COALESCE(pnl, 0), executed_at
		FROM trades WHERE strategy_id = ?
		ORDER BY executed_at DESC
		LIMIT ?
	`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.StrategyID, &t.OrderID, &t.Symbol, &t.Side, &t.Qty,
			&t.Price, &t.Notional, &t.PnL, &t.ExecutedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ----------------------------------------
// Settings
// ----------------------------------------

// PutSetting upserts a key/value setting.
func (d *Database) PutSetting(ctx context.Context, key, value string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// GetSetting returns a setting value, or "" when the key is absent.
func (d *Database) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// nullTime maps the zero time to NULL so COALESCE defaults apply.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
