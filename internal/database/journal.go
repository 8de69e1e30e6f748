package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/clock"
	"github.com/trogers1052/intraday-trader/internal/models"
)

// Journal persists the trade lifecycle. It implements the scheduler's
// TradeJournal interface.
type Journal struct {
	db  *DB
	clk clock.Clock
}

func NewJournal(db *DB, clk clock.Clock) *Journal {
	return &Journal{db: db, clk: clk}
}

// DecisionRecord is a persisted oracle decision.
type DecisionRecord struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Action          string          `json:"action"`
	Confidence      decimal.Decimal `json:"confidence"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
	TargetPrice     decimal.Decimal `json:"target_price"`
	RiskRewardRatio decimal.Decimal `json:"risk_reward_ratio"`
	Reasoning       string          `json:"reasoning"`
	IsValid         bool            `json:"is_valid"`
	ValidationNote  string          `json:"validation_note"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ExecutionRecord is a persisted entry fill, updated in place when the
// trade exits.
type ExecutionRecord struct {
	ID          string           `json:"id"`
	DecisionID  string           `json:"decision_id"`
	Symbol      string           `json:"symbol"`
	Side        string           `json:"side"`
	Quantity    int64            `json:"quantity"`
	EntryPrice  decimal.Decimal  `json:"entry_price"`
	StopLoss    decimal.Decimal  `json:"stop_loss"`
	TargetPrice decimal.Decimal  `json:"target_price"`
	OrderRef    string           `json:"order_ref"`
	EntryTime   time.Time        `json:"entry_time"`
	ExitTime    *time.Time       `json:"exit_time,omitempty"`
	ExitPrice   *decimal.Decimal `json:"exit_price,omitempty"`
	ExitReason  string           `json:"exit_reason,omitempty"`
	PnL         *decimal.Decimal `json:"pnl,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// id builds a timestamped identifier like DEC_20260115_101530_123456.
func (j *Journal) id(prefix string) string {
	now := j.clk.Now()
	return fmt.Sprintf("%s_%s_%06d", prefix, now.Format("20060102_150405"), now.Nanosecond()/1000)
}

// LogDecision inserts the decision and returns its generated id.
func (j *Journal) LogDecision(ctx context.Context, d models.Decision, valid bool, reason string) (string, error) {
	query := `
		INSERT INTO trade_decisions (
			id, symbol, action, confidence, entry_price, stop_loss, target_price,
			risk_reward_ratio, reasoning, bullish_signals, bearish_signals,
			is_valid, validation_note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	id := j.id("DEC")
	_, err := j.db.conn.ExecContext(ctx, query,
		id, d.Symbol, string(d.Action), d.Confidence, d.EntryPrice, d.StopLoss, d.TargetPrice,
		d.RiskRewardRatio, d.Reasoning, d.BullishSignals, d.BearishSignals,
		valid, reason, j.clk.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to log decision: %w", err)
	}
	return id, nil
}

// LogExecution inserts the entry fill and returns the trade id.
func (j *Journal) LogExecution(ctx context.Context, t *models.ActiveTrade, decisionID, orderRef string) (string, error) {
	query := `
		INSERT INTO trade_executions (
			id, decision_id, symbol, side, quantity, entry_price, stop_loss,
			target_price, order_ref, entry_time, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	id := j.id("TRADE")
	_, err := j.db.conn.ExecContext(ctx, query,
		id, decisionID, t.Symbol, string(t.Side), t.Quantity, t.EntryPrice, t.StopLoss,
		t.TargetPrice, orderRef, t.EntryTime, j.clk.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to log execution: %w", err)
	}
	return id, nil
}

// LogExit closes out the execution row with the exit fill and outcome.
func (j *Journal) LogExit(ctx context.Context, t models.ActiveTrade, outcome models.TradeOutcome, reason models.ExitReason) error {
	query := `
		UPDATE trade_executions
		SET exit_time = $1, exit_price = $2, exit_reason = $3, pnl = $4
		WHERE id = $5
	`
	result, err := j.db.conn.ExecContext(ctx, query,
		j.clk.Now(), outcome.ExitPrice, string(reason), outcome.PnL, t.TradeID,
	)
	if err != nil {
		return fmt.Errorf("failed to log exit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check exit update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no execution record for trade %s", t.TradeID)
	}
	return nil
}

// LogRiskEvent appends an account-level risk event.
func (j *Journal) LogRiskEvent(ctx context.Context, status, detail string) error {
	query := `INSERT INTO risk_events (status, detail, created_at) VALUES ($1, $2, $3)`
	if _, err := j.db.conn.ExecContext(ctx, query, status, detail, j.clk.Now()); err != nil {
		return fmt.Errorf("failed to log risk event: %w", err)
	}
	return nil
}

// DecisionsSince returns decisions created at or after the given time,
// newest first.
func (j *Journal) DecisionsSince(ctx context.Context, since time.Time) ([]DecisionRecord, error) {
	query := `
		SELECT id, symbol, action, confidence, entry_price, stop_loss, target_price,
		       risk_reward_ratio, reasoning, is_valid, validation_note, created_at
		FROM trade_decisions
		WHERE created_at >= $1
		ORDER BY created_at DESC
	`
	rows, err := j.db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		var r DecisionRecord
		if err := rows.Scan(
			&r.ID, &r.Symbol, &r.Action, &r.Confidence, &r.EntryPrice, &r.StopLoss,
			&r.TargetPrice, &r.RiskRewardRatio, &r.Reasoning, &r.IsValid,
			&r.ValidationNote, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// TradesSince returns executions entered at or after the given time,
// newest first.
func (j *Journal) TradesSince(ctx context.Context, since time.Time) ([]ExecutionRecord, error) {
	query := `
		SELECT id, decision_id, symbol, side, quantity, entry_price, stop_loss,
		       target_price, order_ref, entry_time, exit_time, exit_price,
		       exit_reason, pnl, created_at
		FROM trade_executions
		WHERE entry_time >= $1
		ORDER BY entry_time DESC
	`
	rows, err := j.db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		r, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (ExecutionRecord, error) {
	var r ExecutionRecord
	var exitTime sql.NullTime
	var exitPrice, pnl sql.NullString
	var exitReason sql.NullString

	err := row.Scan(
		&r.ID, &r.DecisionID, &r.Symbol, &r.Side, &r.Quantity, &r.EntryPrice,
		&r.StopLoss, &r.TargetPrice, &r.OrderRef, &r.EntryTime,
		&exitTime, &exitPrice, &exitReason, &pnl, &r.CreatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan trade: %w", err)
	}

	if exitTime.Valid {
		r.ExitTime = &exitTime.Time
	}
	if exitPrice.Valid {
		if d, err := decimal.NewFromString(exitPrice.String); err == nil {
			r.ExitPrice = &d
		}
	}
	if exitReason.Valid {
		r.ExitReason = exitReason.String
	}
	if pnl.Valid {
		if d, err := decimal.NewFromString(pnl.String); err == nil {
			r.PnL = &d
		}
	}
	return r, nil
}
