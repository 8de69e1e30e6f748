package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/models"
)

// DailyReport is the persisted end-of-day summary.
type DailyReport struct {
	ReportDate       time.Time       `json:"report_date"`
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
	DailyPnL         decimal.Decimal `json:"daily_pnl"`
	WinRatePct       decimal.Decimal `json:"win_rate_pct"`
	MaxDrawdownToday decimal.Decimal `json:"max_drawdown_today"`
	CapitalChangePct decimal.Decimal `json:"capital_change_pct"`
	RiskStatus       string          `json:"risk_status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// SaveDailyReport upserts the report for the current trading date, so a
// restart after close overwrites rather than duplicates.
func (j *Journal) SaveDailyReport(ctx context.Context, summary models.RiskSummary) error {
	query := `
		INSERT INTO daily_reports (
			report_date, total_trades, winning_trades, losing_trades, daily_pnl,
			win_rate_pct, max_drawdown_today, capital_change_pct, risk_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (report_date) DO UPDATE SET
			total_trades = EXCLUDED.total_trades,
			winning_trades = EXCLUDED.winning_trades,
			losing_trades = EXCLUDED.losing_trades,
			daily_pnl = EXCLUDED.daily_pnl,
			win_rate_pct = EXCLUDED.win_rate_pct,
			max_drawdown_today = EXCLUDED.max_drawdown_today,
			capital_change_pct = EXCLUDED.capital_change_pct,
			risk_status = EXCLUDED.risk_status,
			created_at = EXCLUDED.created_at
	`
	now := j.clk.Now()
	reportDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	_, err := j.db.conn.ExecContext(ctx, query,
		reportDate, summary.TotalTrades, summary.WinningTrades, summary.LosingTrades,
		summary.DailyPnL, summary.WinRatePct, summary.MaxDrawdownToday,
		summary.CapitalChangePct, summary.RiskStatus, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save daily report: %w", err)
	}
	return nil
}

// DailyReportFor fetches the report for the given date.
func (j *Journal) DailyReportFor(ctx context.Context, date time.Time) (*DailyReport, error) {
	query := `
		SELECT report_date, total_trades, winning_trades, losing_trades, daily_pnl,
		       win_rate_pct, max_drawdown_today, capital_change_pct, risk_status, created_at
		FROM daily_reports
		WHERE report_date = $1
	`
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var r DailyReport
	err := j.db.conn.QueryRowContext(ctx, query, day).Scan(
		&r.ReportDate, &r.TotalTrades, &r.WinningTrades, &r.LosingTrades, &r.DailyPnL,
		&r.WinRatePct, &r.MaxDrawdownToday, &r.CapitalChangePct, &r.RiskStatus, &r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily report: %w", err)
	}
	return &r, nil
}
