package models

import "github.com/shopspring/decimal"

// Risk status constants, in the priority order they are evaluated.
const (
	RiskStatusMaxTrades   = "MAX_TRADES_REACHED"
	RiskStatusMaxLosses   = "MAX_DAILY_LOSSES"
	RiskStatusMaxDrawdown = "MAX_DRAWDOWN_EXCEEDED"
	RiskStatusNearClose   = "NEAR_MARKET_CLOSE"
	RiskStatusNormal      = "NORMAL"
)

// RiskMetrics is the result of validating a single proposed trade.
type RiskMetrics struct {
	PositionSize     int64           `json:"position_size"`
	RiskAmount       decimal.Decimal `json:"risk_amount"`
	RewardAmount     decimal.Decimal `json:"reward_amount"`
	RiskRewardRatio  decimal.Decimal `json:"risk_reward_ratio"`
	CapitalAtRiskPct decimal.Decimal `json:"capital_at_risk_pct"`
	IsWithinLimits   bool            `json:"is_within_limits"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
}

// AccountRiskSnapshot is the account-level risk state derived on demand.
// It is never persisted.
type AccountRiskSnapshot struct {
	TotalCapital     decimal.Decimal `json:"total_capital"`
	AvailableCapital decimal.Decimal `json:"available_capital"`
	UsedCapital      decimal.Decimal `json:"used_capital"`
	DailyPnL         decimal.Decimal `json:"daily_pnl"`
	DailyLossCount   int             `json:"daily_loss_count"`
	MaxDrawdownToday decimal.Decimal `json:"max_drawdown_today"`
	ActiveTradeCount int             `json:"active_trade_count"`
	IsTradingAllowed bool            `json:"is_trading_allowed"`
	RiskStatus       string          `json:"risk_status"`
}

// RiskSummary aggregates the day's completed trades.
type RiskSummary struct {
	DailyPnL         decimal.Decimal `json:"daily_pnl"`
	DailyLossCount   int             `json:"daily_loss_count"`
	MaxDrawdownToday decimal.Decimal `json:"max_drawdown_today"`
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
	WinRatePct       decimal.Decimal `json:"win_rate_pct"`
	AvgPnL           decimal.Decimal `json:"avg_pnl"`
	AvgWin           decimal.Decimal `json:"avg_win"`
	AvgLoss          decimal.Decimal `json:"avg_loss"`
	CurrentCapital   decimal.Decimal `json:"current_capital"`
	CapitalChangePct decimal.Decimal `json:"capital_change_pct"`
	RiskStatus       string          `json:"risk_status"`
}
