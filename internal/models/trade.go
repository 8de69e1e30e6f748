package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ExitReason identifies which exit condition closed a trade.
type ExitReason string

const (
	ExitStopLoss  ExitReason = "STOP_LOSS"
	ExitTarget    ExitReason = "TARGET"
	ExitTimeLimit ExitReason = "TIME_LIMIT"
	ExitForced    ExitReason = "FORCE_EXIT"
	ExitShutdown  ExitReason = "SHUTDOWN"
)

// MonitoredStock represents a stock on the daily watchlist that is not
// necessarily in an open position yet.
type MonitoredStock struct {
	Symbol         string          `json:"symbol"`
	AddedAt        time.Time       `json:"added_at"`
	LastAnalysisAt time.Time       `json:"last_analysis_at"`
	SentimentScore decimal.Decimal `json:"sentiment_score"`
	TechnicalScore decimal.Decimal `json:"technical_score"`
	IsActiveTrade  bool            `json:"is_active_trade"`
}

// ActiveTrade represents an open position under live exit monitoring.
type ActiveTrade struct {
	TradeID       string          `json:"trade_id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	EntryTime     time.Time       `json:"entry_time"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	StopLoss      decimal.Decimal `json:"stop_loss"`
	TargetPrice   decimal.Decimal `json:"target_price"`
	Quantity      int64           `json:"quantity"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	LastCheckTime time.Time       `json:"last_check_time"`
	ExitAttempts  int             `json:"exit_attempts,omitempty"`
}

// MarkToMarket updates the trade with a fresh price and recomputes the
// unrealized P&L for the trade's direction.
func (t *ActiveTrade) MarkToMarket(price decimal.Decimal, now time.Time) {
	t.CurrentPrice = price
	t.LastCheckTime = now

	qty := decimal.NewFromInt(t.Quantity)
	if t.Side == SideBuy {
		t.UnrealizedPnL = price.Sub(t.EntryPrice).Mul(qty)
	} else {
		t.UnrealizedPnL = t.EntryPrice.Sub(price).Mul(qty)
	}
}

// TradeOutcome records a completed round trip for daily risk tracking.
type TradeOutcome struct {
	Symbol     string          `json:"symbol"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Quantity   int64           `json:"quantity"`
	Side       Side            `json:"side"`
	PnL        decimal.Decimal `json:"pnl"`
	PnLPct     decimal.Decimal `json:"pnl_pct"`
	IsLoss     bool            `json:"is_loss"`
	Timestamp  time.Time       `json:"timestamp"`
}
