package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the oracle's recommendation for a symbol.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// SymbolContext is the market snapshot the oracle decides on.
type SymbolContext struct {
	Symbol            string          `json:"symbol"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	RSI               decimal.Decimal `json:"rsi"`
	VolumeRatio       decimal.Decimal `json:"volume_ratio"`
	AboveVWAP         bool            `json:"above_vwap"`
	SentimentScore    decimal.Decimal `json:"sentiment_score"`
	IntradayRelevance decimal.Decimal `json:"intraday_relevance"`
	Timestamp         time.Time       `json:"timestamp"`
}

// Decision is a single BUY/SELL/HOLD recommendation with the price levels
// the trade would be entered at.
type Decision struct {
	Symbol          string          `json:"symbol"`
	Action          Action          `json:"action"`
	Confidence      decimal.Decimal `json:"confidence"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
	TargetPrice     decimal.Decimal `json:"target_price"`
	RiskRewardRatio decimal.Decimal `json:"risk_reward_ratio"`
	Reasoning       string          `json:"reasoning"`
	BullishSignals  int             `json:"bullish_signals"`
	BearishSignals  int             `json:"bearish_signals"`
}

// IsActionable reports whether the decision proposes a trade at all.
func (d *Decision) IsActionable() bool {
	return d.Action == ActionBuy || d.Action == ActionSell
}
