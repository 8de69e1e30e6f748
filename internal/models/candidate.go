package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBar is one day of OHLCV data for a symbol.
type DailyBar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Candidate is a symbol that passed the daily screening filters, along
// with the metrics the filters were computed from.
type Candidate struct {
	Symbol         string          `json:"symbol"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	CurrentVolume  int64           `json:"current_volume"`
	VolumeRatio    decimal.Decimal `json:"volume_ratio"`
	VolatilityPct  decimal.Decimal `json:"volatility_pct"`
	PriceChangePct decimal.Decimal `json:"price_change_pct"`
	RSI            decimal.Decimal `json:"rsi"`
	VWAP           decimal.Decimal `json:"vwap"`
	AboveVWAP      bool            `json:"above_vwap"`
	SentimentScore decimal.Decimal `json:"sentiment_score"`
	ScreeningScore decimal.Decimal `json:"screening_score"`
	ScreenedAt     time.Time       `json:"screened_at"`
}
