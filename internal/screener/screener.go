// Package screener ranks the trading universe each morning and picks the
// symbols worth watching for the rest of the session.
package screener

import (
	"context"
	"log"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/clock"
	"github.com/trogers1052/intraday-trader/internal/models"
)

// BarSource supplies the universe and historical bars the screener works on.
type BarSource interface {
	Universe(ctx context.Context, limit int) ([]string, error)
	History(ctx context.Context, symbol string, days int) ([]models.DailyBar, error)
}

// SentimentSource optionally annotates candidates with a sentiment score
// in [-1, 1]. A nil source means neutral sentiment.
type SentimentSource interface {
	Score(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Filter thresholds for an intraday-tradeable stock.
var (
	minVolumeRatio = decimal.RequireFromString("1.2")
	minVolatility  = decimal.RequireFromString("0.5")
	maxVolatility  = decimal.NewFromInt(5)
	minRSI         = decimal.NewFromInt(20)
	maxRSI         = decimal.NewFromInt(80)
	minMovePct     = decimal.RequireFromString("0.5")

	minVolume      = int64(100_000)
	historyDays    = 20
	universeSize   = 50
	rsiPeriod      = 14
	scoreVolCap    = decimal.NewFromInt(3)
	weightVolume   = decimal.RequireFromString("0.3")
	weightVol      = decimal.RequireFromString("0.2")
	weightMove     = decimal.RequireFromString("0.3")
	weightVWAP     = decimal.RequireFromString("0.2")
	vwapScoreAbove = decimal.NewFromInt(1)
	vwapScoreBelow = decimal.RequireFromString("0.5")
)

// Screener scores and ranks symbols for intraday trading potential.
type Screener struct {
	bars      BarSource
	sentiment SentimentSource
	clk       clock.Clock
}

func New(bars BarSource, sentiment SentimentSource, clk clock.Clock) *Screener {
	return &Screener{bars: bars, sentiment: sentiment, clk: clk}
}

// ScreenTopStocks screens the universe and returns the top maxStocks
// candidates ranked by screening score. Per-symbol failures are logged
// and skipped so one bad feed doesn't sink the whole screening run.
func (s *Screener) ScreenTopStocks(ctx context.Context, maxStocks int) ([]models.Candidate, error) {
	symbols, err := s.bars.Universe(ctx, universeSize)
	if err != nil {
		return nil, err
	}
	log.Printf("screener: screening %d symbols", len(symbols))

	candidates := make([]models.Candidate, 0, len(symbols))
	for _, symbol := range symbols {
		cand, ok := s.screenOne(ctx, symbol)
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ScreeningScore.GreaterThan(candidates[j].ScreeningScore)
	})
	if len(candidates) > maxStocks {
		candidates = candidates[:maxStocks]
	}

	for i, c := range candidates {
		log.Printf("screener: %d. %s score=%s volRatio=%s rsi=%s",
			i+1, c.Symbol, c.ScreeningScore.StringFixed(2),
			c.VolumeRatio.StringFixed(2), c.RSI.StringFixed(1))
	}
	return candidates, nil
}

func (s *Screener) screenOne(ctx context.Context, symbol string) (models.Candidate, bool) {
	bars, err := s.bars.History(ctx, symbol, historyDays)
	if err != nil {
		log.Printf("screener: history for %s: %v", symbol, err)
		return models.Candidate{}, false
	}
	if len(bars) < rsiPeriod+1 {
		return models.Candidate{}, false
	}

	cand := models.Candidate{
		Symbol:     symbol,
		ScreenedAt: s.clk.Now(),
	}

	last := bars[len(bars)-1]
	cand.CurrentPrice = last.Close
	cand.CurrentVolume = last.Volume
	cand.VolumeRatio = volumeRatio(bars)
	cand.VolatilityPct = volatilityPct(bars)
	cand.PriceChangePct = priceChangePct(bars)
	cand.RSI = rsi(bars, rsiPeriod)
	cand.VWAP = vwap(bars)
	cand.AboveVWAP = last.Close.GreaterThan(cand.VWAP)

	if s.sentiment != nil {
		score, err := s.sentiment.Score(ctx, symbol)
		if err != nil {
			log.Printf("screener: sentiment for %s: %v", symbol, err)
		} else {
			cand.SentimentScore = score
		}
	}

	if !passesFilters(cand) {
		return models.Candidate{}, false
	}
	cand.ScreeningScore = score(cand)
	return cand, true
}

func passesFilters(c models.Candidate) bool {
	return c.VolumeRatio.GreaterThanOrEqual(minVolumeRatio) &&
		c.VolatilityPct.GreaterThanOrEqual(minVolatility) &&
		c.VolatilityPct.LessThanOrEqual(maxVolatility) &&
		c.RSI.GreaterThanOrEqual(minRSI) &&
		c.RSI.LessThanOrEqual(maxRSI) &&
		c.CurrentVolume >= minVolume &&
		c.PriceChangePct.Abs().GreaterThanOrEqual(minMovePct)
}

// score weighs volume, volatility, movement and VWAP position. Volume
// ratio and volatility are capped so a single blown-out metric doesn't
// dominate the ranking.
func score(c models.Candidate) decimal.Decimal {
	volPart := decimal.Min(c.VolumeRatio, scoreVolCap).Mul(weightVolume)
	volaPart := decimal.Min(c.VolatilityPct, scoreVolCap).Mul(weightVol)
	movePart := c.PriceChangePct.Abs().Mul(weightMove)

	vwapBase := vwapScoreBelow
	if c.AboveVWAP {
		vwapBase = vwapScoreAbove
	}
	return volPart.Add(volaPart).Add(movePart).Add(vwapBase.Mul(weightVWAP))
}

// volumeRatio is the last bar's volume over the period average.
func volumeRatio(bars []models.DailyBar) decimal.Decimal {
	var sum int64
	for _, b := range bars {
		sum += b.Volume
	}
	if sum == 0 {
		return decimal.Zero
	}
	avg := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(bars))))
	return decimal.NewFromInt(bars[len(bars)-1].Volume).Div(avg)
}

// volatilityPct is the average high-low range as a percentage of the
// average close.
func volatilityPct(bars []models.DailyBar) decimal.Decimal {
	rangeSum := decimal.Zero
	closeSum := decimal.Zero
	for _, b := range bars {
		rangeSum = rangeSum.Add(b.High.Sub(b.Low))
		closeSum = closeSum.Add(b.Close)
	}
	if closeSum.IsZero() {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(len(bars)))
	return rangeSum.Div(n).Div(closeSum.Div(n)).Mul(hundred)
}

func priceChangePct(bars []models.DailyBar) decimal.Decimal {
	first := bars[0].Close
	if first.IsZero() {
		return decimal.Zero
	}
	return bars[len(bars)-1].Close.Sub(first).Div(first).Mul(hundred)
}

// rsi computes a simple-average RSI over the close series.
func rsi(bars []models.DailyBar, period int) decimal.Decimal {
	gains := decimal.Zero
	losses := decimal.Zero
	start := len(bars) - period
	for i := start; i < len(bars); i++ {
		delta := bars[i].Close.Sub(bars[i-1].Close)
		if delta.IsPositive() {
			gains = gains.Add(delta)
		} else {
			losses = losses.Add(delta.Neg())
		}
	}
	if losses.IsZero() {
		if gains.IsZero() {
			return decimal.NewFromInt(50)
		}
		return hundred
	}
	rs := gains.Div(losses)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// vwap is the volume-weighted average of typical prices over the series.
func vwap(bars []models.DailyBar) decimal.Decimal {
	three := decimal.NewFromInt(3)
	num := decimal.Zero
	var volSum int64
	for _, b := range bars {
		typical := b.High.Add(b.Low).Add(b.Close).Div(three)
		num = num.Add(typical.Mul(decimal.NewFromInt(b.Volume)))
		volSum += b.Volume
	}
	if volSum == 0 {
		return decimal.Zero
	}
	return num.Div(decimal.NewFromInt(volSum))
}

var hundred = decimal.NewFromInt(100)
