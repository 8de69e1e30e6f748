// Package oracle produces trade recommendations from symbol snapshots.
// Rules counts technical and sentiment signals deterministically; it is
// the stand-in for an external model behind the same interface.
package oracle

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/models"
)

var (
	rsiOversold   = decimal.NewFromInt(40)
	rsiOverbought = decimal.NewFromInt(70)
	volumeSurge   = decimal.RequireFromString("1.5")
	sentimentPos  = decimal.RequireFromString("0.3")
	sentimentNeg  = decimal.RequireFromString("-0.3")
	relevanceMin  = decimal.RequireFromString("0.5")

	signalFloor = 3
	baseConf    = decimal.RequireFromString("0.6")
	confStep    = decimal.RequireFromString("0.1")
	confCap     = decimal.RequireFromString("0.9")
	holdConf    = decimal.RequireFromString("0.3")

	stopPct   = decimal.RequireFromString("0.02")
	targetPct = decimal.RequireFromString("0.04")
)

// Rules is a deterministic signal-counting decision engine.
type Rules struct {
	minConfidence decimal.Decimal
	minRiskReward decimal.Decimal
}

func NewRules(minConfidence, minRiskReward decimal.Decimal) *Rules {
	return &Rules{minConfidence: minConfidence, minRiskReward: minRiskReward}
}

// Decide counts bullish and bearish signals in the snapshot. Three or
// more on one side produce a BUY or SELL with a 2% stop and 4% target;
// anything else is a HOLD.
func (r *Rules) Decide(ctx context.Context, sc models.SymbolContext) (models.Decision, error) {
	bullish, bearish := countSignals(sc)

	d := models.Decision{
		Symbol:         sc.Symbol,
		BullishSignals: bullish,
		BearishSignals: bearish,
		EntryPrice:     sc.CurrentPrice,
	}

	one := decimal.NewFromInt(1)
	switch {
	case bullish >= signalFloor && sc.CurrentPrice.IsPositive():
		d.Action = models.ActionBuy
		d.Confidence = confidence(bullish)
		d.StopLoss = sc.CurrentPrice.Mul(one.Sub(stopPct))
		d.TargetPrice = sc.CurrentPrice.Mul(one.Add(targetPct))
	case bearish >= signalFloor && sc.CurrentPrice.IsPositive():
		d.Action = models.ActionSell
		d.Confidence = confidence(bearish)
		d.StopLoss = sc.CurrentPrice.Mul(one.Add(stopPct))
		d.TargetPrice = sc.CurrentPrice.Mul(one.Sub(targetPct))
	default:
		d.Action = models.ActionHold
		d.Confidence = holdConf
	}

	if d.IsActionable() {
		risk := d.EntryPrice.Sub(d.StopLoss).Abs()
		reward := d.TargetPrice.Sub(d.EntryPrice).Abs()
		if risk.IsPositive() {
			d.RiskRewardRatio = reward.Div(risk)
		}
	}

	d.Reasoning = reasoning(d, sc)
	log.Printf("oracle: %s -> %s (confidence=%s, bullish=%d, bearish=%d)",
		sc.Symbol, d.Action, d.Confidence.StringFixed(2), bullish, bearish)
	return d, nil
}

// Validate checks a decision against the configured thresholds before it
// reaches risk sizing. It returns the first failing check.
func (r *Rules) Validate(d models.Decision) (bool, string) {
	if d.Confidence.LessThan(r.minConfidence) {
		return false, fmt.Sprintf("confidence %s below threshold %s",
			d.Confidence.StringFixed(2), r.minConfidence.StringFixed(2))
	}

	if d.IsActionable() {
		if d.RiskRewardRatio.LessThan(r.minRiskReward) {
			return false, fmt.Sprintf("risk-reward ratio %s below minimum %s",
				d.RiskRewardRatio.StringFixed(2), r.minRiskReward.StringFixed(2))
		}
	}

	switch d.Action {
	case models.ActionBuy:
		if d.StopLoss.GreaterThanOrEqual(d.EntryPrice) {
			return false, "invalid stop loss for BUY order"
		}
		if d.TargetPrice.LessThanOrEqual(d.EntryPrice) {
			return false, "invalid target price for BUY order"
		}
	case models.ActionSell:
		if d.StopLoss.LessThanOrEqual(d.EntryPrice) {
			return false, "invalid stop loss for SELL order"
		}
		if d.TargetPrice.GreaterThanOrEqual(d.EntryPrice) {
			return false, "invalid target price for SELL order"
		}
	}

	return true, "decision passed all validation checks"
}

func countSignals(sc models.SymbolContext) (bullish, bearish int) {
	if sc.RSI.LessThan(rsiOversold) {
		bullish++
	} else if sc.RSI.GreaterThan(rsiOverbought) {
		bearish++
	}

	if sc.AboveVWAP {
		bullish++
	} else {
		bearish++
	}

	if sc.VolumeRatio.GreaterThan(volumeSurge) {
		bullish++
	}

	if sc.SentimentScore.GreaterThan(sentimentPos) {
		bullish++
	} else if sc.SentimentScore.LessThan(sentimentNeg) {
		bearish++
	}

	if sc.IntradayRelevance.GreaterThan(relevanceMin) {
		bullish++
	}
	return bullish, bearish
}

// confidence scales with signals beyond the floor, capped at 0.9.
func confidence(signals int) decimal.Decimal {
	extra := decimal.NewFromInt(int64(signals - signalFloor)).Mul(confStep)
	return decimal.Min(baseConf.Add(extra), confCap)
}

func reasoning(d models.Decision, sc models.SymbolContext) string {
	var parts []string

	if sc.RSI.LessThan(rsiOversold) {
		parts = append(parts, fmt.Sprintf("RSI at %s indicates oversold conditions", sc.RSI.StringFixed(1)))
	} else if sc.RSI.GreaterThan(rsiOverbought) {
		parts = append(parts, fmt.Sprintf("RSI at %s shows overbought levels", sc.RSI.StringFixed(1)))
	}

	if sc.AboveVWAP {
		parts = append(parts, "price trading above VWAP shows bullish bias")
	} else {
		parts = append(parts, "price below VWAP indicates bearish pressure")
	}

	if sc.VolumeRatio.GreaterThan(volumeSurge) {
		parts = append(parts, fmt.Sprintf("volume %sx higher than average", sc.VolumeRatio.StringFixed(1)))
	}

	if sc.SentimentScore.GreaterThan(sentimentPos) {
		parts = append(parts, "positive market sentiment detected")
	} else if sc.SentimentScore.LessThan(sentimentNeg) {
		parts = append(parts, "negative sentiment in news and social media")
	}

	switch d.Action {
	case models.ActionBuy:
		parts = append(parts, fmt.Sprintf("%d bullish signals support buy decision", d.BullishSignals))
	case models.ActionSell:
		parts = append(parts, fmt.Sprintf("%d bearish signals support sell decision", d.BearishSignals))
	default:
		parts = append(parts, "mixed signals suggest holding position")
	}

	return strings.Join(parts, "; ")
}
