package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/intraday-trader/internal/models"
)

func newTestRules() *Rules {
	return NewRules(decimal.RequireFromString("0.8"), decimal.RequireFromString("1.5"))
}

func bullishContext() models.SymbolContext {
	return models.SymbolContext{
		Symbol:            "RELIANCE",
		CurrentPrice:      decimal.NewFromInt(2500),
		RSI:               decimal.NewFromInt(35),  // oversold
		VolumeRatio:       decimal.NewFromInt(2),   // surge
		AboveVWAP:         true,                    // bullish
		SentimentScore:    decimal.RequireFromString("0.5"), // positive
		IntradayRelevance: decimal.RequireFromString("0.7"), // relevant
		Timestamp:         time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("five bullish signals produce a confident buy", func(t *testing.T) {
		d, err := newTestRules().Decide(ctx, bullishContext())
		require.NoError(t, err)

		assert.Equal(t, models.ActionBuy, d.Action)
		assert.Equal(t, 5, d.BullishSignals)
		// 0.6 + 2*0.1, still under the 0.9 cap
		assert.True(t, d.Confidence.Equal(decimal.RequireFromString("0.8")), "confidence = %s", d.Confidence)
		assert.True(t, d.StopLoss.Equal(decimal.NewFromInt(2450)), "stop = %s", d.StopLoss)
		assert.True(t, d.TargetPrice.Equal(decimal.NewFromInt(2600)), "target = %s", d.TargetPrice)
		assert.True(t, d.RiskRewardRatio.Equal(decimal.NewFromInt(2)), "rr = %s", d.RiskRewardRatio)
	})

	t.Run("confidence is capped at 0.9", func(t *testing.T) {
		assert.True(t, confidence(6).Equal(decimal.RequireFromString("0.9")))
		assert.True(t, confidence(7).Equal(decimal.RequireFromString("0.9")))
	})

	t.Run("three bearish signals produce a sell", func(t *testing.T) {
		sc := models.SymbolContext{
			Symbol:         "TCS",
			CurrentPrice:   decimal.NewFromInt(3600),
			RSI:            decimal.NewFromInt(75), // overbought
			VolumeRatio:    decimal.NewFromInt(1),
			AboveVWAP:      false,                              // bearish
			SentimentScore: decimal.RequireFromString("-0.5"), // negative
		}

		d, err := newTestRules().Decide(ctx, sc)
		require.NoError(t, err)

		assert.Equal(t, models.ActionSell, d.Action)
		assert.Equal(t, 3, d.BearishSignals)
		assert.True(t, d.Confidence.Equal(decimal.RequireFromString("0.6")))
		assert.True(t, d.StopLoss.Equal(decimal.NewFromInt(3672)), "stop = %s", d.StopLoss)
		assert.True(t, d.TargetPrice.Equal(decimal.NewFromInt(3456)), "target = %s", d.TargetPrice)
	})

	t.Run("mixed signals hold", func(t *testing.T) {
		sc := models.SymbolContext{
			Symbol:       "INFY",
			CurrentPrice: decimal.NewFromInt(1400),
			RSI:          decimal.NewFromInt(50),
			VolumeRatio:  decimal.NewFromInt(1),
			AboveVWAP:    true,
		}

		d, err := newTestRules().Decide(ctx, sc)
		require.NoError(t, err)

		assert.Equal(t, models.ActionHold, d.Action)
		assert.False(t, d.IsActionable())
		assert.True(t, d.Confidence.Equal(decimal.RequireFromString("0.3")))
	})

	t.Run("zero price never trades", func(t *testing.T) {
		sc := bullishContext()
		sc.CurrentPrice = decimal.Zero

		d, err := newTestRules().Decide(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, models.ActionHold, d.Action)
	})
}

func TestValidate(t *testing.T) {
	rules := newTestRules()

	valid := models.Decision{
		Symbol:          "RELIANCE",
		Action:          models.ActionBuy,
		Confidence:      decimal.RequireFromString("0.85"),
		EntryPrice:      decimal.NewFromInt(2500),
		StopLoss:        decimal.NewFromInt(2450),
		TargetPrice:     decimal.NewFromInt(2600),
		RiskRewardRatio: decimal.NewFromInt(2),
	}

	t.Run("passes all checks", func(t *testing.T) {
		ok, reason := rules.Validate(valid)
		assert.True(t, ok, reason)
	})

	t.Run("confidence below threshold", func(t *testing.T) {
		d := valid
		d.Confidence = decimal.RequireFromString("0.7")
		ok, reason := rules.Validate(d)
		assert.False(t, ok)
		assert.Contains(t, reason, "confidence")
	})

	t.Run("risk reward below minimum", func(t *testing.T) {
		d := valid
		d.RiskRewardRatio = decimal.NewFromInt(1)
		ok, reason := rules.Validate(d)
		assert.False(t, ok)
		assert.Contains(t, reason, "risk-reward")
	})

	t.Run("buy stop above entry", func(t *testing.T) {
		d := valid
		d.StopLoss = decimal.NewFromInt(2550)
		ok, reason := rules.Validate(d)
		assert.False(t, ok)
		assert.Contains(t, reason, "invalid stop loss for BUY")
	})

	t.Run("buy target below entry", func(t *testing.T) {
		d := valid
		d.TargetPrice = decimal.NewFromInt(2400)
		ok, reason := rules.Validate(d)
		assert.False(t, ok)
		assert.Contains(t, reason, "invalid target price for BUY")
	})

	t.Run("sell stop below entry", func(t *testing.T) {
		d := valid
		d.Action = models.ActionSell
		d.StopLoss = decimal.NewFromInt(2450)
		d.TargetPrice = decimal.NewFromInt(2400)
		ok, reason := rules.Validate(d)
		assert.False(t, ok)
		assert.Contains(t, reason, "invalid stop loss for SELL")
	})
}
