// Package risk is the sole authority on position sizing, trade approval,
// and account-wide trading permission.
package risk

import (
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/clock"
	"github.com/trogers1052/intraday-trader/internal/config"
	"github.com/trogers1052/intraday-trader/internal/models"
)

var (
	capitalBuffer = decimal.RequireFromString("0.9") // keep 10% of capital uncommitted
	hundred       = decimal.NewFromInt(100)
)

// Manager tracks the day's risk state and enforces the trading limits.
// All mutation happens behind its mutex; callers receive value snapshots.
type Manager struct {
	cfg config.TradingConfig
	clk clock.Clock

	mu                sync.Mutex
	dailyTrades       []models.TradeOutcome
	dailyPnL          decimal.Decimal
	dailyLossCount    int
	maxDrawdownToday  decimal.Decimal
	startOfDayCapital decimal.Decimal
	lastResetDate     time.Time
}

// NewManager creates a risk manager seeded with the configured capital.
func NewManager(cfg config.TradingConfig, clk clock.Clock) *Manager {
	return &Manager{
		cfg:               cfg,
		clk:               clk,
		startOfDayCapital: cfg.InitialCapital,
		lastResetDate:     dateOf(clk.Now()),
	}
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ResetDaily applies the date-rollover check. The reset runs at most once
// per calendar date; it clears all daily counters and re-anchors the
// start-of-day capital.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyLocked()
}

func (m *Manager) resetDailyLocked() {
	today := dateOf(m.clk.Now())
	if today.Equal(m.lastResetDate) {
		return
	}

	log.Printf("risk: resetting daily metrics for %s", today.Format("2006-01-02"))
	m.startOfDayCapital = m.currentCapitalLocked()
	m.dailyTrades = nil
	m.dailyPnL = decimal.Zero
	m.dailyLossCount = 0
	m.maxDrawdownToday = decimal.Zero
	m.lastResetDate = today
}

// CurrentCapital is the account's live capital: initial capital plus the
// day's P&L. All limit checks tighten against this, not the static
// initial capital.
func (m *Manager) CurrentCapital() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentCapitalLocked()
}

func (m *Manager) currentCapitalLocked() decimal.Decimal {
	return m.cfg.InitialCapital.Add(m.dailyPnL)
}

// PositionSize computes the share quantity for a trade risking at most
// MaxCapitalPerTrade of the given capital, capped so the position value
// leaves a 10% capital buffer. Returns the quantity and the actual
// amount at risk; quantity 0 means the trade cannot be sized.
func PositionSize(entryPrice, stopLoss, capital, maxCapitalPerTrade decimal.Decimal) (int64, decimal.Decimal) {
	riskPerShare := entryPrice.Sub(stopLoss).Abs()
	if !riskPerShare.IsPositive() {
		return 0, decimal.Zero
	}

	riskAmount := capital.Mul(maxCapitalPerTrade)
	quantity := riskAmount.Div(riskPerShare).Floor().IntPart()

	maxValue := capital.Mul(capitalBuffer)
	if decimal.NewFromInt(quantity).Mul(entryPrice).GreaterThan(maxValue) {
		quantity = maxValue.Div(entryPrice).Floor().IntPart()
	}

	actualRisk := decimal.NewFromInt(quantity).Mul(riskPerShare)
	return quantity, actualRisk
}

// CalculatePositionSize sizes a trade against the account's current capital.
func (m *Manager) CalculatePositionSize(entryPrice, stopLoss decimal.Decimal) (int64, decimal.Decimal) {
	m.mu.Lock()
	capital := m.currentCapitalLocked()
	m.mu.Unlock()

	quantity, risk := PositionSize(entryPrice, stopLoss, capital, m.cfg.MaxCapitalPerTrade)
	if quantity > 0 {
		log.Printf("risk: position sized qty=%d risk=%s", quantity, risk.StringFixed(2))
	}
	return quantity, risk
}

// ValidateTradeRisk checks a proposed trade against the per-trade limits.
// Rejections are evaluated in a fixed order: invalid stop, risk-reward
// ratio below minimum, unsizeable quantity, capital-at-risk above the cap.
func (m *Manager) ValidateTradeRisk(symbol string, entryPrice, stopLoss, targetPrice, confidence decimal.Decimal) models.RiskMetrics {
	m.mu.Lock()
	m.resetDailyLocked()
	capital := m.currentCapitalLocked()
	m.mu.Unlock()

	riskPerShare := entryPrice.Sub(stopLoss).Abs()
	rewardPerShare := targetPrice.Sub(entryPrice).Abs()

	if !riskPerShare.IsPositive() {
		return models.RiskMetrics{RejectionReason: "invalid stop loss price"}
	}

	riskRewardRatio := rewardPerShare.Div(riskPerShare)
	if riskRewardRatio.LessThan(m.cfg.MinRiskReward) {
		return models.RiskMetrics{
			RiskRewardRatio: riskRewardRatio,
			RejectionReason: "risk-reward ratio " + riskRewardRatio.StringFixed(2) +
				" below minimum " + m.cfg.MinRiskReward.String(),
		}
	}

	quantity, riskAmount := PositionSize(entryPrice, stopLoss, capital, m.cfg.MaxCapitalPerTrade)
	if quantity <= 0 {
		return models.RiskMetrics{
			RiskRewardRatio: riskRewardRatio,
			RejectionReason: "cannot calculate valid position size",
		}
	}

	rewardAmount := decimal.NewFromInt(quantity).Mul(rewardPerShare)
	capitalAtRiskPct := riskAmount.Div(capital)

	if capitalAtRiskPct.GreaterThan(m.cfg.MaxCapitalPerTrade) {
		return models.RiskMetrics{
			PositionSize:     quantity,
			RiskAmount:       riskAmount,
			RewardAmount:     rewardAmount,
			RiskRewardRatio:  riskRewardRatio,
			CapitalAtRiskPct: capitalAtRiskPct,
			RejectionReason: "capital at risk " + capitalAtRiskPct.Mul(hundred).StringFixed(1) +
				"% exceeds limit " + m.cfg.MaxCapitalPerTrade.Mul(hundred).StringFixed(1) + "%",
		}
	}

	return models.RiskMetrics{
		PositionSize:     quantity,
		RiskAmount:       riskAmount,
		RewardAmount:     rewardAmount,
		RiskRewardRatio:  riskRewardRatio,
		CapitalAtRiskPct: capitalAtRiskPct,
		IsWithinLimits:   true,
	}
}

// CheckTradingAllowed derives the account risk snapshot from the current
// open positions and decides whether new entries are permitted. The daily
// reset check always runs first so no stale-day state leaks into a new
// day's first decision.
func (m *Manager) CheckTradingAllowed(activePositions map[string]models.ActiveTrade) models.AccountRiskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetDailyLocked()

	unrealized := decimal.Zero
	for _, pos := range activePositions {
		unrealized = unrealized.Add(pos.UnrealizedPnL)
	}
	m.dailyPnL = unrealized

	capital := m.currentCapitalLocked()
	if capital.LessThan(m.startOfDayCapital) && m.startOfDayCapital.IsPositive() {
		drawdown := m.startOfDayCapital.Sub(capital).Div(m.startOfDayCapital)
		if drawdown.GreaterThan(m.maxDrawdownToday) {
			m.maxDrawdownToday = drawdown
		}
	}

	allowed := true
	status := models.RiskStatusNormal
	switch {
	case len(activePositions) >= m.cfg.MaxActiveTrades:
		allowed = false
		status = models.RiskStatusMaxTrades
	case m.dailyLossCount >= m.cfg.MaxDailyLosses:
		allowed = false
		status = models.RiskStatusMaxLosses
	case m.maxDrawdownToday.GreaterThanOrEqual(m.cfg.MaxDailyDrawdown):
		allowed = false
		status = models.RiskStatusMaxDrawdown
	case m.isNearMarketCloseLocked():
		allowed = false
		status = models.RiskStatusNearClose
	}

	return models.AccountRiskSnapshot{
		TotalCapital:     m.cfg.InitialCapital,
		AvailableCapital: capital,
		UsedCapital:      m.cfg.InitialCapital.Sub(capital),
		DailyPnL:         m.dailyPnL,
		DailyLossCount:   m.dailyLossCount,
		MaxDrawdownToday: m.maxDrawdownToday,
		ActiveTradeCount: len(activePositions),
		IsTradingAllowed: allowed,
		RiskStatus:       status,
	}
}

// isNearMarketCloseLocked reports whether the entry blackout applies: at
// or past the no-entry cutoff, or within the configured window before it.
func (m *Manager) isNearMarketCloseLocked() bool {
	now := m.clk.Now()
	cutoff := m.cfg.NoEntryCutoff.On(now)
	if !now.Before(cutoff) {
		return true
	}
	return cutoff.Sub(now) < m.cfg.NearCloseWindow
}

// RecordTradeOutcome books a completed round trip into the daily metrics.
func (m *Manager) RecordTradeOutcome(symbol string, entryPrice, exitPrice decimal.Decimal, quantity int64, side models.Side) models.TradeOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	qty := decimal.NewFromInt(quantity)
	var pnl decimal.Decimal
	if side == models.SideBuy {
		pnl = exitPrice.Sub(entryPrice).Mul(qty)
	} else {
		pnl = entryPrice.Sub(exitPrice).Mul(qty)
	}

	pnlPct := decimal.Zero
	if cost := entryPrice.Mul(qty); cost.IsPositive() {
		pnlPct = pnl.Div(cost).Mul(hundred)
	}

	outcome := models.TradeOutcome{
		Symbol:     symbol,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Quantity:   quantity,
		Side:       side,
		PnL:        pnl,
		PnLPct:     pnlPct,
		IsLoss:     pnl.IsNegative(),
		Timestamp:  m.clk.Now(),
	}

	m.dailyTrades = append(m.dailyTrades, outcome)
	m.dailyPnL = m.dailyPnL.Add(pnl)
	if outcome.IsLoss {
		m.dailyLossCount++
		log.Printf("risk: loss recorded %s pnl=%s (%s%%)", symbol, pnl.StringFixed(2), pnlPct.StringFixed(2))
	} else {
		log.Printf("risk: profit recorded %s pnl=%s (%s%%)", symbol, pnl.StringFixed(2), pnlPct.StringFixed(2))
	}

	return outcome
}
