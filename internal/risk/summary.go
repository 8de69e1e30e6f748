package risk

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/models"
)

var cautionBand = decimal.RequireFromString("0.7")

// Summary aggregates the day's completed trades into win/loss statistics
// and a human-readable risk status.
func (m *Manager) Summary() models.RiskSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetDailyLocked()

	total := len(m.dailyTrades)
	var wins, losses int
	sumPnL, sumWin, sumLoss := decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range m.dailyTrades {
		sumPnL = sumPnL.Add(t.PnL)
		if t.PnL.IsPositive() {
			wins++
			sumWin = sumWin.Add(t.PnL)
		} else if t.PnL.IsNegative() {
			losses++
			sumLoss = sumLoss.Add(t.PnL)
		}
	}

	s := models.RiskSummary{
		DailyPnL:         m.dailyPnL,
		DailyLossCount:   m.dailyLossCount,
		MaxDrawdownToday: m.maxDrawdownToday,
		TotalTrades:      total,
		WinningTrades:    wins,
		LosingTrades:     losses,
		CurrentCapital:   m.currentCapitalLocked(),
		RiskStatus:       m.statusNarrativeLocked(),
	}

	if total > 0 {
		n := decimal.NewFromInt(int64(total))
		s.WinRatePct = decimal.NewFromInt(int64(wins)).Div(n).Mul(hundred)
		s.AvgPnL = sumPnL.Div(n)
	}
	if wins > 0 {
		s.AvgWin = sumWin.Div(decimal.NewFromInt(int64(wins)))
	}
	if losses > 0 {
		s.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(losses)))
	}
	if m.cfg.InitialCapital.IsPositive() {
		s.CapitalChangePct = m.dailyPnL.Div(m.cfg.InitialCapital).Mul(hundred)
	}

	return s
}

// statusNarrativeLocked mirrors the CheckTradingAllowed thresholds, with a
// CAUTION band at 70% of the loss and drawdown limits.
func (m *Manager) statusNarrativeLocked() string {
	lossLimit := decimal.NewFromInt(int64(m.cfg.MaxDailyLosses))
	lossCount := decimal.NewFromInt(int64(m.dailyLossCount))

	switch {
	case m.dailyLossCount >= m.cfg.MaxDailyLosses:
		return "STOPPED - max daily losses reached"
	case m.maxDrawdownToday.GreaterThanOrEqual(m.cfg.MaxDailyDrawdown):
		return "STOPPED - max drawdown exceeded"
	case m.isNearMarketCloseLocked():
		return "STOPPING - near market close"
	case lossCount.GreaterThanOrEqual(lossLimit.Mul(cautionBand)):
		return "CAUTION - approaching loss limit"
	case m.maxDrawdownToday.GreaterThanOrEqual(m.cfg.MaxDailyDrawdown.Mul(cautionBand)):
		return "CAUTION - approaching drawdown limit"
	default:
		return "NORMAL - trading allowed"
	}
}
