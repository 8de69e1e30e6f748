package scheduler

import (
	"time"

	"github.com/trogers1052/intraday-trader/internal/config"
)

// DayPhase is the engine's position within the trading day.
type DayPhase string

const (
	PhasePreMarket  DayPhase = "PRE_MARKET"
	PhaseScreening  DayPhase = "SCREENING"
	PhaseTrading    DayPhase = "TRADING"
	PhaseForceExit  DayPhase = "FORCE_EXIT_WINDOW"
	PhasePostMarket DayPhase = "POST_MARKET"
)

// phaseAt derives the day phase from the wall clock and whether the daily
// screening pass has completed.
func phaseAt(cfg config.TradingConfig, now time.Time, screeningDone bool) DayPhase {
	open := cfg.MarketOpen.On(now)
	close := cfg.MarketClose.On(now)
	forceExit := cfg.ForceExitTime.On(now)

	switch {
	case now.Before(open):
		return PhasePreMarket
	case now.After(close):
		return PhasePostMarket
	case !now.Before(forceExit):
		return PhaseForceExit
	case !screeningDone:
		return PhaseScreening
	default:
		return PhaseTrading
	}
}

// inMarketHours reports whether now falls within the trading session,
// inclusive on both ends.
func inMarketHours(cfg config.TradingConfig, now time.Time) bool {
	open := cfg.MarketOpen.On(now)
	close := cfg.MarketClose.On(now)
	return !now.Before(open) && !now.After(close)
}
