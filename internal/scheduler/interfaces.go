package scheduler

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/models"
)

// MarketDataSource supplies last-traded prices.
type MarketDataSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// CandidateScreener runs the daily screening pass.
type CandidateScreener interface {
	ScreenTopStocks(ctx context.Context, maxStocks int) ([]models.Candidate, error)
}

// DecisionOracle turns a symbol snapshot into a trade recommendation and
// validates it against the configured thresholds.
type DecisionOracle interface {
	Decide(ctx context.Context, sc models.SymbolContext) (models.Decision, error)
	Validate(d models.Decision) (bool, string)
}

// ExecutionBroker places and closes orders.
type ExecutionBroker interface {
	PlaceBracketOrder(ctx context.Context, symbol string, side models.Side, quantity int64, entry, stop, target decimal.Decimal) (string, error)
	ExitPosition(ctx context.Context, symbol string) error
	ForceExitAll(ctx context.Context) error
}

// TradeJournal records decisions and the trade lifecycle. Journal failures
// never block trading; callers log and continue.
type TradeJournal interface {
	LogDecision(ctx context.Context, d models.Decision, valid bool, reason string) (string, error)
	LogExecution(ctx context.Context, t *models.ActiveTrade, decisionID, orderRef string) (string, error)
	LogExit(ctx context.Context, t models.ActiveTrade, outcome models.TradeOutcome, reason models.ExitReason) error
	LogRiskEvent(ctx context.Context, status, detail string) error
	SaveDailyReport(ctx context.Context, summary models.RiskSummary) error
}

// Notifier publishes alert events for downstream consumers. Best effort.
type Notifier interface {
	Alert(ctx context.Context, event models.AlertEvent) error
}
