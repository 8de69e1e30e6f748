package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/intraday-trader/internal/clock"
	"github.com/trogers1052/intraday-trader/internal/config"
	"github.com/trogers1052/intraday-trader/internal/models"
	"github.com/trogers1052/intraday-trader/internal/registry"
	"github.com/trogers1052/intraday-trader/internal/risk"
)

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		InitialCapital:      decimal.NewFromInt(100000),
		MaxCapitalPerTrade:  decimal.RequireFromString("0.01"),
		MaxActiveTrades:     2,
		MaxDailyLosses:      3,
		MaxDailyDrawdown:    decimal.RequireFromString("0.05"),
		MinRiskReward:       decimal.RequireFromString("1.5"),
		ConfidenceThreshold: decimal.RequireFromString("0.8"),

		MarketOpen:      config.TimeOfDay{Hour: 9, Minute: 15},
		MarketClose:     config.TimeOfDay{Hour: 15, Minute: 30},
		ForceExitTime:   config.TimeOfDay{Hour: 15, Minute: 10},
		NoEntryCutoff:   config.TimeOfDay{Hour: 15, Minute: 0},
		NearCloseWindow: 10 * time.Minute,

		ActivePollInterval:   time.Minute,
		InactivePollInterval: 10 * time.Minute,
		TickInterval:         30 * time.Second,
		OffHoursInterval:     time.Minute,
		MaxHoldingTime:       4 * time.Hour,
		ExitRetryLimit:       5,
		ScreeningLimit:       10,
	}
}

func midMorning() time.Time {
	return time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
}

// fakePrices serves fixed prices per symbol.
type fakePrices struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func (f *fakePrices) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := f.errs[symbol]; err != nil {
		return decimal.Zero, err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", symbol)
	}
	return p, nil
}

// fakeScreener returns a canned candidate list.
type fakeScreener struct {
	candidates  []models.Candidate
	err         error
	ScreenCalls int
}

func (f *fakeScreener) ScreenTopStocks(ctx context.Context, maxStocks int) ([]models.Candidate, error) {
	f.ScreenCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

// fakeOracle returns scripted decisions per symbol; unknown symbols hold.
type fakeOracle struct {
	decisions map[string]models.Decision
}

func (f *fakeOracle) Decide(ctx context.Context, sc models.SymbolContext) (models.Decision, error) {
	if d, ok := f.decisions[sc.Symbol]; ok {
		return d, nil
	}
	return models.Decision{Symbol: sc.Symbol, Action: models.ActionHold}, nil
}

func (f *fakeOracle) Validate(d models.Decision) (bool, string) {
	if !d.IsActionable() {
		return false, "not actionable"
	}
	return true, "ok"
}

// fakeBroker records operations in order and can fail exits on demand.
type fakeBroker struct {
	Ops               []string
	PlaceCalls        int
	ExitPositionCalls int
	ForceExitAllCalls int
	exitErr           error
}

func (f *fakeBroker) PlaceBracketOrder(ctx context.Context, symbol string, side models.Side, quantity int64, entry, stop, target decimal.Decimal) (string, error) {
	f.PlaceCalls++
	f.Ops = append(f.Ops, "place:"+symbol)
	return fmt.Sprintf("PAPER-%06d", f.PlaceCalls), nil
}

func (f *fakeBroker) ExitPosition(ctx context.Context, symbol string) error {
	f.ExitPositionCalls++
	f.Ops = append(f.Ops, "exit:"+symbol)
	return f.exitErr
}

func (f *fakeBroker) ForceExitAll(ctx context.Context) error {
	f.ForceExitAllCalls++
	f.Ops = append(f.Ops, "forceExitAll")
	return nil
}

// fakeJournal counts calls and records exit reasons.
type fakeJournal struct {
	DecisionCalls  int
	ExecutionCalls int
	ExitReasons    []models.ExitReason
	RiskEvents     []string
	ReportCalls    int
}

func (f *fakeJournal) LogDecision(ctx context.Context, d models.Decision, valid bool, reason string) (string, error) {
	f.DecisionCalls++
	return fmt.Sprintf("DEC_%d", f.DecisionCalls), nil
}

func (f *fakeJournal) LogExecution(ctx context.Context, t *models.ActiveTrade, decisionID, orderRef string) (string, error) {
	f.ExecutionCalls++
	return fmt.Sprintf("TRADE_%d", f.ExecutionCalls), nil
}

func (f *fakeJournal) LogExit(ctx context.Context, t models.ActiveTrade, outcome models.TradeOutcome, reason models.ExitReason) error {
	f.ExitReasons = append(f.ExitReasons, reason)
	return nil
}

func (f *fakeJournal) LogRiskEvent(ctx context.Context, status, detail string) error {
	f.RiskEvents = append(f.RiskEvents, status)
	return nil
}

func (f *fakeJournal) SaveDailyReport(ctx context.Context, summary models.RiskSummary) error {
	f.ReportCalls++
	return nil
}

// fakeNotifier records published events.
type fakeNotifier struct {
	Events []models.AlertEvent
}

func (f *fakeNotifier) Alert(ctx context.Context, event models.AlertEvent) error {
	f.Events = append(f.Events, event)
	return nil
}

func (f *fakeNotifier) eventTypes() []string {
	types := make([]string, 0, len(f.Events))
	for _, e := range f.Events {
		types = append(types, e.EventType)
	}
	return types
}

type fixture struct {
	cfg      config.TradingConfig
	clk      *clock.Fake
	reg      *registry.Registry
	risk     *risk.Manager
	prices   *fakePrices
	screener *fakeScreener
	oracle   *fakeOracle
	broker   *fakeBroker
	journal  *fakeJournal
	notifier *fakeNotifier
	sched    *Scheduler
}

func newFixture(t *testing.T, at time.Time) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, at, testTradingConfig())
}

func newFixtureWithConfig(t *testing.T, at time.Time, cfg config.TradingConfig) *fixture {
	t.Helper()
	cfg.SymbolDelay = 0
	clk := clock.NewFake(at)
	reg := registry.New()
	riskMgr := risk.NewManager(cfg, clk)
	f := &fixture{
		cfg:      cfg,
		clk:      clk,
		reg:      reg,
		risk:     riskMgr,
		prices:   &fakePrices{prices: map[string]decimal.Decimal{}, errs: map[string]error{}},
		screener: &fakeScreener{},
		oracle:   &fakeOracle{decisions: map[string]models.Decision{}},
		broker:   &fakeBroker{},
		journal:  &fakeJournal{},
		notifier: &fakeNotifier{},
	}
	f.sched = New(cfg, clk, Deps{
		Registry: reg,
		Risk:     riskMgr,
		Prices:   f.prices,
		Screener: f.screener,
		Oracle:   f.oracle,
		Broker:   f.broker,
		Journal:  f.journal,
		Notifier: f.notifier,
	})
	return f
}

func buyDecision(symbol string) models.Decision {
	return models.Decision{
		Symbol:          symbol,
		Action:          models.ActionBuy,
		Confidence:      decimal.RequireFromString("0.85"),
		EntryPrice:      decimal.NewFromInt(2500),
		StopLoss:        decimal.NewFromInt(2450),
		TargetPrice:     decimal.NewFromInt(2600),
		RiskRewardRatio: decimal.NewFromInt(2),
	}
}

func candidate(symbol string) models.Candidate {
	return models.Candidate{
		Symbol:         symbol,
		CurrentPrice:   decimal.NewFromInt(2500),
		VolumeRatio:    decimal.NewFromInt(2),
		RSI:            decimal.NewFromInt(35),
		VWAP:           decimal.NewFromInt(2480),
		AboveVWAP:      true,
		ScreeningScore: decimal.NewFromInt(1),
	}
}

func openTrade(symbol string, side models.Side, entryAt time.Time) *models.ActiveTrade {
	return &models.ActiveTrade{
		TradeID:      "TRADE_SEED",
		Symbol:       symbol,
		Side:         side,
		EntryTime:    entryAt,
		EntryPrice:   decimal.NewFromInt(2500),
		StopLoss:     decimal.NewFromInt(2450),
		TargetPrice:  decimal.NewFromInt(2600),
		Quantity:     20,
		CurrentPrice: decimal.NewFromInt(2500),
	}
}

func TestScreeningRunsOncePerDay(t *testing.T) {
	f := newFixture(t, midMorning())
	f.screener.candidates = []models.Candidate{candidate("RELIANCE")}
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2500)

	ctx := context.Background()
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.screener.ScreenCalls)
	assert.Equal(t, 1, f.reg.MonitoredCount())

	f.clk.Advance(time.Minute)
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.screener.ScreenCalls, "screening must not repeat within a day")
}

func TestScreeningFailureRetriesNextTick(t *testing.T) {
	f := newFixture(t, midMorning())
	f.screener.err = fmt.Errorf("feed down")

	ctx := context.Background()
	f.sched.Tick(ctx)
	require.Equal(t, 1, f.screener.ScreenCalls)

	f.screener.err = nil
	f.screener.candidates = []models.Candidate{candidate("RELIANCE")}
	f.clk.Advance(time.Minute)
	f.sched.Tick(ctx)
	assert.Equal(t, 2, f.screener.ScreenCalls)
	assert.Equal(t, 1, f.reg.MonitoredCount())
}

func TestEntryFlow(t *testing.T) {
	f := newFixture(t, midMorning())
	f.screener.candidates = []models.Candidate{candidate("RELIANCE")}
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2500)
	f.oracle.decisions["RELIANCE"] = buyDecision("RELIANCE")

	f.sched.Tick(context.Background())

	require.Equal(t, 1, f.broker.PlaceCalls)
	trade, ok := f.reg.Trade("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, "TRADE_1", trade.TradeID)
	assert.Equal(t, int64(20), trade.Quantity, "sized from the 1000 risk budget at 50 risk per share")
	assert.Equal(t, models.SideBuy, trade.Side)

	stock, _ := f.reg.Monitored("RELIANCE")
	assert.True(t, stock.IsActiveTrade)
	assert.Contains(t, f.notifier.eventTypes(), models.EventTradeOpened)
	assert.Equal(t, 1, f.journal.DecisionCalls)
	assert.Equal(t, 1, f.journal.ExecutionCalls)
}

func TestExitConditions(t *testing.T) {
	tests := []struct {
		name       string
		side       models.Side
		price      int64
		heldFor    time.Duration
		wantReason models.ExitReason
	}{
		{"buy stop loss", models.SideBuy, 2450, time.Hour, models.ExitStopLoss},
		{"buy target", models.SideBuy, 2600, time.Hour, models.ExitTarget},
		{"time limit", models.SideBuy, 2520, 4*time.Hour + time.Minute, models.ExitTimeLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, midMorning())
			f.reg.AddTrade(openTrade("RELIANCE", tt.side, midMorning().Add(-tt.heldFor)))
			f.prices.prices["RELIANCE"] = decimal.NewFromInt(tt.price)

			f.sched.Tick(context.Background())

			assert.Equal(t, 1, f.broker.ExitPositionCalls)
			require.Len(t, f.journal.ExitReasons, 1)
			assert.Equal(t, tt.wantReason, f.journal.ExitReasons[0])

			_, stillOpen := f.reg.Trade("RELIANCE")
			assert.False(t, stillOpen)
			assert.Equal(t, 1, f.risk.Summary().TotalTrades)
		})
	}

	t.Run("stop beats target when both would fire", func(t *testing.T) {
		f := newFixture(t, midMorning())
		trade := openTrade("RELIANCE", models.SideBuy, midMorning().Add(-time.Hour))
		// inverted bracket: stop above target
		trade.StopLoss = decimal.NewFromInt(2550)
		trade.TargetPrice = decimal.NewFromInt(2520)
		f.reg.AddTrade(trade)
		f.prices.prices["RELIANCE"] = decimal.NewFromInt(2540)

		f.sched.Tick(context.Background())

		require.Len(t, f.journal.ExitReasons, 1)
		assert.Equal(t, models.ExitStopLoss, f.journal.ExitReasons[0])
	})

	t.Run("no exit inside the bracket", func(t *testing.T) {
		f := newFixture(t, midMorning())
		f.reg.AddTrade(openTrade("RELIANCE", models.SideBuy, midMorning().Add(-time.Hour)))
		f.prices.prices["RELIANCE"] = decimal.NewFromInt(2520)

		f.sched.Tick(context.Background())

		assert.Zero(t, f.broker.ExitPositionCalls)
		trade, ok := f.reg.Trade("RELIANCE")
		require.True(t, ok)
		assert.True(t, trade.UnrealizedPnL.Equal(decimal.NewFromInt(400)), "pnl = %s", trade.UnrealizedPnL)
	})
}

func TestForceExitTriggersOnce(t *testing.T) {
	at := time.Date(2026, 1, 15, 15, 10, 0, 0, time.UTC)
	f := newFixture(t, at)
	f.reg.AddTrade(openTrade("RELIANCE", models.SideBuy, at.Add(-2*time.Hour)))
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2520)

	ctx := context.Background()
	f.sched.Tick(ctx)

	assert.Equal(t, 1, f.broker.ExitPositionCalls)
	assert.Equal(t, 1, f.broker.ForceExitAllCalls)
	require.Len(t, f.journal.ExitReasons, 1)
	assert.Equal(t, models.ExitForced, f.journal.ExitReasons[0])
	assert.Equal(t, 0, f.reg.ActiveCount())

	// further ticks in the window must not sweep again
	f.clk.Advance(time.Minute)
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.broker.ForceExitAllCalls)
}

func TestMaxActiveTradesCap(t *testing.T) {
	cfg := testTradingConfig()
	cfg.MaxActiveTrades = 1
	f := newFixtureWithConfig(t, midMorning(), cfg)

	f.screener.candidates = []models.Candidate{candidate("INFY"), candidate("RELIANCE")}
	f.prices.prices["INFY"] = decimal.NewFromInt(2500)
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2500)
	f.oracle.decisions["INFY"] = buyDecision("INFY")
	f.oracle.decisions["RELIANCE"] = buyDecision("RELIANCE")

	f.sched.Tick(context.Background())

	assert.Equal(t, 1, f.broker.PlaceCalls)
	assert.Equal(t, 1, f.reg.ActiveCount())
}

func TestPerSymbolErrorIsolation(t *testing.T) {
	f := newFixture(t, midMorning())
	f.screener.candidates = []models.Candidate{candidate("INFY"), candidate("RELIANCE")}
	f.prices.errs["INFY"] = fmt.Errorf("feed down")
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2500)
	f.oracle.decisions["RELIANCE"] = buyDecision("RELIANCE")

	f.sched.Tick(context.Background())

	assert.Equal(t, 1, f.broker.PlaceCalls, "healthy symbol must still trade")
	_, ok := f.reg.Trade("RELIANCE")
	assert.True(t, ok)
}

func TestExitRetryEscalation(t *testing.T) {
	cfg := testTradingConfig()
	cfg.ExitRetryLimit = 2
	f := newFixtureWithConfig(t, midMorning(), cfg)

	f.reg.AddTrade(openTrade("RELIANCE", models.SideBuy, midMorning().Add(-time.Hour)))
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2400) // stop hit
	f.broker.exitErr = fmt.Errorf("exchange reject")

	ctx := context.Background()
	f.sched.Tick(ctx)

	trade, ok := f.reg.Trade("RELIANCE")
	require.True(t, ok, "failed exit keeps the trade open")
	assert.Equal(t, 1, trade.ExitAttempts)
	assert.NotContains(t, f.notifier.eventTypes(), models.EventRiskAlert)

	f.clk.Advance(time.Minute)
	f.sched.Tick(ctx)

	trade, _ = f.reg.Trade("RELIANCE")
	assert.Equal(t, 2, trade.ExitAttempts)
	assert.Contains(t, f.notifier.eventTypes(), models.EventRiskAlert)
	assert.Contains(t, f.journal.RiskEvents, "EXIT_STUCK")

	var critical *models.AlertEvent
	for i := range f.notifier.Events {
		if f.notifier.Events[i].EventType == models.EventRiskAlert {
			critical = &f.notifier.Events[i]
		}
	}
	require.NotNil(t, critical)
	assert.Equal(t, models.SeverityCritical, critical.Severity)
}

func TestDayRollover(t *testing.T) {
	f := newFixture(t, midMorning())
	f.screener.candidates = []models.Candidate{candidate("RELIANCE")}
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2500)

	ctx := context.Background()
	f.sched.Tick(ctx)
	require.Equal(t, 1, f.screener.ScreenCalls)
	require.Equal(t, 1, f.reg.MonitoredCount())

	// next trading day, same time
	f.clk.Advance(24 * time.Hour)
	f.sched.Tick(ctx)

	assert.Equal(t, 2, f.screener.ScreenCalls, "new day reruns screening")
	assert.Equal(t, 1, f.reg.MonitoredCount(), "registry rebuilt, not accumulated")

	// a second tick the same day must not reset again
	f.clk.Advance(time.Minute)
	f.sched.Tick(ctx)
	assert.Equal(t, 2, f.screener.ScreenCalls)
}

func TestExitsRunBeforeEntries(t *testing.T) {
	f := newFixture(t, midMorning())
	f.reg.AddTrade(openTrade("TCS", models.SideBuy, midMorning().Add(-time.Hour)))
	f.prices.prices["TCS"] = decimal.NewFromInt(2450) // stop hit
	f.screener.candidates = []models.Candidate{candidate("RELIANCE")}
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2500)
	f.oracle.decisions["RELIANCE"] = buyDecision("RELIANCE")

	f.sched.Tick(context.Background())

	require.Len(t, f.broker.Ops, 2)
	assert.Equal(t, "exit:TCS", f.broker.Ops[0])
	assert.Equal(t, "place:RELIANCE", f.broker.Ops[1])
}

func TestNoEntriesNearClose(t *testing.T) {
	// inside the blackout window but before the force exit
	at := time.Date(2026, 1, 15, 15, 5, 0, 0, time.UTC)
	f := newFixture(t, at)
	f.screener.candidates = []models.Candidate{candidate("RELIANCE")}
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2500)
	f.oracle.decisions["RELIANCE"] = buyDecision("RELIANCE")
	// an open position keeps being monitored
	f.reg.AddTrade(openTrade("TCS", models.SideBuy, at.Add(-time.Hour)))
	f.prices.prices["TCS"] = decimal.NewFromInt(2450)

	f.sched.Tick(context.Background())

	assert.Zero(t, f.broker.PlaceCalls, "no entries in the blackout")
	assert.Equal(t, 1, f.broker.ExitPositionCalls, "exits still run")
}

func TestOutsideMarketHours(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	f.screener.candidates = []models.Candidate{candidate("RELIANCE")}

	f.sched.Tick(context.Background())

	assert.Zero(t, f.screener.ScreenCalls)
	assert.Zero(t, f.broker.PlaceCalls)
}

func TestDailyReportPublishedOnceAfterClose(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 15, 15, 35, 0, 0, time.UTC))

	ctx := context.Background()
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.journal.ReportCalls)
	assert.Contains(t, f.notifier.eventTypes(), models.EventDailySummary)

	f.clk.Advance(time.Minute)
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.journal.ReportCalls, "report is published once")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, midMorning())
	f.screener.candidates = []models.Candidate{candidate("RELIANCE")}
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2500)

	f.sched.Tick(context.Background())
	status := f.sched.Status()

	assert.False(t, status.IsRunning)
	assert.Equal(t, PhaseTrading, status.Phase)
	assert.True(t, status.IsMarketHours)
	assert.True(t, status.DailyScreeningDone)
	assert.Equal(t, []string{"RELIANCE"}, status.Watchlist)
	assert.Equal(t, 1, status.MonitoredStocks)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, midMorning())

	require.NoError(t, f.sched.Start())
	assert.True(t, f.sched.IsRunning())
	assert.Error(t, f.sched.Start(), "double start must fail")

	f.sched.Stop()
	assert.False(t, f.sched.IsRunning())
	assert.Contains(t, f.notifier.eventTypes(), models.EventEngineStarted)
	assert.Contains(t, f.notifier.eventTypes(), models.EventEngineStopped)
}

func TestStopSweepsOpenPositions(t *testing.T) {
	f := newFixture(t, midMorning())
	f.reg.AddTrade(openTrade("RELIANCE", models.SideBuy, midMorning().Add(-time.Hour)))
	f.prices.prices["RELIANCE"] = decimal.NewFromInt(2520)

	require.NoError(t, f.sched.Start())
	f.sched.Stop()

	assert.Equal(t, 1, f.broker.ExitPositionCalls)
	require.Len(t, f.journal.ExitReasons, 1)
	assert.Equal(t, models.ExitShutdown, f.journal.ExitReasons[0])
	assert.Equal(t, 0, f.reg.ActiveCount())
}
