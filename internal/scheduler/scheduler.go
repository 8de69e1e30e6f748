// Package scheduler runs the trading day: daily screening, two-cadence
// polling of watched symbols and open positions, exit handling, and the
// force-exit sweep before market close.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/clock"
	"github.com/trogers1052/intraday-trader/internal/config"
	"github.com/trogers1052/intraday-trader/internal/models"
	"github.com/trogers1052/intraday-trader/internal/registry"
	"github.com/trogers1052/intraday-trader/internal/risk"
)

// Scheduler is the single control loop of the engine. It is the only
// writer of the trade registry; other goroutines read snapshots.
type Scheduler struct {
	cfg      config.TradingConfig
	clk      clock.Clock
	reg      *registry.Registry
	risk     *risk.Manager
	prices   MarketDataSource
	screener CandidateScreener
	oracle   DecisionOracle
	broker   ExecutionBroker
	journal  TradeJournal
	notifier Notifier

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	snap    daily // copy of the daily state, updated after each tick

	// daily state, touched only from the loop goroutine (or Tick in tests)
	currentDay         time.Time
	screeningDone      bool
	forceExitTriggered bool
	reportDone         bool
	lastScreening      time.Time
	lastActivePoll     time.Time
	lastInactivePoll   time.Time

	// screening metrics kept for decision context until the next rollover
	candidates map[string]models.Candidate
}

// Deps bundles the scheduler's collaborators.
type Deps struct {
	Registry *registry.Registry
	Risk     *risk.Manager
	Prices   MarketDataSource
	Screener CandidateScreener
	Oracle   DecisionOracle
	Broker   ExecutionBroker
	Journal  TradeJournal
	Notifier Notifier
}

func New(cfg config.TradingConfig, clk clock.Clock, deps Deps) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		clk:        clk,
		reg:        deps.Registry,
		risk:       deps.Risk,
		prices:     deps.Prices,
		screener:   deps.Screener,
		oracle:     deps.Oracle,
		broker:     deps.Broker,
		journal:    deps.Journal,
		notifier:   deps.Notifier,
		candidates: make(map[string]models.Candidate),
	}
}

// Start launches the polling loop. It returns an error if the scheduler
// is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	log.Printf("scheduler: starting polling loop (tick=%s)", s.cfg.TickInterval)
	s.alert(context.Background(), models.AlertEvent{
		EventType: models.EventEngineStarted,
		Severity:  models.SeverityInfo,
		Message:   "trading engine started",
		Timestamp: s.clk.Now(),
	})

	go s.run()
	return nil
}

// Stop signals the loop to finish and blocks until it has. Any open
// positions are swept with a best-effort shutdown exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	log.Printf("scheduler: stopped")
}

// IsRunning reports whether the loop goroutine is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	ctx := context.Background()
	for {
		interval := s.cfg.TickInterval
		if !inMarketHours(s.cfg, s.clk.Now()) {
			interval = s.cfg.OffHoursInterval
		}

		select {
		case <-s.stopCh:
			s.shutdownSweep(ctx)
			s.alert(ctx, models.AlertEvent{
				EventType: models.EventEngineStopped,
				Severity:  models.SeverityInfo,
				Message:   "trading engine stopped",
				Timestamp: s.clk.Now(),
			})
			return
		case <-time.After(interval):
			s.Tick(ctx)
		}
	}
}

// daily is the per-day loop state that Status publishes.
type daily struct {
	screeningDone      bool
	forceExitTriggered bool
	lastScreening      time.Time
	lastActivePoll     time.Time
	lastInactivePoll   time.Time
}

// Tick executes one scheduling pass. Exits always run before entries.
func (s *Scheduler) Tick(ctx context.Context) {
	defer s.publishSnapshot()

	now := s.clk.Now()
	s.rolloverIfNewDay(now)

	if !inMarketHours(s.cfg, now) {
		s.maybePublishDailyReport(ctx, now)
		return
	}

	if s.forceExitDue(now) {
		s.forceExitAll(ctx, now)
		return
	}

	if !s.screeningDone {
		s.runScreening(ctx, now)
	}

	if s.lastActivePoll.IsZero() || now.Sub(s.lastActivePoll) >= s.cfg.ActivePollInterval {
		s.pollActiveTrades(ctx, now)
		s.lastActivePoll = now
	}

	if s.lastInactivePoll.IsZero() || now.Sub(s.lastInactivePoll) >= s.cfg.InactivePollInterval {
		s.pollMonitoredStocks(ctx, now)
		s.lastInactivePoll = now
	}
}

// rolloverIfNewDay clears all daily state the first time a tick lands on
// a new calendar date. The reset happens before any risk computation.
func (s *Scheduler) rolloverIfNewDay(now time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if s.currentDay.IsZero() {
		s.currentDay = day
		return
	}
	if !day.After(s.currentDay) {
		return
	}

	log.Printf("scheduler: new trading day %s, resetting daily state", day.Format("2006-01-02"))
	s.currentDay = day
	s.screeningDone = false
	s.forceExitTriggered = false
	s.reportDone = false
	s.lastScreening = time.Time{}
	s.lastActivePoll = time.Time{}
	s.lastInactivePoll = time.Time{}
	s.candidates = make(map[string]models.Candidate)
	s.reg.Clear()
	s.risk.ResetDaily()
}

func (s *Scheduler) forceExitDue(now time.Time) bool {
	return !now.Before(s.cfg.ForceExitTime.On(now)) && !s.forceExitTriggered
}

// forceExitAll closes every open position at the force-exit deadline and
// then sweeps the broker's book for anything the registry missed.
func (s *Scheduler) forceExitAll(ctx context.Context, now time.Time) {
	log.Printf("scheduler: force exit window reached, closing all positions")

	for symbol, trade := range s.reg.ActiveTrades() {
		if err := s.exitTrade(ctx, trade, models.ExitForced, now); err != nil {
			log.Printf("scheduler: force exit %s: %v", symbol, err)
		}
	}

	if err := s.broker.ForceExitAll(ctx); err != nil {
		log.Printf("scheduler: broker force-exit sweep: %v", err)
	}
	s.forceExitTriggered = true
}

// shutdownSweep is the best-effort exit pass on Stop. Failures are logged
// only; shutdown never blocks on the broker.
func (s *Scheduler) shutdownSweep(ctx context.Context) {
	trades := s.reg.ActiveTrades()
	if len(trades) == 0 {
		return
	}

	log.Printf("scheduler: shutdown with %d open positions, sweeping", len(trades))
	now := s.clk.Now()
	for symbol, trade := range trades {
		if err := s.exitTrade(ctx, trade, models.ExitShutdown, now); err != nil {
			log.Printf("scheduler: shutdown exit %s: %v", symbol, err)
		}
	}
}

// runScreening performs the once-per-day screening pass. screeningDone is
// only set on success so a failed pass retries next tick.
func (s *Scheduler) runScreening(ctx context.Context, now time.Time) {
	candidates, err := s.screener.ScreenTopStocks(ctx, s.cfg.ScreeningLimit)
	if err != nil {
		log.Printf("scheduler: daily screening failed: %v", err)
		return
	}

	for _, cand := range candidates {
		s.candidates[cand.Symbol] = cand
		s.reg.AddMonitored(&models.MonitoredStock{
			Symbol:         cand.Symbol,
			AddedAt:        now,
			LastAnalysisAt: now,
			SentimentScore: cand.SentimentScore,
			TechnicalScore: cand.ScreeningScore,
		})
	}

	s.screeningDone = true
	s.lastScreening = now
	log.Printf("scheduler: daily screening complete, %d symbols selected", len(candidates))
}

// pollActiveTrades checks every open position for exit conditions.
// Per-symbol failures are isolated so one broken feed cannot stall the
// rest of the book.
func (s *Scheduler) pollActiveTrades(ctx context.Context, now time.Time) {
	trades := s.reg.ActiveTrades()
	if len(trades) == 0 {
		return
	}

	log.Printf("scheduler: monitoring %d active trades", len(trades))
	for symbol, trade := range trades {
		if err := s.monitorTrade(ctx, trade, now); err != nil {
			log.Printf("scheduler: monitoring %s: %v", symbol, err)
		}
		s.pause()
	}
}

// monitorTrade marks the position to market and applies the exit
// conditions in priority order: stop loss, target, holding-time ceiling,
// force-exit deadline.
func (s *Scheduler) monitorTrade(ctx context.Context, trade models.ActiveTrade, now time.Time) error {
	price, err := s.prices.CurrentPrice(ctx, trade.Symbol)
	if err != nil {
		return fmt.Errorf("failed to get current price: %w", err)
	}

	trade.MarkToMarket(price, now)
	s.reg.UpdateTrade(&trade)

	reason, shouldExit := exitCondition(s.cfg, trade, now)
	if !shouldExit {
		return nil
	}
	return s.exitTrade(ctx, trade, reason, now)
}

func exitCondition(cfg config.TradingConfig, t models.ActiveTrade, now time.Time) (models.ExitReason, bool) {
	price := t.CurrentPrice

	switch t.Side {
	case models.SideBuy:
		if price.LessThanOrEqual(t.StopLoss) {
			return models.ExitStopLoss, true
		}
		if price.GreaterThanOrEqual(t.TargetPrice) {
			return models.ExitTarget, true
		}
	case models.SideSell:
		if price.GreaterThanOrEqual(t.StopLoss) {
			return models.ExitStopLoss, true
		}
		if price.LessThanOrEqual(t.TargetPrice) {
			return models.ExitTarget, true
		}
	}

	if now.Sub(t.EntryTime) > cfg.MaxHoldingTime {
		return models.ExitTimeLimit, true
	}
	if !now.Before(cfg.ForceExitTime.On(now)) {
		return models.ExitForced, true
	}
	return "", false
}

// exitTrade closes the position with the broker and settles the trade:
// outcome recording, journal, notification, registry removal. Exit
// failures bump the retry counter; at the retry limit a critical alert
// escalates the stuck position.
func (s *Scheduler) exitTrade(ctx context.Context, trade models.ActiveTrade, reason models.ExitReason, now time.Time) error {
	log.Printf("scheduler: exiting %s (%s)", trade.Symbol, reason)

	if err := s.broker.ExitPosition(ctx, trade.Symbol); err != nil {
		trade.ExitAttempts++
		s.reg.UpdateTrade(&trade)

		if trade.ExitAttempts >= s.cfg.ExitRetryLimit {
			msg := fmt.Sprintf("exit for %s failed %d times, manual intervention required",
				trade.Symbol, trade.ExitAttempts)
			log.Printf("scheduler: CRITICAL: %s", msg)
			s.alert(ctx, models.AlertEvent{
				EventType: models.EventRiskAlert,
				Severity:  models.SeverityCritical,
				Symbol:    trade.Symbol,
				Message:   msg,
				Trade:     &trade,
				Timestamp: now,
			})
			s.journalRiskEvent(ctx, "EXIT_STUCK", msg)
		}
		return fmt.Errorf("failed to exit position: %w", err)
	}

	outcome := s.risk.RecordTradeOutcome(trade.Symbol, trade.EntryPrice, trade.CurrentPrice, trade.Quantity, trade.Side)

	if err := s.journal.LogExit(ctx, trade, outcome, reason); err != nil {
		log.Printf("scheduler: journal exit for %s: %v", trade.Symbol, err)
	}
	s.alert(ctx, models.AlertEvent{
		EventType: models.EventTradeClosed,
		Severity:  models.SeverityInfo,
		Symbol:    trade.Symbol,
		Message:   fmt.Sprintf("closed %s (%s), P&L %s", trade.Symbol, reason, outcome.PnL.StringFixed(2)),
		Outcome:   &outcome,
		Timestamp: now,
	})

	s.reg.RemoveTrade(trade.Symbol)
	s.reg.SetActiveFlag(trade.Symbol, false)
	return nil
}

// pollMonitoredStocks analyzes watched symbols without open positions and
// opens new trades where the oracle and the risk gate both agree.
func (s *Scheduler) pollMonitoredStocks(ctx context.Context, now time.Time) {
	stocks := s.reg.MonitoredStocks()
	if len(stocks) == 0 {
		return
	}

	snapshot := s.risk.CheckTradingAllowed(s.reg.ActiveTrades())
	if !snapshot.IsTradingAllowed {
		log.Printf("scheduler: trading not allowed: %s", snapshot.RiskStatus)
		if snapshot.RiskStatus != models.RiskStatusNearClose {
			s.journalRiskEvent(ctx, snapshot.RiskStatus, "entry polling suspended")
		}
		return
	}

	log.Printf("scheduler: polling %d monitored stocks", len(stocks))
	for _, stock := range stocks {
		if stock.IsActiveTrade {
			continue
		}
		if s.reg.ActiveCount() >= s.cfg.MaxActiveTrades {
			break
		}

		if err := s.analyzeAndDecide(ctx, stock, now); err != nil {
			log.Printf("scheduler: analyzing %s: %v", stock.Symbol, err)
		}
		s.reg.TouchAnalysis(stock.Symbol, now)
		s.pause()
	}
}

// defaultRelevance stands in for a live news-relevance feed.
var defaultRelevance = decimal.RequireFromString("0.6")

func (s *Scheduler) analyzeAndDecide(ctx context.Context, stock models.MonitoredStock, now time.Time) error {
	price, err := s.prices.CurrentPrice(ctx, stock.Symbol)
	if err != nil {
		return fmt.Errorf("failed to get current price: %w", err)
	}

	sc := s.symbolContext(stock, price, now)
	decision, err := s.oracle.Decide(ctx, sc)
	if err != nil {
		return fmt.Errorf("failed to get decision: %w", err)
	}

	valid, validation := s.oracle.Validate(decision)
	decisionID, err := s.journal.LogDecision(ctx, decision, valid, validation)
	if err != nil {
		log.Printf("scheduler: journal decision for %s: %v", stock.Symbol, err)
	}

	if !valid || !decision.IsActionable() {
		return nil
	}
	return s.executeDecision(ctx, decision, decisionID, now)
}

// symbolContext merges the morning screening metrics with a live price.
func (s *Scheduler) symbolContext(stock models.MonitoredStock, price decimal.Decimal, now time.Time) models.SymbolContext {
	sc := models.SymbolContext{
		Symbol:            stock.Symbol,
		CurrentPrice:      price,
		RSI:               decimal.NewFromInt(50),
		VolumeRatio:       decimal.NewFromInt(1),
		SentimentScore:    stock.SentimentScore,
		IntradayRelevance: defaultRelevance,
		Timestamp:         now,
	}
	if cand, ok := s.candidates[stock.Symbol]; ok {
		sc.RSI = cand.RSI
		sc.VolumeRatio = cand.VolumeRatio
		sc.AboveVWAP = cand.VWAP.IsPositive() && price.GreaterThan(cand.VWAP)
	}
	return sc
}

func (s *Scheduler) executeDecision(ctx context.Context, d models.Decision, decisionID string, now time.Time) error {
	side := models.Side(d.Action)

	metrics := s.risk.ValidateTradeRisk(d.Symbol, d.EntryPrice, d.StopLoss, d.TargetPrice, d.Confidence)
	if !metrics.IsWithinLimits {
		log.Printf("scheduler: trade for %s rejected by risk gate: %s", d.Symbol, metrics.RejectionReason)
		return nil
	}

	orderRef, err := s.broker.PlaceBracketOrder(ctx, d.Symbol, side, metrics.PositionSize, d.EntryPrice, d.StopLoss, d.TargetPrice)
	if err != nil {
		return fmt.Errorf("failed to place order: %w", err)
	}

	trade := &models.ActiveTrade{
		Symbol:       d.Symbol,
		Side:         side,
		EntryTime:    now,
		EntryPrice:   d.EntryPrice,
		StopLoss:     d.StopLoss,
		TargetPrice:  d.TargetPrice,
		Quantity:     metrics.PositionSize,
		CurrentPrice: d.EntryPrice,
	}

	tradeID, err := s.journal.LogExecution(ctx, trade, decisionID, orderRef)
	if err != nil {
		log.Printf("scheduler: journal execution for %s: %v", d.Symbol, err)
		tradeID = orderRef
	}
	trade.TradeID = tradeID

	s.reg.AddTrade(trade)
	s.reg.SetActiveFlag(d.Symbol, true)

	log.Printf("scheduler: opened %s %s qty=%d entry=%s stop=%s target=%s",
		side, d.Symbol, trade.Quantity,
		trade.EntryPrice.StringFixed(2), trade.StopLoss.StringFixed(2), trade.TargetPrice.StringFixed(2))
	s.alert(ctx, models.AlertEvent{
		EventType: models.EventTradeOpened,
		Severity:  models.SeverityInfo,
		Symbol:    d.Symbol,
		Message:   fmt.Sprintf("opened %s %s x%d @ %s", side, d.Symbol, trade.Quantity, trade.EntryPrice.StringFixed(2)),
		Trade:     trade,
		Timestamp: now,
	})
	return nil
}

// maybePublishDailyReport saves and announces the day's summary once,
// after the session has closed.
func (s *Scheduler) maybePublishDailyReport(ctx context.Context, now time.Time) {
	if s.reportDone || !now.After(s.cfg.MarketClose.On(now)) {
		return
	}

	summary := s.risk.Summary()
	if err := s.journal.SaveDailyReport(ctx, summary); err != nil {
		log.Printf("scheduler: save daily report: %v", err)
	}
	s.alert(ctx, models.AlertEvent{
		EventType: models.EventDailySummary,
		Severity:  models.SeverityInfo,
		Message: fmt.Sprintf("day closed: %d trades, P&L %s",
			summary.TotalTrades, summary.DailyPnL.StringFixed(2)),
		Timestamp: now,
	})
	s.reportDone = true
}

func (s *Scheduler) alert(ctx context.Context, event models.AlertEvent) {
	if err := s.notifier.Alert(ctx, event); err != nil {
		log.Printf("scheduler: publish alert: %v", err)
	}
}

func (s *Scheduler) journalRiskEvent(ctx context.Context, status, detail string) {
	if err := s.journal.LogRiskEvent(ctx, status, detail); err != nil {
		log.Printf("scheduler: journal risk event: %v", err)
	}
}

// pause spaces per-symbol requests to keep the data source happy.
func (s *Scheduler) pause() {
	if s.cfg.SymbolDelay > 0 {
		time.Sleep(s.cfg.SymbolDelay)
	}
}

// Status is a point-in-time view of the scheduler, served over HTTP.
type Status struct {
	IsRunning          bool      `json:"is_running"`
	Phase              DayPhase  `json:"phase"`
	IsMarketHours      bool      `json:"is_market_hours"`
	MonitoredStocks    int       `json:"monitored_stocks"`
	ActiveTrades       int       `json:"active_trades"`
	DailyScreeningDone bool      `json:"daily_screening_done"`
	ForceExitTriggered bool      `json:"force_exit_triggered"`
	LastScreeningTime  time.Time `json:"last_screening_time,omitempty"`
	LastActivePoll     time.Time `json:"last_active_poll,omitempty"`
	LastInactivePoll   time.Time `json:"last_inactive_poll,omitempty"`
	Watchlist          []string  `json:"watchlist"`
}

// publishSnapshot copies the loop-owned daily state for Status readers.
func (s *Scheduler) publishSnapshot() {
	s.mu.Lock()
	s.snap = daily{
		screeningDone:      s.screeningDone,
		forceExitTriggered: s.forceExitTriggered,
		lastScreening:      s.lastScreening,
		lastActivePoll:     s.lastActivePoll,
		lastInactivePoll:   s.lastInactivePoll,
	}
	s.mu.Unlock()
}

// Status returns the current engine status. Counts and the watchlist come
// from registry snapshots; the daily flags come from the last published
// tick snapshot.
func (s *Scheduler) Status() Status {
	now := s.clk.Now()

	s.mu.Lock()
	running := s.running
	snap := s.snap
	s.mu.Unlock()

	stocks := s.reg.MonitoredStocks()
	watchlist := make([]string, 0, len(stocks))
	for _, st := range stocks {
		watchlist = append(watchlist, st.Symbol)
	}

	return Status{
		IsRunning:          running,
		Phase:              phaseAt(s.cfg, now, snap.screeningDone),
		IsMarketHours:      inMarketHours(s.cfg, now),
		MonitoredStocks:    len(stocks),
		ActiveTrades:       s.reg.ActiveCount(),
		DailyScreeningDone: snap.screeningDone,
		ForceExitTriggered: snap.forceExitTriggered,
		LastScreeningTime:  snap.lastScreening,
		LastActivePoll:     snap.lastActivePoll,
		LastInactivePoll:   snap.lastInactivePoll,
		Watchlist:          watchlist,
	}
}
