package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/intraday-trader/internal/api"
	"github.com/trogers1052/intraday-trader/internal/broker"
	"github.com/trogers1052/intraday-trader/internal/cache"
	"github.com/trogers1052/intraday-trader/internal/clock"
	"github.com/trogers1052/intraday-trader/internal/config"
	"github.com/trogers1052/intraday-trader/internal/database"
	"github.com/trogers1052/intraday-trader/internal/kafka"
	"github.com/trogers1052/intraday-trader/internal/models"
	"github.com/trogers1052/intraday-trader/internal/oracle"
	"github.com/trogers1052/intraday-trader/internal/registry"
	"github.com/trogers1052/intraday-trader/internal/risk"
	"github.com/trogers1052/intraday-trader/internal/scheduler"
	"github.com/trogers1052/intraday-trader/internal/screener"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Trading.Validate(); err != nil {
		log.Fatalf("invalid trading config: %v", err)
	}

	clk := clock.Real{}

	// Trade journal. The engine trades without it, journaling to the log.
	var journal *database.Journal
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Printf("database unavailable, journaling to log only: %v", err)
	} else {
		defer db.Close()
		if err := db.RunMigrations("migrations"); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		journal = database.NewJournal(db, clk)
	}

	// Price cache. Best effort; a missing Redis just means no caching.
	var priceCache broker.PriceCache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("redis unavailable, price caching disabled: %v", err)
	} else {
		priceCache = cache.NewPrices(rdb, cfg.Redis.PriceTTL)
	}
	cancel()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	paper := broker.NewPaper(broker.DefaultUniverse(), priceCache, time.Now().UnixNano())
	reg := registry.New()
	riskMgr := risk.NewManager(cfg.Trading, clk)
	screen := screener.New(paper, nil, clk)
	rules := oracle.NewRules(cfg.Trading.ConfidenceThreshold, cfg.Trading.MinRiskReward)

	var sinkJournal scheduler.TradeJournal = logJournal{}
	if journal != nil {
		sinkJournal = journal
	}

	sched := scheduler.New(cfg.Trading, clk, scheduler.Deps{
		Registry: reg,
		Risk:     riskMgr,
		Prices:   paper,
		Screener: screen,
		Oracle:   rules,
		Broker:   paper,
		Journal:  sinkJournal,
		Notifier: producer,
	})

	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	handler := api.NewHandler(sched, riskMgr, reg, journal, clk)
	router := api.SetupRoutes(handler)

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
}

// logJournal is the fallback journal when the database is unavailable.
// Every record goes to the process log and ids are the order refs.
type logJournal struct{}

func (logJournal) LogDecision(_ context.Context, d models.Decision, valid bool, reason string) (string, error) {
	log.Printf("journal: decision %s %s valid=%t (%s)", d.Symbol, d.Action, valid, reason)
	return "", nil
}

func (logJournal) LogExecution(_ context.Context, t *models.ActiveTrade, _, orderRef string) (string, error) {
	log.Printf("journal: execution %s %s x%d ref=%s", t.Side, t.Symbol, t.Quantity, orderRef)
	return orderRef, nil
}

func (logJournal) LogExit(_ context.Context, t models.ActiveTrade, outcome models.TradeOutcome, reason models.ExitReason) error {
	log.Printf("journal: exit %s (%s) pnl=%s", t.Symbol, reason, outcome.PnL.StringFixed(2))
	return nil
}

func (logJournal) LogRiskEvent(_ context.Context, status, detail string) error {
	log.Printf("journal: risk event %s: %s", status, detail)
	return nil
}

func (logJournal) SaveDailyReport(_ context.Context, summary models.RiskSummary) error {
	log.Printf("journal: daily report: %d trades, pnl=%s", summary.TotalTrades, summary.DailyPnL.StringFixed(2))
	return nil
}
