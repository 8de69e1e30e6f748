package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trogers1052/intraday-trader/internal/clock"
	"github.com/trogers1052/intraday-trader/internal/database"
	"github.com/trogers1052/intraday-trader/internal/models"
	"github.com/trogers1052/intraday-trader/internal/registry"
	"github.com/trogers1052/intraday-trader/internal/scheduler"
)

// Engine is the control surface the HTTP layer drives.
type Engine interface {
	Start() error
	Stop()
	IsRunning() bool
	Status() scheduler.Status
}

// RiskReporter serves the account risk summary.
type RiskReporter interface {
	Summary() models.RiskSummary
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	engine  Engine
	risk    RiskReporter
	reg     *registry.Registry
	journal *database.Journal
	clk     clock.Clock
}

// NewHandler creates a new Handler. journal may be nil when the engine
// runs without a database.
func NewHandler(engine Engine, risk RiskReporter, reg *registry.Registry, journal *database.Journal, clk clock.Clock) *Handler {
	return &Handler{
		engine:  engine,
		risk:    risk,
		reg:     reg,
		journal: journal,
		clk:     clk,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetStatus handles GET /status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Status())
}

// StartEngine handles POST /start
func (h *Handler) StartEngine(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// StopEngine handles POST /stop
func (h *Handler) StopEngine(w http.ResponseWriter, r *http.Request) {
	if !h.engine.IsRunning() {
		http.Error(w, "engine is not running", http.StatusConflict)
		return
	}
	h.engine.Stop()
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// GetActiveTrades handles GET /api/v1/trades/active
func (h *Handler) GetActiveTrades(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.reg.ActiveTrades())
}

// GetTodayTrades handles GET /api/v1/trades/today
func (h *Handler) GetTodayTrades(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		http.Error(w, "trade journal not configured", http.StatusServiceUnavailable)
		return
	}

	trades, err := h.journal.TradesSince(r.Context(), h.startOfDay())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, trades)
}

// GetTodayDecisions handles GET /api/v1/decisions/today
func (h *Handler) GetTodayDecisions(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		http.Error(w, "trade journal not configured", http.StatusServiceUnavailable)
		return
	}

	decisions, err := h.journal.DecisionsSince(r.Context(), h.startOfDay())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, decisions)
}

// GetRiskSummary handles GET /api/v1/risk/summary
func (h *Handler) GetRiskSummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.risk.Summary())
}

func (h *Handler) startOfDay() time.Time {
	now := h.clk.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
