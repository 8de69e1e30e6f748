// Package registry is the in-memory book of watched symbols and open
// trades. The scheduler is the only writer; status and reporting callers
// read value snapshots so registry state never escapes by reference.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/trogers1052/intraday-trader/internal/models"
)

// Registry holds the day's MonitoredStock and ActiveTrade entries keyed
// by symbol.
type Registry struct {
	mu        sync.RWMutex
	monitored map[string]*models.MonitoredStock
	active    map[string]*models.ActiveTrade
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		monitored: make(map[string]*models.MonitoredStock),
		active:    make(map[string]*models.ActiveTrade),
	}
}

// AddMonitored puts a stock on the watchlist, replacing any previous entry.
func (r *Registry) AddMonitored(m *models.MonitoredStock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.monitored[m.Symbol] = &cp
}

// Monitored returns a copy of the watchlist entry for symbol.
func (r *Registry) Monitored(symbol string) (models.MonitoredStock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitored[symbol]
	if !ok {
		return models.MonitoredStock{}, false
	}
	return *m, true
}

// MonitoredStocks returns copies of all watchlist entries, sorted by symbol.
func (r *Registry) MonitoredStocks() []models.MonitoredStock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.MonitoredStock, 0, len(r.monitored))
	for _, m := range r.monitored {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// TouchAnalysis records that symbol was analyzed at t.
func (r *Registry) TouchAnalysis(symbol string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.monitored[symbol]; ok {
		m.LastAnalysisAt = t
	}
}

// SetActiveFlag flips the watchlist entry's in-a-trade marker.
func (r *Registry) SetActiveFlag(symbol string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.monitored[symbol]; ok {
		m.IsActiveTrade = active
	}
}

// AddTrade registers an open position.
func (r *Registry) AddTrade(t *models.ActiveTrade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.active[t.Symbol] = &cp
	if m, ok := r.monitored[t.Symbol]; ok {
		m.IsActiveTrade = true
	}
}

// UpdateTrade replaces the stored trade for the symbol. It is a no-op if
// the trade has already been removed.
func (r *Registry) UpdateTrade(t *models.ActiveTrade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[t.Symbol]; ok {
		cp := *t
		r.active[t.Symbol] = &cp
	}
}

// RemoveTrade deletes the open position for symbol and clears the
// watchlist marker.
func (r *Registry) RemoveTrade(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, symbol)
	if m, ok := r.monitored[symbol]; ok {
		m.IsActiveTrade = false
	}
}

// Trade returns a copy of the open position for symbol.
func (r *Registry) Trade(symbol string) (models.ActiveTrade, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.active[symbol]
	if !ok {
		return models.ActiveTrade{}, false
	}
	return *t, true
}

// ActiveTrades returns copies of all open positions keyed by symbol.
func (r *Registry) ActiveTrades() map[string]models.ActiveTrade {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.ActiveTrade, len(r.active))
	for sym, t := range r.active {
		out[sym] = *t
	}
	return out
}

// ActiveSymbols returns the symbols of all open positions, sorted.
func (r *Registry) ActiveSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.active))
	for sym := range r.active {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// MonitoredCount returns the watchlist size.
func (r *Registry) MonitoredCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.monitored)
}

// ActiveCount returns the number of open positions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Clear wipes all entries for the daily reset.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitored = make(map[string]*models.MonitoredStock)
	r.active = make(map[string]*models.ActiveTrade)
}
