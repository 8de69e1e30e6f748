// Package broker provides the paper execution broker used in mock mode.
// It keeps an in-memory position book and simulates fills and quotes so
// the full trading loop can run without a live brokerage connection.
package broker

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/intraday-trader/internal/models"
)

// PriceCache is an optional short-TTL cache in front of quote generation,
// shielding a real quote feed from per-tick request bursts.
type PriceCache interface {
	Get(ctx context.Context, symbol string) (decimal.Decimal, bool)
	Set(ctx context.Context, symbol string, price decimal.Decimal)
}

// Position is an open paper position.
type Position struct {
	Symbol       string          `json:"symbol"`
	Side         models.Side     `json:"side"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	OpenedAt     time.Time       `json:"opened_at"`
}

// Paper is a simulated broker. Quotes follow a bounded random walk around
// per-symbol base prices; bracket orders fill immediately at the entry.
type Paper struct {
	mu        sync.Mutex
	base      map[string]decimal.Decimal
	last      map[string]decimal.Decimal
	positions map[string]*Position
	rng       *rand.Rand
	cache     PriceCache
	orderSeq  int
}

// NewPaper creates a paper broker over the given base prices. cache may
// be nil. The seed makes quote sequences reproducible in tests.
func NewPaper(basePrices map[string]decimal.Decimal, cache PriceCache, seed int64) *Paper {
	base := make(map[string]decimal.Decimal, len(basePrices))
	for sym, p := range basePrices {
		base[sym] = p
	}
	return &Paper{
		base:      base,
		last:      make(map[string]decimal.Decimal),
		positions: make(map[string]*Position),
		rng:       rand.New(rand.NewSource(seed)),
		cache:     cache,
	}
}

// CurrentPrice returns the last traded price for symbol, or
// ErrPriceUnavailable for symbols outside the configured universe.
func (p *Paper) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if p.cache != nil {
		if price, ok := p.cache.Get(ctx, symbol); ok {
			return price, nil
		}
	}

	p.mu.Lock()
	price, err := p.nextPriceLocked(symbol)
	p.mu.Unlock()
	if err != nil {
		return decimal.Zero, err
	}

	if p.cache != nil {
		p.cache.Set(ctx, symbol, price)
	}
	return price, nil
}

// nextPriceLocked advances the symbol's walk by up to ±0.5%, clamped to
// ±10% of the base price.
func (p *Paper) nextPriceLocked(symbol string) (decimal.Decimal, error) {
	base, ok := p.base[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}

	prev, ok := p.last[symbol]
	if !ok {
		prev = base
	}

	step := decimal.NewFromFloat((p.rng.Float64() - 0.5) * 0.01)
	price := prev.Mul(decimal.NewFromInt(1).Add(step))

	lo := base.Mul(decimal.RequireFromString("0.9"))
	hi := base.Mul(decimal.RequireFromString("1.1"))
	if price.LessThan(lo) {
		price = lo
	} else if price.GreaterThan(hi) {
		price = hi
	}

	price = price.Round(2)
	p.last[symbol] = price
	return price, nil
}

// SetQuote pins the next quote for symbol. Used by tests and replay tooling.
func (p *Paper) SetQuote(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.base[symbol]; !ok {
		p.base[symbol] = price
	}
	p.last[symbol] = price
}

// PlaceBracketOrder validates the stop/target ordering for the side, fills
// the entry immediately, and opens a position. Exits for the bracket legs
// are driven by the scheduler, not simulated here.
func (p *Paper) PlaceBracketOrder(ctx context.Context, symbol string, side models.Side, quantity int64, entry, stop, target decimal.Decimal) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("%w: non-positive quantity %d", ErrOrderRejected, quantity)
	}
	if !side.Valid() {
		return "", fmt.Errorf("%w: unknown side %q", ErrOrderRejected, side)
	}

	switch side {
	case models.SideBuy:
		if !stop.LessThan(entry) || !target.GreaterThan(entry) {
			return "", fmt.Errorf("%w: BUY requires stop < entry < target", ErrOrderRejected)
		}
	case models.SideSell:
		if !stop.GreaterThan(entry) || !target.LessThan(entry) {
			return "", fmt.Errorf("%w: SELL requires target < entry < stop", ErrOrderRejected)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, open := p.positions[symbol]; open {
		return "", fmt.Errorf("%w: position already open for %s", ErrOrderRejected, symbol)
	}

	p.orderSeq++
	orderRef := fmt.Sprintf("PAPER-%06d", p.orderSeq)
	p.positions[symbol] = &Position{
		Symbol:       symbol,
		Side:         side,
		Quantity:     quantity,
		AveragePrice: entry,
		OpenedAt:     time.Now(),
	}
	p.last[symbol] = entry

	log.Printf("broker: filled %s %s %d @ %s (stop=%s target=%s)",
		side, symbol, quantity, entry.StringFixed(2), stop.StringFixed(2), target.StringFixed(2))
	return orderRef, nil
}

// ExitPosition closes the open position for symbol at the current quote.
func (p *Paper) ExitPosition(ctx context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}

	delete(p.positions, symbol)
	log.Printf("broker: closed %s %s %d", pos.Side, symbol, pos.Quantity)
	return nil
}

// ForceExitAll closes every open position. It succeeds trivially when the
// book is already empty.
func (p *Paper) ForceExitAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.positions) == 0 {
		return nil
	}

	n := len(p.positions)
	p.positions = make(map[string]*Position)
	log.Printf("broker: force exited %d positions", n)
	return nil
}

// Positions returns a snapshot of the open position book.
func (p *Paper) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// History generates simulated daily OHLCV bars for symbol, newest last.
func (p *Paper) History(ctx context.Context, symbol string, days int) ([]models.DailyBar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, ok := p.base[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}

	bars := make([]models.DailyBar, 0, days)
	price := base
	for i := 0; i < days; i++ {
		date := time.Now().AddDate(0, 0, -(days - i))
		open := price.Mul(decimal.NewFromFloat(1 + (p.rng.Float64()-0.5)*0.02)).Round(2)
		high := open.Mul(decimal.NewFromFloat(1 + p.rng.Float64()*0.03)).Round(2)
		low := open.Mul(decimal.NewFromFloat(1 - p.rng.Float64()*0.03)).Round(2)
		cls := open.Mul(decimal.NewFromFloat(1 + (p.rng.Float64()-0.5)*0.02)).Round(2)
		if cls.GreaterThan(high) {
			high = cls
		}
		if cls.LessThan(low) {
			low = cls
		}

		bars = append(bars, models.DailyBar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: 100_000 + p.rng.Int63n(900_000),
		})
		price = cls
	}

	return bars, nil
}

// Universe returns the symbols the paper broker can quote, capped at limit.
func (p *Paper) Universe(ctx context.Context, limit int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.base))
	for sym := range p.base {
		out = append(out, sym)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
