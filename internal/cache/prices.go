// Package cache holds a Redis-backed quote cache. Lookups are best
// effort: a Redis outage degrades to cache misses, never to errors.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Prices caches recent quotes keyed by symbol with a short TTL.
type Prices struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPrices(rdb *redis.Client, ttl time.Duration) *Prices {
	return &Prices{rdb: rdb, ttl: ttl}
}

func key(symbol string) string {
	return "price:" + symbol
}

// Get returns the cached price for symbol, if present and parseable.
func (p *Prices) Get(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	val, err := p.rdb.Get(ctx, key(symbol)).Result()
	if err == redis.Nil {
		return decimal.Zero, false
	}
	if err != nil {
		log.Printf("price cache: get %s: %v", symbol, err)
		return decimal.Zero, false
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		log.Printf("price cache: bad value for %s: %v", symbol, err)
		return decimal.Zero, false
	}
	return price, true
}

// Set stores the price for symbol. Failures are logged and swallowed.
func (p *Prices) Set(ctx context.Context, symbol string, price decimal.Decimal) {
	if err := p.rdb.Set(ctx, key(symbol), price.String(), p.ttl).Err(); err != nil {
		log.Printf("price cache: set %s: %v", symbol, err)
	}
}
