// Package currency converts chaos denominated prices into the divine
// denominated strings players actually read.
package currency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
)

// DefaultRefreshInterval is how often a running converter re-reads the
// divine rate. League economies move slowly enough for ten minutes.
const DefaultRefreshInterval = 10 * time.Minute

// RateSource yields the current chaos value of one divine orb. The bool is
// false when no rate is available.
type RateSource func(ctx context.Context) (float64, bool)

// Converter tracks the chaos value of the display currency. The zero rate
// means "unknown" and formatting falls back to plain chaos.
type Converter struct {
	mu   sync.RWMutex
	rate decimal.Decimal
}

// NewConverter creates a converter with no rate yet.
func NewConverter() *Converter {
	return &Converter{}
}

// SetDivineRate records how many chaos one divine trades for. Non-positive
// rates are ignored so a bad fetch never wipes a good rate.
func (c *Converter) SetDivineRate(chaosPerDivine float64) {
	if chaosPerDivine <= 0 {
		return
	}
	c.mu.Lock()
	c.rate = decimal.NewFromFloat(chaosPerDivine)
	c.mu.Unlock()
}

// DivineRate returns the current chaos per divine rate, zero when unknown.
func (c *Converter) DivineRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, _ := c.rate.Float64()
	return f
}

// ToDivine converts a chaos value. The bool is false when no rate is known.
func (c *Converter) ToDivine(chaos float64) (float64, bool) {
	c.mu.RLock()
	rate := c.rate
	c.mu.RUnlock()

	if rate.IsZero() {
		return 0, false
	}
	f, _ := decimal.NewFromFloat(chaos).Div(rate).Float64()
	return f, true
}

// Format renders a chaos value for display. Prices worth at least one
// divine show both denominations, everything else stays in chaos.
func (c *Converter) Format(chaos float64) string {
	c.mu.RLock()
	rate := c.rate
	c.mu.RUnlock()

	value := decimal.NewFromFloat(chaos)
	if rate.IsZero() || value.LessThan(rate) {
		return value.Round(1).String() + "c"
	}

	divine := value.Div(rate).Round(1)
	return fmt.Sprintf("≈ %s div (%sc)", divine.String(), value.Round(0).String())
}

// Run keeps the rate fresh until the context is done. The first fetch
// happens immediately so formatting works as soon as a source answers.
func (c *Converter) Run(ctx context.Context, interval time.Duration, fetch RateSource, logger *logging.Logger) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	refresh := func() {
		if rate, ok := fetch(ctx); ok {
			c.SetDivineRate(rate)
			logger.Debug("Updated divine rate", "chaos_per_divine", rate)
		} else {
			logger.Warn("Divine rate unavailable, keeping previous rate")
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
