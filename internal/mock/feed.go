package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"portfolio_tracker/internal/core"
)

// Feed is an in-memory core.IFeed that emits random walk quotes for the
// configured symbols. Tests can push events directly with EmitQuote and
// EmitPosition.
type Feed struct {
	symbols  []string
	interval time.Duration
	logger   core.ILogger

	mu         sync.RWMutex
	onQuote    func(core.Quote)
	onPosition func(core.Position)
	prices     map[string]decimal.Decimal

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed creates a mock feed ticking every interval.
func NewFeed(symbols []string, interval time.Duration, logger core.ILogger) *Feed {
	if interval <= 0 {
		interval = time.Second
	}

	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		prices[s] = decimal.NewFromInt(100)
	}

	return &Feed{
		symbols:  symbols,
		interval: interval,
		prices:   prices,
		logger:   logger.WithField("component", "mock_feed"),
	}
}

func (f *Feed) OnQuote(handler func(core.Quote)) {
	f.mu.Lock()
	f.onQuote = handler
	f.mu.Unlock()
}

func (f *Feed) OnPosition(handler func(core.Position)) {
	f.mu.Lock()
	f.onPosition = handler
	f.mu.Unlock()
}

// Start begins emitting random walk quotes.
func (f *Feed) Start(ctx context.Context) error {
	ctx, f.cancel = context.WithCancel(ctx)

	f.logger.Info("Starting mock feed", "symbols", f.symbols, "interval", f.interval)

	f.wg.Add(1)
	go f.run(ctx)
	return nil
}

// Stop stops the feed.
func (f *Feed) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	return nil
}

// EmitQuote delivers a quote to the registered handler.
func (f *Feed) EmitQuote(q core.Quote) {
	f.mu.RLock()
	handler := f.onQuote
	f.mu.RUnlock()
	if handler != nil {
		handler(q)
	}
}

// EmitPosition delivers a position event to the registered handler.
func (f *Feed) EmitPosition(p core.Position) {
	f.mu.RLock()
	handler := f.onPosition
	f.mu.RUnlock()
	if handler != nil {
		handler(p)
	}
}

func (f *Feed) run(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range f.symbols {
				f.EmitQuote(core.Quote{Symbol: symbol, BidPrice: f.walk(symbol)})
			}
		}
	}
}

// walk moves the price up to 0.5% in either direction.
func (f *Feed) walk(symbol string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()

	price := f.prices[symbol]
	jitter := decimal.NewFromFloat((rand.Float64() - 0.5) / 100)
	price = price.Mul(decimal.NewFromInt(1).Add(jitter))
	f.prices[symbol] = price
	return price
}
