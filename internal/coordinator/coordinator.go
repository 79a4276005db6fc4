// Package coordinator serializes every ledger mutation into one FIFO queue.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"portfolio_tracker/internal/core"
	"portfolio_tracker/internal/ledger"
	"portfolio_tracker/internal/projection"
	"portfolio_tracker/pkg/telemetry"
)

type itemKind int

const (
	kindLoad itemKind = iota
	kindRefresh
	kindQuote
	kindPosition
	kindSetFilter
	kindSetSort
	kindActionError
)

type workItem struct {
	kind     itemKind
	quote    core.Quote
	position core.Position
	symbol   string
	filter   core.FilterOption
	sort     core.SortOption
	err      error
}

// Config holds coordinator tuning knobs.
type Config struct {
	RefreshInterval time.Duration // periodic full reload cadence
	IOTimeout       time.Duration // per-call deadline on broker I/O
	QueueSize       int
	SubscriberSize  int
}

func (c *Config) applyDefaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 60 * time.Second
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = 30 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.SubscriberSize <= 0 {
		c.SubscriberSize = 64
	}
}

// Coordinator is the single writer into the ledger. Producers (feed
// callbacks, the periodic timer, user commands, post-action refreshes) all
// converge into one FIFO channel; a single worker drains it one item at a
// time, so no two mutations are ever applied concurrently and items are
// applied in submission order. While a broker call for one item is in flight
// the queue blocks, which bounds staleness to one round-trip at a time.
type Coordinator struct {
	broker core.IBroker
	ledger *ledger.Ledger
	logger core.ILogger
	cfg    Config

	queue chan workItem

	filter core.FilterOption
	sort   core.SortOption

	// At most one outstanding full reload from the timer; user LoadAll always
	// enqueues.
	loadPending atomic.Bool

	subMu      sync.RWMutex
	snapSubs   []chan core.Snapshot
	errSubs    []chan core.UserError
	current    core.Snapshot
	currentAll map[string]core.Position
	currentErr *core.UserError

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	mutationCounter metric.Int64Counter
	loadFailCounter metric.Int64Counter
	bgFailCounter   metric.Int64Counter
}

// New creates a coordinator around a broker and a ledger.
func New(broker core.IBroker, lg *ledger.Ledger, logger core.ILogger, cfg Config) *Coordinator {
	cfg.applyDefaults()

	meter := telemetry.GetMeter("coordinator")
	mutationCounter, _ := meter.Int64Counter("ledger_mutations_total",
		metric.WithDescription("Total number of mutations applied to the ledger"))
	loadFailCounter, _ := meter.Int64Counter("ledger_load_failures_total",
		metric.WithDescription("Total number of failed full reloads"))
	bgFailCounter, _ := meter.Int64Counter("ledger_refresh_failures_total",
		metric.WithDescription("Total number of failed background single-symbol refreshes"))

	c := &Coordinator{
		broker:          broker,
		ledger:          lg,
		logger:          logger.WithField("component", "coordinator"),
		cfg:             cfg,
		queue:           make(chan workItem, cfg.QueueSize),
		filter:          core.FilterAll,
		sort:            core.SortBySymbolAsc,
		mutationCounter: mutationCounter,
		loadFailCounter: loadFailCounter,
		bgFailCounter:   bgFailCounter,
	}

	_, _ = meter.Int64ObservableGauge("coordinator_queue_depth",
		metric.WithDescription("Number of work items waiting in the coordinator queue"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(int64(len(c.queue)))
			return nil
		}))

	c.current = core.Snapshot{Filter: c.filter, Sort: c.sort}
	return c
}

// Start launches the worker and the periodic refresh timer.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.Info("Starting coordinator", "refresh_interval", c.cfg.RefreshInterval)

	c.wg.Add(2)
	go c.runWorker()
	go c.runTimer()
	return nil
}

// Close stops the timer and the worker. No snapshots or errors are delivered
// afterwards.
func (c *Coordinator) Close() error {
	if c.cancel == nil {
		return nil
	}
	c.logger.Info("Stopping coordinator")
	c.cancel()
	c.wg.Wait()

	c.subMu.Lock()
	for _, ch := range c.snapSubs {
		close(ch)
	}
	for _, ch := range c.errSubs {
		close(ch)
	}
	c.snapSubs = nil
	c.errSubs = nil
	c.subMu.Unlock()
	return nil
}

// LoadAll enqueues a full reload from the trading data source.
func (c *Coordinator) LoadAll() {
	c.loadPending.Store(true)
	c.enqueue(workItem{kind: kindLoad})
}

// RefreshOne enqueues an authoritative single-symbol refresh.
func (c *Coordinator) RefreshOne(symbol string) {
	c.enqueue(workItem{kind: kindRefresh, symbol: symbol})
}

// EnqueueQuote forwards a feed quote event.
func (c *Coordinator) EnqueueQuote(q core.Quote) {
	c.enqueue(workItem{kind: kindQuote, quote: q})
}

// EnqueuePosition forwards a feed position event.
func (c *Coordinator) EnqueuePosition(p core.Position) {
	c.enqueue(workItem{kind: kindPosition, position: p})
}

// SetFilter changes the projection filter. Recomputes from the current ledger
// snapshot; never refetches.
func (c *Coordinator) SetFilter(f core.FilterOption) {
	c.enqueue(workItem{kind: kindSetFilter, filter: f})
}

// SetSort changes the projection sort order.
func (c *Coordinator) SetSort(s core.SortOption) {
	c.enqueue(workItem{kind: kindSetSort, sort: s})
}

// ReportActionFailure surfaces an action-failed error through the ordered
// queue so error emission keeps submission order with mutations.
func (c *Coordinator) ReportActionFailure(err error) {
	c.enqueue(workItem{kind: kindActionError, err: err})
}

// DismissError clears the retained user-visible error.
func (c *Coordinator) DismissError() {
	c.subMu.Lock()
	c.currentErr = nil
	c.subMu.Unlock()
}

// CurrentError returns the retained user-visible error, if any.
func (c *Coordinator) CurrentError() *core.UserError {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.currentErr
}

// Subscribe returns a channel of immutable snapshots, one per applied
// mutation. Slow subscribers have snapshots dropped, never block the worker.
func (c *Coordinator) Subscribe() <-chan core.Snapshot {
	ch := make(chan core.Snapshot, c.cfg.SubscriberSize)
	c.subMu.Lock()
	c.snapSubs = append(c.snapSubs, ch)
	c.subMu.Unlock()
	return ch
}

// Errors returns a channel of user-visible errors (load-failed,
// action-failed). Background refresh failures never appear here.
func (c *Coordinator) Errors() <-chan core.UserError {
	ch := make(chan core.UserError, c.cfg.SubscriberSize)
	c.subMu.Lock()
	c.errSubs = append(c.errSubs, ch)
	c.subMu.Unlock()
	return ch
}

// CurrentSnapshot returns the most recently published snapshot.
func (c *Coordinator) CurrentSnapshot() core.Snapshot {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.current
}

// LookupPosition returns the position for symbol from the most recently
// published state, regardless of the active filter.
func (c *Coordinator) LookupPosition(symbol string) (core.Position, bool) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	p, ok := c.currentAll[symbol]
	return p, ok
}

func (c *Coordinator) enqueue(item workItem) {
	select {
	case c.queue <- item:
	case <-c.closedChan():
	}
}

func (c *Coordinator) closedChan() <-chan struct{} {
	if c.ctx != nil {
		return c.ctx.Done()
	}
	// Not started yet: enqueue must not drop, rely on queue capacity.
	return nil
}

func (c *Coordinator) runWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case item := <-c.queue:
			c.process(item)
		}
	}
}

func (c *Coordinator) runTimer() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			// Backpressure: at most one outstanding full reload at a time.
			if c.loadPending.CompareAndSwap(false, true) {
				c.enqueue(workItem{kind: kindLoad})
			}
		}
	}
}

func (c *Coordinator) process(item workItem) {
	switch item.kind {
	case kindLoad:
		c.handleLoad()
	case kindRefresh:
		c.handleRefresh(item.symbol)
	case kindQuote:
		c.ledger.ApplyQuoteEvent(item.quote)
		c.publish()
	case kindPosition:
		c.ledger.ApplyPositionEvent(item.position)
		c.publish()
	case kindSetFilter:
		c.filter = item.filter
		c.publish()
	case kindSetSort:
		c.sort = item.sort
		c.publish()
	case kindActionError:
		c.publishError(core.UserError{Kind: core.ErrorKindActionFailed, Err: item.err})
	}
}

func (c *Coordinator) handleLoad() {
	c.loadPending.Store(false)

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.IOTimeout)
	defer cancel()

	positions, err := c.broker.ListPositions(ctx)
	if err != nil {
		// Stale-but-valid data beats blanking the view: ledger stays as is.
		c.logger.Error("Full reload failed", "error", err.Error())
		c.loadFailCounter.Add(c.ctx, 1)
		c.publishError(core.UserError{Kind: core.ErrorKindLoadFailed, Err: err})
		return
	}

	c.ledger.ApplyLoad(positions)
	c.logger.Debug("Full reload applied", "positions", len(positions))
	c.publish()
}

func (c *Coordinator) handleRefresh(symbol string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.IOTimeout)
	defer cancel()

	pos, err := c.broker.GetPosition(ctx, symbol)
	if err != nil {
		// Background reconciliation failures must not interrupt the user:
		// recorded for diagnostics only.
		c.logger.Warn("Background refresh failed", "symbol", symbol, "error", err.Error())
		c.bgFailCounter.Add(c.ctx, 1)
		return
	}

	if pos == nil {
		c.ledger.Remove(symbol)
	} else {
		c.ledger.ApplyPositionEvent(*pos)
	}
	c.publish()
}

func (c *Coordinator) publish() {
	c.mutationCounter.Add(c.ctx, 1)

	full := c.ledger.Positions()
	snap := core.Snapshot{
		Positions:   projection.Project(full, c.filter, c.sort),
		Summary:     projection.Summarize(full),
		Filter:      c.filter,
		Sort:        c.sort,
		LastUpdated: c.ledger.LastUpdated(),
	}

	all := make(map[string]core.Position, len(full))
	for _, p := range full {
		all[p.Symbol] = p
	}

	c.subMu.Lock()
	c.current = snap
	c.currentAll = all
	subs := make([]chan core.Snapshot, len(c.snapSubs))
	copy(subs, c.snapSubs)
	c.subMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			c.logger.Warn("Snapshot subscriber is slow, dropping snapshot")
		}
	}
}

func (c *Coordinator) publishError(ue core.UserError) {
	c.subMu.Lock()
	c.currentErr = &ue
	subs := make([]chan core.UserError, len(c.errSubs))
	copy(subs, c.errSubs)
	c.subMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ue:
		default:
			c.logger.Warn("Error subscriber is slow, dropping error", "kind", ue.Kind)
		}
	}
}
