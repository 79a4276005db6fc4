// Package bootstrap wires the tracker's components together.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"portfolio_tracker/internal/action"
	"portfolio_tracker/internal/broker/alpaca"
	"portfolio_tracker/internal/config"
	"portfolio_tracker/internal/coordinator"
	"portfolio_tracker/internal/core"
	"portfolio_tracker/internal/feed"
	"portfolio_tracker/internal/infrastructure/metrics"
	"portfolio_tracker/internal/ledger"
	"portfolio_tracker/internal/mock"
	"portfolio_tracker/pkg/concurrency"
	"portfolio_tracker/pkg/liveserver"
)

// App owns every long-lived component of the tracker.
type App struct {
	cfg    *config.Config
	logger core.ILogger

	broker      core.IBroker
	feed        core.IFeed
	coordinator *coordinator.Coordinator
	executor    *action.Executor

	hub           *liveserver.Hub
	server        *liveserver.Server
	broadcastPool *concurrency.WorkerPool
	metricsServer *metrics.Server
}

// NewApp builds the full component graph from the configuration.
func NewApp(cfg *config.Config, logger core.ILogger) *App {
	a := &App{cfg: cfg, logger: logger}

	if cfg.Broker.UseMock {
		mockBroker := mock.NewBroker(seedPositions(), logger)
		a.broker = mockBroker
		a.feed = mock.NewFeed(cfg.Feed.Symbols, time.Second, logger)
	} else {
		a.broker = alpaca.NewClient(alpaca.Config{
			BaseURL:   cfg.Broker.BaseURL,
			APIKey:    cfg.Broker.APIKey,
			APISecret: cfg.Broker.APISecret,
			Timeout:   time.Duration(cfg.Broker.TimeoutS) * time.Second,
			RateLimit: cfg.Broker.RateLimit,
		}, logger)
		a.feed = feed.NewStream(feed.Config{
			URL:       cfg.Feed.URL,
			APIKey:    cfg.Broker.APIKey,
			APISecret: cfg.Broker.APISecret,
			Symbols:   cfg.Feed.Symbols,
		}, logger)
	}

	lg := ledger.New(logger)
	a.coordinator = coordinator.New(a.broker, lg, logger, coordinator.Config{
		RefreshInterval: time.Duration(cfg.Tracker.RefreshIntervalS) * time.Second,
		IOTimeout:       time.Duration(cfg.Tracker.IOTimeoutS) * time.Second,
		QueueSize:       cfg.Tracker.QueueSize,
	})
	a.executor = action.NewExecutor(a.broker, a.coordinator, logger)

	a.feed.OnQuote(a.coordinator.EnqueueQuote)
	a.feed.OnPosition(a.coordinator.EnqueuePosition)

	a.broadcastPool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "BroadcastPool",
		MaxWorkers:  cfg.Concurrency.BroadcastPoolSize,
		MaxCapacity: cfg.Concurrency.BroadcastPoolBuffer,
		NonBlocking: true,
	}, logger)

	a.hub = liveserver.NewHub(logger, a.broadcastPool)
	a.server = liveserver.NewServer(a.hub, a, logger, cfg.Server.AllowedOrigins)
	if cfg.Server.MaxConnections > 0 {
		a.server.SetMaxConnections(cfg.Server.MaxConnections)
	}
	a.server.SetProduction(cfg.Server.Production)

	if cfg.Telemetry.EnableMetrics {
		a.metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
	}

	return a
}

// Coordinator exposes the reconciliation coordinator.
func (a *App) Coordinator() *coordinator.Coordinator {
	return a.coordinator
}

// Run starts every component and blocks until ctx is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if err := a.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}
	// Initial load before any streamed event can race it.
	a.coordinator.LoadAll()

	if err := a.feed.Start(ctx); err != nil {
		return fmt.Errorf("failed to start feed: %w", err)
	}

	if a.metricsServer != nil {
		a.metricsServer.Start()
	}

	g.Go(func() error {
		a.hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return a.server.Start(ctx, a.cfg.Server.Addr)
	})

	g.Go(func() error {
		a.forwardSnapshots(ctx)
		return nil
	})

	g.Go(func() error {
		a.forwardErrors(ctx)
		return nil
	})

	err := g.Wait()
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	if err := a.feed.Stop(); err != nil {
		a.logger.Warn("Feed stop failed", "error", err.Error())
	}
	if err := a.coordinator.Close(); err != nil {
		a.logger.Warn("Coordinator close failed", "error", err.Error())
	}
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("Metrics server stop failed", "error", err.Error())
		}
	}
	a.broadcastPool.Stop()
}

// forwardSnapshots bridges coordinator snapshots to connected clients.
func (a *App) forwardSnapshots(ctx context.Context) {
	snapshots := a.coordinator.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			a.hub.Broadcast(liveserver.NewSnapshotMessage(snap))
		}
	}
}

// forwardErrors bridges user-visible errors to connected clients.
func (a *App) forwardErrors(ctx context.Context) {
	errs := a.coordinator.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case ue, ok := <-errs:
			if !ok {
				return
			}
			a.hub.Broadcast(liveserver.NewErrorMessage(map[string]string{
				"kind":    string(ue.Kind),
				"message": ue.Err.Error(),
			}))
		}
	}
}

// HandleCommand implements liveserver.CommandHandler.
func (a *App) HandleCommand(cmd liveserver.Command) error {
	switch cmd.Action {
	case liveserver.ActionLoadAll:
		a.coordinator.LoadAll()
		return nil

	case liveserver.ActionSetFilter:
		f, err := parseFilter(cmd.Filter)
		if err != nil {
			return err
		}
		a.coordinator.SetFilter(f)
		return nil

	case liveserver.ActionSetSort:
		s, err := parseSort(cmd.Sort)
		if err != nil {
			return err
		}
		a.coordinator.SetSort(s)
		return nil

	case liveserver.ActionDismissError:
		a.coordinator.DismissError()
		a.hub.Broadcast(liveserver.NewMessage(liveserver.TypeErrorCleared, nil))
		return nil

	case liveserver.ActionClosePosition:
		pos, ok := a.coordinator.LookupPosition(cmd.Symbol)
		if !ok {
			return fmt.Errorf("unknown position %q", cmd.Symbol)
		}
		go a.runAction(func(ctx context.Context) error {
			return a.executor.ClosePosition(ctx, pos)
		})
		return nil

	case liveserver.ActionAdjustPosition:
		pos, ok := a.coordinator.LookupPosition(cmd.Symbol)
		if !ok {
			return fmt.Errorf("unknown position %q", cmd.Symbol)
		}
		newQty, err := decimal.NewFromString(cmd.NewQuantity)
		if err != nil {
			return fmt.Errorf("invalid new_quantity %q: %w", cmd.NewQuantity, err)
		}
		go a.runAction(func(ctx context.Context) error {
			return a.executor.AdjustPosition(ctx, pos, newQty)
		})
		return nil
	}

	return fmt.Errorf("unknown action %q", cmd.Action)
}

// runAction executes a user action off the read loop. Failures surface
// through the coordinator's error stream, not the command response.
func (a *App) runAction(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Tracker.IOTimeoutS)*time.Second)
	defer cancel()
	_ = fn(ctx)
}

func parseFilter(s string) (core.FilterOption, error) {
	switch core.FilterOption(s) {
	case core.FilterAll, core.FilterProfitable, core.FilterLosing, core.FilterLong, core.FilterShort:
		return core.FilterOption(s), nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

func parseSort(s string) (core.SortOption, error) {
	switch core.SortOption(s) {
	case core.SortBySymbolAsc, core.SortByUnrealizedPLDesc, core.SortByMarketValueDesc, core.SortByAbsQuantityDesc:
		return core.SortOption(s), nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// seedPositions is the demo account used in mock mode.
func seedPositions() []core.Position {
	return []core.Position{
		{
			Symbol:        "AAPL",
			Quantity:      decimal.NewFromInt(10),
			Side:          core.PositionSideLong,
			AvgEntryPrice: decimal.NewFromInt(180),
			CurrentPrice:  decimal.NewFromInt(185),
		},
		{
			Symbol:        "MSFT",
			Quantity:      decimal.NewFromInt(-5),
			Side:          core.PositionSideShort,
			AvgEntryPrice: decimal.NewFromInt(410),
			CurrentPrice:  decimal.NewFromInt(405),
		},
	}
}
