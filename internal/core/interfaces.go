// Package core defines the core interfaces for the position tracker
package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// IBroker defines the trading data source the tracker reconciles against.
type IBroker interface {
	// ListPositions returns every open position on the account.
	ListPositions(ctx context.Context) ([]Position, error)
	// GetPosition returns the position for one symbol, or (nil, nil) when the
	// position has been fully closed.
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	// SubmitOrder submits a market day order.
	SubmitOrder(ctx context.Context, order Order) (*OrderResult, error)
}

// IFeed is the streaming quote/position source. Events arrive on the
// registered handlers in transport arrival order; no ordering is guaranteed
// between the two streams.
type IFeed interface {
	Start(ctx context.Context) error
	Stop() error
	OnQuote(handler func(Quote))
	OnPosition(handler func(Position))
}

// ILedger is the authoritative in-memory position table. Implementations are
// pure in-memory, never block and never perform I/O; all mutation goes
// through the single-writer coordinator.
type ILedger interface {
	ApplyLoad(positions []Position)
	ApplyPositionEvent(p Position)
	ApplyQuoteEvent(q Quote)
	Remove(symbol string)
	Positions() []Position
	Len() int
}

// ICoordinator serializes every ledger mutation through one FIFO queue and
// publishes a fresh snapshot after each applied item.
type ICoordinator interface {
	Start(ctx context.Context) error
	Close() error

	LoadAll()
	RefreshOne(symbol string)
	EnqueueQuote(q Quote)
	EnqueuePosition(p Position)
	SetFilter(f FilterOption)
	SetSort(s SortOption)
	ReportActionFailure(err error)
	DismissError()

	Subscribe() <-chan Snapshot
	Errors() <-chan UserError
	CurrentSnapshot() Snapshot
}

// IActionExecutor turns user intents into order submissions plus an
// authoritative refresh of the affected symbol.
type IActionExecutor interface {
	ClosePosition(ctx context.Context, pos Position) error
	AdjustPosition(ctx context.Context, pos Position, newQuantity decimal.Decimal) error
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
