// Package mock provides in-memory broker and feed implementations for
// development and testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portfolio_tracker/internal/core"
)

// Broker is an in-memory core.IBroker. Submitted orders apply to its own
// position table so refresh round-trips behave like a real account.
type Broker struct {
	mu        sync.Mutex
	positions map[string]core.Position
	logger    core.ILogger

	// Errors to inject, consumed one call at a time.
	listErr   error
	getErr    error
	submitErr error
}

// NewBroker creates a mock broker seeded with the given positions.
func NewBroker(seed []core.Position, logger core.ILogger) *Broker {
	positions := make(map[string]core.Position, len(seed))
	for _, p := range seed {
		positions[p.Symbol] = p.Recompute(p.CurrentPrice)
	}
	return &Broker{
		positions: positions,
		logger:    logger.WithField("component", "mock_broker"),
	}
}

// FailNextList makes the next ListPositions call return err.
func (b *Broker) FailNextList(err error) {
	b.mu.Lock()
	b.listErr = err
	b.mu.Unlock()
}

// FailNextGet makes the next GetPosition call return err.
func (b *Broker) FailNextGet(err error) {
	b.mu.Lock()
	b.getErr = err
	b.mu.Unlock()
}

// FailNextSubmit makes the next SubmitOrder call return err.
func (b *Broker) FailNextSubmit(err error) {
	b.mu.Lock()
	b.submitErr = err
	b.mu.Unlock()
}

// SetPosition inserts or replaces a position on the simulated account.
func (b *Broker) SetPosition(p core.Position) {
	b.mu.Lock()
	b.positions[p.Symbol] = p.Recompute(p.CurrentPrice)
	b.mu.Unlock()
}

// ListPositions returns every open position.
func (b *Broker) ListPositions(ctx context.Context) ([]core.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listErr != nil {
		err := b.listErr
		b.listErr = nil
		return nil, err
	}

	out := make([]core.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out, nil
}

// GetPosition returns the position for one symbol, (nil, nil) when closed.
func (b *Broker) GetPosition(ctx context.Context, symbol string) (*core.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.getErr != nil {
		err := b.getErr
		b.getErr = nil
		return nil, err
	}

	p, ok := b.positions[symbol]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SubmitOrder fills the order immediately against the simulated account.
func (b *Broker) SubmitOrder(ctx context.Context, order core.Order) (*core.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.submitErr != nil {
		err := b.submitErr
		b.submitErr = nil
		return nil, err
	}

	if !order.Quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", order.Quantity)
	}

	b.fill(order)

	b.logger.Debug("Mock order filled", "symbol", order.Symbol, "side", order.Side, "quantity", order.Quantity.String())

	return &core.OrderResult{
		OrderID:     uuid.NewString(),
		Status:      "filled",
		SubmittedAt: time.Now(),
	}, nil
}

func (b *Broker) fill(order core.Order) {
	pos, ok := b.positions[order.Symbol]
	if !ok {
		side := core.PositionSideLong
		qty := order.Quantity
		if order.Side == core.OrderSideSell {
			side = core.PositionSideShort
			qty = order.Quantity.Neg()
		}
		b.positions[order.Symbol] = core.Position{
			Symbol:        order.Symbol,
			Quantity:      qty,
			Side:          side,
			AvgEntryPrice: decimal.NewFromInt(100),
		}.Recompute(decimal.NewFromInt(100))
		return
	}

	delta := order.Quantity
	if order.Side == core.OrderSideSell {
		delta = delta.Neg()
	}
	pos.Quantity = pos.Quantity.Add(delta)

	if pos.Quantity.IsZero() {
		delete(b.positions, order.Symbol)
		return
	}

	if pos.Quantity.IsNegative() {
		pos.Side = core.PositionSideShort
	} else {
		pos.Side = core.PositionSideLong
	}
	b.positions[order.Symbol] = pos.Recompute(pos.CurrentPrice)
}
