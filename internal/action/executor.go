// Package action turns user intents into order submissions plus an
// authoritative refresh of the affected symbol.
package action

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portfolio_tracker/internal/core"
)

// Coordinator is the slice of the reconciliation coordinator the executor
// needs: a post-action refresh hook and the user-visible error stream.
type Coordinator interface {
	RefreshOne(symbol string)
	ReportActionFailure(err error)
}

// Executor submits orders through the trading data source. Local state is
// never optimistically mutated: a successful submission is followed by an
// authoritative refresh of the symbol, a failed one leaves the ledger exactly
// as it was.
type Executor struct {
	broker      core.IBroker
	coordinator Coordinator
	logger      core.ILogger
}

// NewExecutor creates an action executor.
func NewExecutor(broker core.IBroker, coordinator Coordinator, logger core.ILogger) *Executor {
	return &Executor{
		broker:      broker,
		coordinator: coordinator,
		logger:      logger.WithField("component", "action_executor"),
	}
}

// ClosePosition submits a market day order for the full quantity on the
// opposite side of the position.
func (e *Executor) ClosePosition(ctx context.Context, pos core.Position) error {
	side := core.OrderSideSell
	if pos.Side == core.PositionSideShort {
		side = core.OrderSideBuy
	}

	return e.submit(ctx, core.Order{
		Symbol:        pos.Symbol,
		Quantity:      pos.Quantity.Abs(),
		Side:          side,
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: uuid.NewString(),
	})
}

// AdjustPosition resizes a position to newQuantity. A zero difference is a
// no-op: no order is submitted and the ledger is untouched.
func (e *Executor) AdjustPosition(ctx context.Context, pos core.Position, newQuantity decimal.Decimal) error {
	difference := newQuantity.Sub(pos.Quantity)
	if difference.IsZero() {
		e.logger.Debug("Adjust is a no-op", "symbol", pos.Symbol)
		return nil
	}

	return e.submit(ctx, core.Order{
		Symbol:        pos.Symbol,
		Quantity:      difference.Abs(),
		Side:          adjustSide(pos.Side, difference),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: uuid.NewString(),
	})
}

// adjustSide maps (position side, quantity delta sign) to an order side:
// increasing a long buys, decreasing a long sells, increasing a short sells,
// decreasing a short buys.
func adjustSide(side core.PositionSide, difference decimal.Decimal) core.OrderSide {
	if side == core.PositionSideShort {
		// Quantities are signed: growing a short pushes quantity further
		// negative.
		if difference.IsNegative() {
			return core.OrderSideSell
		}
		return core.OrderSideBuy
	}
	if difference.IsPositive() {
		return core.OrderSideBuy
	}
	return core.OrderSideSell
}

func (e *Executor) submit(ctx context.Context, order core.Order) error {
	result, err := e.broker.SubmitOrder(ctx, order)
	if err != nil {
		e.logger.Error("Order submission failed",
			"symbol", order.Symbol,
			"side", order.Side,
			"quantity", order.Quantity.String(),
			"error", err.Error())
		e.coordinator.ReportActionFailure(fmt.Errorf("submit %s %s %s: %w", order.Side, order.Quantity, order.Symbol, err))
		return err
	}

	e.logger.Info("Order submitted",
		"symbol", order.Symbol,
		"side", order.Side,
		"quantity", order.Quantity.String(),
		"order_id", result.OrderID)

	// Reconciliation, never optimism: read the symbol back from the source of
	// truth.
	e.coordinator.RefreshOne(order.Symbol)
	return nil
}
