package action

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"portfolio_tracker/internal/core"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, f ...interface{})               {}
func (m *mockLogger) Info(msg string, f ...interface{})                {}
func (m *mockLogger) Warn(msg string, f ...interface{})                {}
func (m *mockLogger) Error(msg string, f ...interface{})               {}
func (m *mockLogger) Fatal(msg string, f ...interface{})               {}
func (m *mockLogger) WithField(k string, v interface{}) core.ILogger   { return m }
func (m *mockLogger) WithFields(f map[string]interface{}) core.ILogger { return m }

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) ListPositions(ctx context.Context) ([]core.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.Position), args.Error(1)
}

func (m *mockBroker) GetPosition(ctx context.Context, symbol string) (*core.Position, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Position), args.Error(1)
}

func (m *mockBroker) SubmitOrder(ctx context.Context, order core.Order) (*core.OrderResult, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.OrderResult), args.Error(1)
}

// recordingCoordinator captures refresh and failure calls.
type recordingCoordinator struct {
	refreshed []string
	failures  []error
}

func (r *recordingCoordinator) RefreshOne(symbol string)      { r.refreshed = append(r.refreshed, symbol) }
func (r *recordingCoordinator) ReportActionFailure(err error) { r.failures = append(r.failures, err) }

func longPosition(symbol string, qty int64) core.Position {
	return core.Position{
		Symbol:        symbol,
		Quantity:      decimal.NewFromInt(qty),
		Side:          core.PositionSideLong,
		AvgEntryPrice: decimal.NewFromInt(100),
	}.Recompute(decimal.NewFromInt(120))
}

func shortPosition(symbol string, qty int64) core.Position {
	return core.Position{
		Symbol:        symbol,
		Quantity:      decimal.NewFromInt(qty),
		Side:          core.PositionSideShort,
		AvgEntryPrice: decimal.NewFromInt(100),
	}.Recompute(decimal.NewFromInt(90))
}

func submittedOrder(broker *mockBroker) core.Order {
	return broker.Calls[0].Arguments.Get(1).(core.Order)
}

func TestClosePosition_LongSubmitsSell(t *testing.T) {
	broker := new(mockBroker)
	coord := &recordingCoordinator{}
	exec := NewExecutor(broker, coord, &mockLogger{})

	broker.On("SubmitOrder", mock.Anything, mock.Anything).Return(&core.OrderResult{OrderID: "1"}, nil)

	err := exec.ClosePosition(context.Background(), longPosition("AAPL", 10))
	assert.NoError(t, err)

	order := submittedOrder(broker)
	assert.Equal(t, core.OrderSideSell, order.Side)
	assert.True(t, order.Quantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "market", order.Type)
	assert.Equal(t, "day", order.TimeInForce)
	assert.NotEmpty(t, order.ClientOrderID)

	assert.Equal(t, []string{"AAPL"}, coord.refreshed, "success must trigger an authoritative refresh")
	assert.Empty(t, coord.failures)
}

func TestClosePosition_ShortSubmitsBuyForAbsQuantity(t *testing.T) {
	broker := new(mockBroker)
	coord := &recordingCoordinator{}
	exec := NewExecutor(broker, coord, &mockLogger{})

	broker.On("SubmitOrder", mock.Anything, mock.Anything).Return(&core.OrderResult{OrderID: "1"}, nil)

	err := exec.ClosePosition(context.Background(), shortPosition("TSLA", -4))
	assert.NoError(t, err)

	order := submittedOrder(broker)
	assert.Equal(t, core.OrderSideBuy, order.Side)
	assert.True(t, order.Quantity.Equal(decimal.NewFromInt(4)), "quantity must be positive, got %s", order.Quantity)
}

func TestAdjustPosition_NoopWhenUnchanged(t *testing.T) {
	broker := new(mockBroker)
	coord := &recordingCoordinator{}
	exec := NewExecutor(broker, coord, &mockLogger{})

	err := exec.AdjustPosition(context.Background(), longPosition("AAPL", 10), decimal.NewFromInt(10))
	assert.NoError(t, err)

	broker.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
	assert.Empty(t, coord.refreshed)
	assert.Empty(t, coord.failures)
}

func TestAdjustPosition_SideTable(t *testing.T) {
	cases := []struct {
		name     string
		position core.Position
		newQty   int64
		wantSide core.OrderSide
		wantQty  int64
	}{
		{"long increase buys", longPosition("A", 10), 15, core.OrderSideBuy, 5},
		{"long decrease sells", longPosition("A", 10), 4, core.OrderSideSell, 6},
		{"short increase sells", shortPosition("A", -4), -10, core.OrderSideSell, 6},
		{"short decrease buys", shortPosition("A", -4), -1, core.OrderSideBuy, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broker := new(mockBroker)
			coord := &recordingCoordinator{}
			exec := NewExecutor(broker, coord, &mockLogger{})

			broker.On("SubmitOrder", mock.Anything, mock.Anything).Return(&core.OrderResult{OrderID: "1"}, nil)

			err := exec.AdjustPosition(context.Background(), tc.position, decimal.NewFromInt(tc.newQty))
			assert.NoError(t, err)

			order := submittedOrder(broker)
			assert.Equal(t, tc.wantSide, order.Side)
			assert.True(t, order.Quantity.Equal(decimal.NewFromInt(tc.wantQty)), "got %s", order.Quantity)
		})
	}
}

func TestSubmitFailure_ReportsAndSkipsRefresh(t *testing.T) {
	broker := new(mockBroker)
	coord := &recordingCoordinator{}
	exec := NewExecutor(broker, coord, &mockLogger{})

	rejection := errors.New("insufficient buying power")
	broker.On("SubmitOrder", mock.Anything, mock.Anything).Return(nil, rejection)

	err := exec.ClosePosition(context.Background(), longPosition("AAPL", 10))
	assert.Error(t, err)

	assert.Empty(t, coord.refreshed, "failed submission must not refresh")
	if assert.Len(t, coord.failures, 1) {
		assert.ErrorIs(t, coord.failures[0], rejection)
	}
}
