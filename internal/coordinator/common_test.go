package coordinator

import (
	"context"

	"github.com/shopspring/decimal"
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

// MockBroker is a testify mock for core.IBroker.
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) ListPositions(ctx context.Context) ([]core.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.Position), args.Error(1)
}

func (m *MockBroker) GetPosition(ctx context.Context, symbol string) (*core.Position, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Position), args.Error(1)
}

func (m *MockBroker) SubmitOrder(ctx context.Context, order core.Order) (*core.OrderResult, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.OrderResult), args.Error(1)
}

func makePosition(symbol string, qty, entry, price int64, side core.PositionSide) core.Position {
	return core.Position{
		Symbol:        symbol,
		Quantity:      decimal.NewFromInt(qty),
		Side:          side,
		AvgEntryPrice: decimal.NewFromInt(entry),
		CurrentPrice:  decimal.NewFromInt(price),
	}
}
