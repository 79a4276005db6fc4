package alpaca

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_tracker/internal/core"
	apperrors "portfolio_tracker/pkg/errors"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, f ...interface{})               {}
func (m *mockLogger) Info(msg string, f ...interface{})                {}
func (m *mockLogger) Warn(msg string, f ...interface{})                {}
func (m *mockLogger) Error(msg string, f ...interface{})               {}
func (m *mockLogger) Fatal(msg string, f ...interface{})               {}
func (m *mockLogger) WithField(k string, v interface{}) core.ILogger   { return m }
func (m *mockLogger) WithFields(f map[string]interface{}) core.ILogger { return m }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "test_key",
		APISecret: "test_secret",
		Timeout:   5 * time.Second,
		RateLimit: 100,
	}, &mockLogger{})
}

func TestListPositions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/positions", r.URL.Path)
		assert.Equal(t, "test_key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "test_secret", r.Header.Get("APCA-API-SECRET-KEY"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"symbol":"AAPL","qty":"10","side":"long","avg_entry_price":"180","current_price":"185"},
			{"symbol":"TSLA","qty":"-4","side":"short","avg_entry_price":"250","current_price":"240"}
		]`))
	})

	positions, err := client.ListPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, core.PositionSideLong, positions[0].Side)
	assert.True(t, positions[0].UnrealizedPL.Equal(decimal.NewFromInt(50)), "derived fields are recomputed locally")

	assert.Equal(t, core.PositionSideShort, positions[1].Side)
	assert.True(t, positions[1].UnrealizedPL.Equal(decimal.NewFromInt(40)))
}

func TestListPositions_SkipsUnparseableRows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"AAPL","qty":"10","side":"long","avg_entry_price":"180","current_price":"185"},
			{"symbol":"BAD","qty":"not-a-number","side":"long","avg_entry_price":"1","current_price":"1"}
		]`))
	})

	positions, err := client.ListPositions(context.Background())
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestGetPosition_NotFoundMeansClosed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":40410000,"message":"position does not exist"}`, http.StatusNotFound)
	})

	pos, err := client.GetPosition(context.Background(), "AAPL")
	assert.NoError(t, err)
	assert.Nil(t, pos, "404 is a closed position, not a failure")
}

func TestGetPosition_Present(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/positions/AAPL", r.URL.Path)
		w.Write([]byte(`{"symbol":"AAPL","qty":"10","side":"long","avg_entry_price":"180","current_price":"190"}`))
	})

	pos, err := client.GetPosition(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.CurrentPrice.Equal(decimal.NewFromInt(190)))
}

func TestSubmitOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/orders", r.URL.Path)
		w.Write([]byte(`{"id":"order-1","status":"accepted","submitted_at":"2026-08-20T14:00:00Z"}`))
	})

	result, err := client.SubmitOrder(context.Background(), core.Order{
		Symbol:      "AAPL",
		Quantity:    decimal.NewFromInt(10),
		Side:        core.OrderSideSell,
		Type:        "market",
		TimeInForce: "day",
	})
	require.NoError(t, err)
	assert.Equal(t, "order-1", result.OrderID)
	assert.Equal(t, "accepted", result.Status)
}

func TestSubmitOrder_RejectsNonPositiveQuantity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request should reach the server")
	})

	_, err := client.SubmitOrder(context.Background(), core.Order{
		Symbol:   "AAPL",
		Quantity: decimal.Zero,
		Side:     core.OrderSideBuy,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrderQuantity)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, apperrors.ErrUnauthorized},
		{"rejected", http.StatusUnprocessableEntity, apperrors.ErrOrderRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{}`, tc.status)
			})

			_, err := client.SubmitOrder(context.Background(), core.Order{
				Symbol:   "AAPL",
				Quantity: decimal.NewFromInt(1),
				Side:     core.OrderSideBuy,
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
