package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

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

func TestHandleMessage_Quote(t *testing.T) {
	s := NewStream(Config{URL: "ws://unused"}, &mockLogger{})

	var got []core.Quote
	s.OnQuote(func(q core.Quote) { got = append(got, q) })

	s.handleMessage([]byte(`{"stream":"quotes","data":{"symbol":"AAPL","bid_price":"185.42"}}`))

	if assert.Len(t, got, 1) {
		assert.Equal(t, "AAPL", got[0].Symbol)
		assert.True(t, got[0].BidPrice.Equal(decimal.NewFromFloat(185.42)))
	}
}

func TestHandleMessage_Position(t *testing.T) {
	s := NewStream(Config{URL: "ws://unused"}, &mockLogger{})

	var got []core.Position
	s.OnPosition(func(p core.Position) { got = append(got, p) })

	s.handleMessage([]byte(`{"stream":"positions","data":{"symbol":"TSLA","qty":"-4","side":"short","avg_entry_price":"250","current_price":"240"}}`))

	if assert.Len(t, got, 1) {
		assert.Equal(t, core.PositionSideShort, got[0].Side)
		assert.True(t, got[0].UnrealizedPL.Equal(decimal.NewFromInt(40)), "derived fields are recomputed on arrival")
	}
}

func TestHandleMessage_DropsMalformedFrames(t *testing.T) {
	s := NewStream(Config{URL: "ws://unused"}, &mockLogger{})

	quotes := 0
	s.OnQuote(func(core.Quote) { quotes++ })

	s.handleMessage([]byte(`not json`))
	s.handleMessage([]byte(`{"stream":"quotes","data":{"symbol":"AAPL","bid_price":"oops"}}`))
	s.handleMessage([]byte(`{"stream":"listening","data":{}}`))

	assert.Zero(t, quotes)
}

func TestHandleMessage_NoHandlerRegistered(t *testing.T) {
	s := NewStream(Config{URL: "ws://unused"}, &mockLogger{})

	// Must not panic with no handlers wired up
	s.handleMessage([]byte(`{"stream":"quotes","data":{"symbol":"AAPL","bid_price":"185"}}`))
}
