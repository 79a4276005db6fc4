package ledger

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

func makePosition(symbol string, qty, entry, price int64, side core.PositionSide) core.Position {
	return core.Position{
		Symbol:        symbol,
		Quantity:      decimal.NewFromInt(qty),
		Side:          side,
		AvgEntryPrice: decimal.NewFromInt(entry),
		CurrentPrice:  decimal.NewFromInt(price),
	}
}

func TestApplyLoad_ReplacesWholesale(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyLoad([]core.Position{
		makePosition("AAPL", 10, 180, 185, core.PositionSideLong),
		makePosition("MSFT", -5, 410, 405, core.PositionSideShort),
	})

	if l.Len() != 2 {
		t.Fatalf("Expected 2 positions, got %d", l.Len())
	}

	// A later load drops symbols absent from the new snapshot
	l.ApplyLoad([]core.Position{
		makePosition("AAPL", 10, 180, 185, core.PositionSideLong),
	})

	if l.Len() != 1 {
		t.Errorf("Expected 1 position after reload, got %d", l.Len())
	}
	if _, ok := l.Get("MSFT"); ok {
		t.Error("MSFT should have been dropped by the reload")
	}
}

func TestApplyLoad_SkipsZeroQuantityRows(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyLoad([]core.Position{
		makePosition("AAPL", 10, 180, 185, core.PositionSideLong),
		makePosition("GME", 0, 20, 25, core.PositionSideLong),
	})

	if l.Len() != 1 {
		t.Errorf("Expected zero-quantity row to be skipped, got %d positions", l.Len())
	}
}

func TestApplyPositionEvent_ZeroQuantityRemoves(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyLoad([]core.Position{
		makePosition("AAPL", 10, 180, 185, core.PositionSideLong),
	})

	l.ApplyPositionEvent(makePosition("AAPL", 0, 180, 185, core.PositionSideLong))

	if _, ok := l.Get("AAPL"); ok {
		t.Error("Zero-quantity event must remove the row")
	}
}

func TestApplyPositionEvent_RecomputesDerivedFields(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyPositionEvent(makePosition("AAPL", 10, 100, 120, core.PositionSideLong))

	p, ok := l.Get("AAPL")
	assert.True(t, ok)
	assert.True(t, p.UnrealizedPL.Equal(decimal.NewFromInt(200)), "long P&L = (120-100)*10, got %s", p.UnrealizedPL)
	assert.True(t, p.MarketValue.Equal(decimal.NewFromInt(1200)))
	assert.True(t, p.UnrealizedPLPercent.Equal(decimal.NewFromFloat(0.2)))
}

func TestApplyPositionEvent_ShortSidePL(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyPositionEvent(makePosition("TSLA", -4, 250, 240, core.PositionSideShort))

	p, ok := l.Get("TSLA")
	assert.True(t, ok)
	// Short profits when price drops: (250-240)*4 = 40
	assert.True(t, p.UnrealizedPL.Equal(decimal.NewFromInt(40)), "got %s", p.UnrealizedPL)
	assert.True(t, p.MarketValue.Equal(decimal.NewFromInt(960)))
}

func TestApplyQuoteEvent_OnlyTouchesMatchingSymbol(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyLoad([]core.Position{
		makePosition("AAPL", 10, 180, 185, core.PositionSideLong),
		makePosition("MSFT", 5, 400, 410, core.PositionSideLong),
	})

	l.ApplyQuoteEvent(core.Quote{Symbol: "AAPL", BidPrice: decimal.NewFromInt(190)})

	aapl, _ := l.Get("AAPL")
	msft, _ := l.Get("MSFT")

	assert.True(t, aapl.CurrentPrice.Equal(decimal.NewFromInt(190)))
	assert.True(t, aapl.UnrealizedPL.Equal(decimal.NewFromInt(100)))
	assert.True(t, msft.CurrentPrice.Equal(decimal.NewFromInt(410)), "other symbols must be untouched")
}

func TestApplyQuoteEvent_UnknownSymbolIsNoop(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyLoad([]core.Position{
		makePosition("AAPL", 10, 180, 185, core.PositionSideLong),
	})
	before := l.LastUpdated()

	l.ApplyQuoteEvent(core.Quote{Symbol: "NVDA", BidPrice: decimal.NewFromInt(900)})

	if l.Len() != 1 {
		t.Errorf("Quote for unknown symbol must not create a position, got %d rows", l.Len())
	}
	assert.Equal(t, before, l.LastUpdated(), "no-op quote must not bump lastUpdated")
}

func TestRemove(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyLoad([]core.Position{
		makePosition("AAPL", 10, 180, 185, core.PositionSideLong),
	})

	l.Remove("AAPL")
	if l.Len() != 0 {
		t.Errorf("Expected empty ledger, got %d rows", l.Len())
	}

	// Removing an absent symbol is harmless
	l.Remove("AAPL")
}

func TestPositions_ReturnsCopy(t *testing.T) {
	l := New(&mockLogger{})
	l.ApplyLoad([]core.Position{
		makePosition("AAPL", 10, 180, 185, core.PositionSideLong),
	})

	out := l.Positions()
	out[0].Quantity = decimal.NewFromInt(999)

	p, _ := l.Get("AAPL")
	assert.True(t, p.Quantity.Equal(decimal.NewFromInt(10)), "mutating the returned slice must not affect the ledger")
}
