package projection

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"portfolio_tracker/internal/core"
)

func position(symbol string, qty, entry, price float64, side core.PositionSide) core.Position {
	return core.Position{
		Symbol:        symbol,
		Quantity:      decimal.NewFromFloat(qty),
		Side:          side,
		AvgEntryPrice: decimal.NewFromFloat(entry),
	}.Recompute(decimal.NewFromFloat(price))
}

func symbols(positions []core.Position) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = p.Symbol
	}
	return out
}

func TestProject_FilterProfitableSortPLDesc(t *testing.T) {
	set := []core.Position{
		position("A", 1, 100, 105, core.PositionSideLong), // +5
		position("B", 1, 100, 97, core.PositionSideLong),  // -3
		position("C", 1, 100, 112, core.PositionSideLong), // +12
	}

	out := Project(set, core.FilterProfitable, core.SortByUnrealizedPLDesc)
	assert.Equal(t, []string{"C", "A"}, symbols(out))

	// Summary still covers all three regardless of the filter
	sum := Summarize(set)
	assert.True(t, sum.TotalUnrealizedPL.Equal(decimal.NewFromInt(14)), "got %s", sum.TotalUnrealizedPL)
	assert.Equal(t, 2, sum.ProfitableCount)
	assert.Equal(t, 1, sum.LosingCount)
}

func TestProject_FilterBySide(t *testing.T) {
	set := []core.Position{
		position("AAPL", 10, 180, 185, core.PositionSideLong),
		position("TSLA", -4, 250, 240, core.PositionSideShort),
	}

	assert.Equal(t, []string{"AAPL"}, symbols(Project(set, core.FilterLong, core.SortBySymbolAsc)))
	assert.Equal(t, []string{"TSLA"}, symbols(Project(set, core.FilterShort, core.SortBySymbolAsc)))
}

func TestProject_SymbolTiebreak(t *testing.T) {
	// Equal P&L on every row, ordering falls through to symbol ascending
	set := []core.Position{
		position("ZZZ", 1, 100, 110, core.PositionSideLong),
		position("AAA", 1, 100, 110, core.PositionSideLong),
		position("MMM", 1, 100, 110, core.PositionSideLong),
	}

	out := Project(set, core.FilterAll, core.SortByUnrealizedPLDesc)
	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, symbols(out))
}

func TestProject_SortMarketValueDesc(t *testing.T) {
	set := []core.Position{
		position("A", 1, 100, 100, core.PositionSideLong),  // MV 100
		position("B", 10, 50, 50, core.PositionSideLong),   // MV 500
		position("C", -2, 120, 110, core.PositionSideShort), // MV 220
	}

	out := Project(set, core.FilterAll, core.SortByMarketValueDesc)
	assert.Equal(t, []string{"B", "C", "A"}, symbols(out))
}

func TestProject_SortAbsQuantityDesc(t *testing.T) {
	set := []core.Position{
		position("A", 3, 10, 10, core.PositionSideLong),
		position("B", -8, 10, 10, core.PositionSideShort),
		position("C", 5, 10, 10, core.PositionSideLong),
	}

	out := Project(set, core.FilterAll, core.SortByAbsQuantityDesc)
	assert.Equal(t, []string{"B", "C", "A"}, symbols(out))
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	set := []core.Position{
		position("B", 1, 100, 105, core.PositionSideLong),
		position("A", 1, 100, 112, core.PositionSideLong),
	}

	_ = Project(set, core.FilterAll, core.SortByUnrealizedPLDesc)
	assert.Equal(t, "B", set[0].Symbol, "input order must be preserved")
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil)
	assert.True(t, sum.TotalMarketValue.IsZero())
	assert.True(t, sum.TotalUnrealizedPL.IsZero())
	assert.True(t, sum.TotalUnrealizedPLPercent.IsZero(), "zero cost basis must yield zero percent, not a division error")
	assert.Equal(t, 0, sum.ProfitableCount)
	assert.Equal(t, 0, sum.LosingCount)
}

func TestSummarize_BreakEvenCountsNeither(t *testing.T) {
	set := []core.Position{
		position("FLAT", 1, 100, 100, core.PositionSideLong),
	}

	sum := Summarize(set)
	assert.Equal(t, 0, sum.ProfitableCount)
	assert.Equal(t, 0, sum.LosingCount)
}

func TestSummarize_PercentOverTotalCostBasis(t *testing.T) {
	set := []core.Position{
		position("A", 10, 100, 110, core.PositionSideLong), // basis 1000, PL +100
		position("B", 10, 100, 95, core.PositionSideLong),  // basis 1000, PL -50
	}

	sum := Summarize(set)
	assert.True(t, sum.TotalUnrealizedPL.Equal(decimal.NewFromInt(50)))
	assert.True(t, sum.TotalUnrealizedPLPercent.Equal(decimal.NewFromFloat(0.025)), "got %s", sum.TotalUnrealizedPLPercent)
}
