// Package projection derives the display view and summary metrics from a
// ledger snapshot. Everything here is a pure function of its inputs.
package projection

import (
	"sort"

	"github.com/shopspring/decimal"

	"portfolio_tracker/internal/core"
)

// Project applies the filter and sort options to a position set and returns a
// new, ordered slice. The input slice is not modified.
func Project(positions []core.Position, filter core.FilterOption, sortOpt core.SortOption) []core.Position {
	out := make([]core.Position, 0, len(positions))
	for _, p := range positions {
		if matches(p, filter) {
			out = append(out, p)
		}
	}

	less := comparator(sortOpt)
	sort.SliceStable(out, func(i, j int) bool {
		if less != nil {
			if c := less(out[i], out[j]); c != 0 {
				return c < 0
			}
		}
		// Secondary key: symbol ascending, keeps equal primary keys deterministic.
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Summarize computes the aggregate metrics over the full, unfiltered position
// set. It must never be fed the filtered projection.
func Summarize(positions []core.Position) core.Summary {
	var s core.Summary
	s.TotalMarketValue = decimal.Zero
	s.TotalUnrealizedPL = decimal.Zero
	s.TotalUnrealizedPLPercent = decimal.Zero

	totalCostBasis := decimal.Zero
	for _, p := range positions {
		s.TotalMarketValue = s.TotalMarketValue.Add(p.MarketValue)
		s.TotalUnrealizedPL = s.TotalUnrealizedPL.Add(p.UnrealizedPL)
		totalCostBasis = totalCostBasis.Add(p.CostBasis())

		if p.UnrealizedPL.IsPositive() {
			s.ProfitableCount++
		} else if p.UnrealizedPL.IsNegative() {
			s.LosingCount++
		}
	}

	if totalCostBasis.IsPositive() {
		s.TotalUnrealizedPLPercent = s.TotalUnrealizedPL.Div(totalCostBasis)
	}
	return s
}

func matches(p core.Position, filter core.FilterOption) bool {
	switch filter {
	case core.FilterProfitable:
		return p.UnrealizedPL.IsPositive()
	case core.FilterLosing:
		return p.UnrealizedPL.IsNegative()
	case core.FilterLong:
		return p.Side == core.PositionSideLong
	case core.FilterShort:
		return p.Side == core.PositionSideShort
	default:
		return true
	}
}

// comparator returns the primary ordering for a sort option: negative when a
// sorts before b, zero when tied. Nil means symbol order alone decides.
func comparator(opt core.SortOption) func(a, b core.Position) int {
	switch opt {
	case core.SortByUnrealizedPLDesc:
		return func(a, b core.Position) int { return b.UnrealizedPL.Cmp(a.UnrealizedPL) }
	case core.SortByMarketValueDesc:
		return func(a, b core.Position) int { return b.MarketValue.Cmp(a.MarketValue) }
	case core.SortByAbsQuantityDesc:
		return func(a, b core.Position) int { return b.Quantity.Abs().Cmp(a.Quantity.Abs()) }
	default:
		return nil
	}
}
