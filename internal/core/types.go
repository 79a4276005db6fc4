package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide is the authoritative direction of a position. Quantity sign is
// informational only.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Position is one row of the ledger. MarketValue, UnrealizedPL and
// UnrealizedPLPercent are derived from CurrentPrice and must never lag behind
// the most recently applied price for the symbol.
type Position struct {
	Symbol              string          `json:"symbol"`
	Quantity            decimal.Decimal `json:"quantity"`
	Side                PositionSide    `json:"side"`
	AvgEntryPrice       decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	MarketValue         decimal.Decimal `json:"market_value"`
	UnrealizedPL        decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealized_pl_percent"`
}

// CostBasis returns AvgEntryPrice * |Quantity|, the denominator for
// percentage P&L.
func (p Position) CostBasis() decimal.Decimal {
	return p.AvgEntryPrice.Mul(p.Quantity.Abs())
}

// Recompute refreshes the derived fields from the given price and returns the
// updated row.
func (p Position) Recompute(price decimal.Decimal) Position {
	absQty := p.Quantity.Abs()
	p.CurrentPrice = price
	p.MarketValue = price.Mul(absQty)

	if p.Side == PositionSideShort {
		p.UnrealizedPL = p.AvgEntryPrice.Sub(price).Mul(absQty)
	} else {
		p.UnrealizedPL = price.Sub(p.AvgEntryPrice).Mul(p.Quantity)
	}

	basis := p.CostBasis()
	if basis.IsPositive() {
		p.UnrealizedPLPercent = p.UnrealizedPL.Div(basis)
	} else {
		p.UnrealizedPLPercent = decimal.Zero
	}
	return p
}

// Quote is a price tick for a symbol. It drives recomputation of derived
// fields only; it never creates or removes positions.
type Quote struct {
	Symbol   string          `json:"symbol"`
	BidPrice decimal.Decimal `json:"bid_price"`
}

// Order is a market day order submitted to the trading data source.
type Order struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"` // always > 0
	Side          OrderSide       `json:"side"`
	Type          string          `json:"type"`          // "market"
	TimeInForce   string          `json:"time_in_force"` // "day"
	ClientOrderID string          `json:"client_order_id"`
}

// OrderResult is the acknowledgement returned by the trading data source.
type OrderResult struct {
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Summary aggregates the full, unfiltered ledger.
type Summary struct {
	TotalMarketValue         decimal.Decimal `json:"total_market_value"`
	TotalUnrealizedPL        decimal.Decimal `json:"total_unrealized_pl"`
	TotalUnrealizedPLPercent decimal.Decimal `json:"total_unrealized_pl_percent"`
	ProfitableCount          int             `json:"profitable_count"`
	LosingCount              int             `json:"losing_count"`
}

// FilterOption selects a subset of positions for display.
type FilterOption string

const (
	FilterAll        FilterOption = "all"
	FilterProfitable FilterOption = "profitable"
	FilterLosing     FilterOption = "losing"
	FilterLong       FilterOption = "long"
	FilterShort      FilterOption = "short"
)

// SortOption orders the filtered positions. Ties are broken by symbol
// ascending so equal primary keys stay deterministic.
type SortOption string

const (
	SortBySymbolAsc        SortOption = "symbol_asc"
	SortByUnrealizedPLDesc SortOption = "unrealized_pl_desc"
	SortByMarketValueDesc  SortOption = "market_value_desc"
	SortByAbsQuantityDesc  SortOption = "abs_quantity_desc"
)

// Snapshot is the immutable (Projection, Summary, lastUpdated) triple
// published to subscribers after every applied mutation. Positions holds the
// filtered and sorted projection; Summary always reflects the full ledger.
type Snapshot struct {
	Positions   []Position   `json:"positions"`
	Summary     Summary      `json:"summary"`
	Filter      FilterOption `json:"filter"`
	Sort        SortOption   `json:"sort"`
	LastUpdated time.Time    `json:"last_updated"`
}
