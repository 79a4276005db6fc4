// Package ledger holds the authoritative in-memory table of open positions.
package ledger

import (
	"time"

	"portfolio_tracker/internal/core"
)

// Ledger maps symbol -> Position and recomputes derived fields on every
// write. It is exclusively owned by the coordinator's worker goroutine, so it
// carries no locks; it never blocks and never performs I/O.
type Ledger struct {
	positions   map[string]core.Position
	lastUpdated time.Time
	logger      core.ILogger

	now func() time.Time
}

// New creates an empty ledger.
func New(logger core.ILogger) *Ledger {
	return &Ledger{
		positions: make(map[string]core.Position),
		logger:    logger.WithField("component", "ledger"),
		now:       time.Now,
	}
}

// ApplyLoad replaces the entire position set wholesale. Used after a full
// snapshot load from the trading data source.
func (l *Ledger) ApplyLoad(positions []core.Position) {
	next := make(map[string]core.Position, len(positions))
	for _, p := range positions {
		if p.Quantity.IsZero() {
			continue
		}
		next[p.Symbol] = p.Recompute(p.CurrentPrice)
	}
	l.positions = next
	l.touch()
}

// ApplyPositionEvent upserts a single symbol, replacing the row entirely. A
// zero-quantity event removes the row instead of retaining a zero row.
func (l *Ledger) ApplyPositionEvent(p core.Position) {
	if p.Quantity.IsZero() {
		delete(l.positions, p.Symbol)
		l.touch()
		return
	}
	l.positions[p.Symbol] = p.Recompute(p.CurrentPrice)
	l.touch()
}

// ApplyQuoteEvent recomputes the derived fields of every row matching the
// quote's symbol. Rows for other symbols are left untouched.
func (l *Ledger) ApplyQuoteEvent(q core.Quote) {
	p, ok := l.positions[q.Symbol]
	if !ok {
		return
	}
	l.positions[q.Symbol] = p.Recompute(q.BidPrice)
	l.touch()
}

// Remove drops a symbol from the ledger. Used when an authoritative refresh
// reports the position fully closed.
func (l *Ledger) Remove(symbol string) {
	if _, ok := l.positions[symbol]; !ok {
		return
	}
	delete(l.positions, symbol)
	l.touch()
}

// Positions returns a copy of the current position set. Callers never see a
// reference into live mutable state.
func (l *Ledger) Positions() []core.Position {
	out := make([]core.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	return out
}

// Get returns the row for a symbol, if present.
func (l *Ledger) Get(symbol string) (core.Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	return len(l.positions)
}

// LastUpdated returns the time of the most recent applied mutation.
func (l *Ledger) LastUpdated() time.Time {
	return l.lastUpdated
}

func (l *Ledger) touch() {
	l.lastUpdated = l.now()
}
