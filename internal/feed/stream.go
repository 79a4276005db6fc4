// Package feed adapts the broker's streaming endpoint to quote and position
// events.
package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"

	"portfolio_tracker/internal/core"
	"portfolio_tracker/pkg/websocket"
)

// Config holds stream connection settings.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	// Symbols to subscribe quotes for. Position updates cover the whole
	// account regardless.
	Symbols []string
}

// envelope is the outer frame of every stream message.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type quotePayload struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bid_price"`
}

type positionPayload struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
}

// Stream implements core.IFeed over a reconnecting WebSocket. Handlers are
// invoked from the read loop in transport arrival order.
type Stream struct {
	cfg    Config
	logger core.ILogger

	client *websocket.Client

	mu         sync.RWMutex
	onQuote    func(core.Quote)
	onPosition func(core.Position)
}

// NewStream creates a stream feed.
func NewStream(cfg Config, logger core.ILogger) *Stream {
	s := &Stream{
		cfg:    cfg,
		logger: logger.WithField("component", "feed"),
	}

	s.client = websocket.NewClient(cfg.URL, s.handleMessage, s.logger)
	s.client.SetOnConnected(s.subscribe)
	return s
}

// OnQuote registers the quote handler.
func (s *Stream) OnQuote(handler func(core.Quote)) {
	s.mu.Lock()
	s.onQuote = handler
	s.mu.Unlock()
}

// OnPosition registers the position handler.
func (s *Stream) OnPosition(handler func(core.Position)) {
	s.mu.Lock()
	s.onPosition = handler
	s.mu.Unlock()
}

// Start connects to the stream and begins delivering events.
func (s *Stream) Start(ctx context.Context) error {
	s.logger.Info("Starting feed", "url", s.cfg.URL, "symbols", s.cfg.Symbols)
	s.client.Start()
	return nil
}

// Stop closes the stream.
func (s *Stream) Stop() error {
	s.logger.Info("Stopping feed")
	s.client.Stop()
	return nil
}

// subscribe runs after every (re)connect. Resubscribing is how missed events
// during the outage get superseded by fresh data.
func (s *Stream) subscribe() {
	auth := map[string]interface{}{
		"action": "auth",
		"key":    s.cfg.APIKey,
		"secret": s.cfg.APISecret,
	}
	if err := s.client.Send(auth); err != nil {
		s.logger.Error("Stream auth failed", "error", err.Error())
		return
	}

	sub := map[string]interface{}{
		"action":  "subscribe",
		"quotes":  s.cfg.Symbols,
		"streams": []string{"positions"},
	}
	if err := s.client.Send(sub); err != nil {
		s.logger.Error("Stream subscribe failed", "error", err.Error())
	}
}

func (s *Stream) handleMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.logger.Warn("Dropping malformed stream frame", "error", err.Error())
		return
	}

	switch env.Stream {
	case "quotes":
		s.handleQuote(env.Data)
	case "positions":
		s.handlePosition(env.Data)
	default:
		// Control frames (auth acks, subscription confirms) are uninteresting.
		s.logger.Debug("Ignoring stream frame", "stream", env.Stream)
	}
}

func (s *Stream) handleQuote(data json.RawMessage) {
	var p quotePayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("Dropping malformed quote", "error", err.Error())
		return
	}

	bid, err := decimal.NewFromString(p.BidPrice)
	if err != nil {
		s.logger.Warn("Dropping quote with bad price", "symbol", p.Symbol, "bid_price", p.BidPrice)
		return
	}

	s.mu.RLock()
	handler := s.onQuote
	s.mu.RUnlock()
	if handler != nil {
		handler(core.Quote{Symbol: p.Symbol, BidPrice: bid})
	}
}

func (s *Stream) handlePosition(data json.RawMessage) {
	var p positionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("Dropping malformed position event", "error", err.Error())
		return
	}

	qty, err := decimal.NewFromString(p.Qty)
	if err != nil {
		s.logger.Warn("Dropping position event with bad qty", "symbol", p.Symbol, "qty", p.Qty)
		return
	}
	entry, err := decimal.NewFromString(p.AvgEntryPrice)
	if err != nil {
		s.logger.Warn("Dropping position event with bad entry price", "symbol", p.Symbol)
		return
	}
	price, err := decimal.NewFromString(p.CurrentPrice)
	if err != nil {
		s.logger.Warn("Dropping position event with bad price", "symbol", p.Symbol)
		return
	}

	side := core.PositionSideLong
	if p.Side == string(core.PositionSideShort) {
		side = core.PositionSideShort
	}

	pos := core.Position{
		Symbol:        p.Symbol,
		Quantity:      qty,
		Side:          side,
		AvgEntryPrice: entry,
	}.Recompute(price)

	s.mu.RLock()
	handler := s.onPosition
	s.mu.RUnlock()
	if handler != nil {
		handler(pos)
	}
}
