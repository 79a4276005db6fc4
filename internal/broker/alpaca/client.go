// Package alpaca implements core.IBroker against the Alpaca trading REST API.
package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"portfolio_tracker/internal/core"
	apperrors "portfolio_tracker/pkg/errors"
	"portfolio_tracker/pkg/http"
)

// Config holds Alpaca connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	// RateLimit is requests per second against the REST API.
	RateLimit float64
}

// keySigner signs requests with the Alpaca API key header pair.
type keySigner struct {
	apiKey    string
	apiSecret string
}

func (s *keySigner) SignRequest(req *nethttp.Request) error {
	req.Header.Set("APCA-API-KEY-ID", s.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", s.apiSecret)
	return nil
}

// Client talks to the Alpaca REST API through the resilient HTTP client.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  core.ILogger
}

// NewClient creates an Alpaca broker client.
func NewClient(cfg Config, logger core.ILogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 3
	}

	return &Client{
		http:    http.NewClient(cfg.BaseURL, timeout, &keySigner{apiKey: cfg.APIKey, apiSecret: cfg.APISecret}),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  logger.WithField("component", "alpaca_client"),
	}
}

// positionResponse mirrors the wire shape of an Alpaca position. Numeric
// fields arrive as strings.
type positionResponse struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	Side           string `json:"side"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	MarketValue    string `json:"market_value"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

type orderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type orderResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ListPositions returns every open position on the account.
func (c *Client) ListPositions(ctx context.Context) ([]core.Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.http.Get(ctx, "/v2/positions", nil)
	if err != nil {
		return nil, c.mapError("list positions", err)
	}

	var raw []positionResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse positions response: %w", err)
	}

	positions := make([]core.Position, 0, len(raw))
	for _, r := range raw {
		pos, err := r.toPosition()
		if err != nil {
			c.logger.Warn("Skipping unparseable position", "symbol", r.Symbol, "error", err.Error())
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// GetPosition returns the position for one symbol, or (nil, nil) when the
// broker reports it closed.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*core.Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.http.Get(ctx, "/v2/positions/"+symbol, nil)
	if err != nil {
		var apiErr *http.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == nethttp.StatusNotFound {
			// Closed position, not a failure.
			return nil, nil
		}
		return nil, c.mapError("get position", err)
	}

	var raw positionResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse position response: %w", err)
	}

	pos, err := raw.toPosition()
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// SubmitOrder submits a market day order.
func (c *Client) SubmitOrder(ctx context.Context, order core.Order) (*core.OrderResult, error) {
	if !order.Quantity.IsPositive() {
		return nil, apperrors.ErrInvalidOrderQuantity
	}
	if order.Symbol == "" {
		return nil, apperrors.ErrInvalidSymbol
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := orderRequest{
		Symbol:        order.Symbol,
		Qty:           order.Quantity.String(),
		Side:          string(order.Side),
		Type:          order.Type,
		TimeInForce:   order.TimeInForce,
		ClientOrderID: order.ClientOrderID,
	}

	body, err := c.http.Post(ctx, "/v2/orders", req)
	if err != nil {
		return nil, c.mapError("submit order", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	return &core.OrderResult{
		OrderID:     resp.ID,
		Status:      resp.Status,
		SubmittedAt: resp.SubmittedAt,
	}, nil
}

func (r positionResponse) toPosition() (core.Position, error) {
	qty, err := decimal.NewFromString(r.Qty)
	if err != nil {
		return core.Position{}, fmt.Errorf("invalid qty %q: %w", r.Qty, err)
	}
	entry, err := decimal.NewFromString(r.AvgEntryPrice)
	if err != nil {
		return core.Position{}, fmt.Errorf("invalid avg_entry_price %q: %w", r.AvgEntryPrice, err)
	}
	price, err := decimal.NewFromString(r.CurrentPrice)
	if err != nil {
		return core.Position{}, fmt.Errorf("invalid current_price %q: %w", r.CurrentPrice, err)
	}

	side := core.PositionSideLong
	if r.Side == string(core.PositionSideShort) {
		side = core.PositionSideShort
	}

	pos := core.Position{
		Symbol:        r.Symbol,
		Quantity:      qty,
		Side:          side,
		AvgEntryPrice: entry,
	}
	// Derived fields are always recomputed locally so they cannot disagree
	// with the formulas used for streamed updates.
	return pos.Recompute(price), nil
}

func (c *Client) mapError(op string, err error) error {
	var apiErr *http.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case nethttp.StatusUnauthorized, nethttp.StatusForbidden:
			return fmt.Errorf("%s: %w", op, apperrors.ErrUnauthorized)
		case nethttp.StatusNotFound:
			return fmt.Errorf("%s: %w", op, apperrors.ErrPositionNotFound)
		case nethttp.StatusUnprocessableEntity:
			return fmt.Errorf("%s: %w", op, apperrors.ErrOrderRejected)
		case nethttp.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", op, apperrors.ErrRateLimitExceeded)
		case nethttp.StatusServiceUnavailable:
			return fmt.Errorf("%s: %w", op, apperrors.ErrBrokerMaintenance)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrNetwork, err)
}
