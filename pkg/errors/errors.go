package apperrors

import "errors"

// Standardized broker/transport errors
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNetwork              = errors.New("network error")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrPositionNotFound     = errors.New("position not found")
	ErrOrderRejected        = errors.New("order rejected")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrInvalidOrderQuantity = errors.New("invalid order quantity")
	ErrBrokerMaintenance    = errors.New("broker maintenance")
)
