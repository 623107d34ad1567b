package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidMarketData = errors.New("invalid market data")
	ErrMarketUnavailable = errors.New("market unavailable")
	ErrSearchTimeout     = errors.New("news search timed out")
	ErrOrderRejected     = errors.New("order rejected")
	ErrConnectivity      = errors.New("connectivity error")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
)
