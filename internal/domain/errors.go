package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrOrderRejected = errors.New("order rejected")
	ErrTerminalOrder = errors.New("order already terminal")
	ErrInvalidFill   = errors.New("invalid fill")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrNotSynced     = errors.New("orderbook not synced")
	ErrRateLimited   = errors.New("rate limited")
	ErrWSDisconnect  = errors.New("websocket disconnected")
)
