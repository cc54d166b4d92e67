package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrOutOfStock   = errors.New("insufficient stock")
	ErrInvalidInput = errors.New("invalid input")
	ErrBusy         = errors.New("operation in progress")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrNeedsHistory = errors.New("sale history selection required")
	ErrLocked       = errors.New("terminal locked")
	ErrGatewayDown  = errors.New("gateway unavailable")
)
