package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the core wraps exactly one of these,
// so transports classify with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidArgument   = errors.New("invalid argument")
)

var (
	ErrOptionNotFound        = fmt.Errorf("stock option %w", ErrNotFound)
	ErrLineNotFound          = fmt.Errorf("cart line %w", ErrNotFound)
	ErrOrderNotFound         = fmt.Errorf("order %w", ErrNotFound)
	ErrInvalidShippingMethod = fmt.Errorf("shipping method %w", ErrNotFound)

	ErrEmptyCart         = fmt.Errorf("cart is empty: %w", ErrInvalidState)
	ErrAlreadyCanceled   = fmt.Errorf("order already canceled: %w", ErrInvalidState)
	ErrIllegalTransition = fmt.Errorf("status transition not allowed: %w", ErrInvalidState)

	ErrInvalidQuantity = fmt.Errorf("quantity must be positive: %w", ErrInvalidArgument)
	ErrUnknownStatus   = fmt.Errorf("unknown status value: %w", ErrInvalidArgument)
	ErrUnknownField    = fmt.Errorf("unknown status field: %w", ErrInvalidArgument)
)
