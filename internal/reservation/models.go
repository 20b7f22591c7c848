package reservation

import (
	"errors"
	"time"
)

// DefaultTTL is how long a hold keeps stock out of other shoppers' reach.
const DefaultTTL = 30 * time.Minute

var (
	ErrInvalidQuantity   = errors.New("Quantity must be greater than 0")
	ErrHolderRequired    = errors.New("User ID or Session ID is required")
	ErrProductNotFound   = errors.New("Product not found")
	ErrInsufficientStock = errors.New("Insufficient stock")
)

type Reservation struct {
	ID        string
	ProductID string
	Holder    Holder
	Quantity  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Active reports whether the hold still counts against available stock at now.
func (r Reservation) Active(now time.Time) bool { return r.ExpiresAt.After(now) }
