package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus has no pending state: ORDER confirms immediately.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID         string          `json:"id"`
	UserPhone  string          `json:"user_phone"`
	Items      []string        `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Cancellable reports whether the order can still be cancelled at now.
func (o Order) Cancellable(now time.Time, window time.Duration) bool {
	if o.Status == OrderStatusCancelled {
		return false
	}
	return now.Sub(o.CreatedAt) <= window
}
