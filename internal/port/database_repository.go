package port

import (
	"context"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
)

type DatabaseRepository interface {
	// GetUser returns nil when no user is stored for phone
	GetUser(ctx context.Context, phone string) (*domain.User, error)

	// SaveUser inserts or replaces the user keyed by phone number
	SaveUser(ctx context.Context, user domain.User) error

	ListUsers(ctx context.Context) ([]domain.User, error)

	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns nil when the order does not exist
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// LatestOrder returns the most recently created order of a user, or nil
	LatestOrder(ctx context.Context, phone string) (*domain.Order, error)

	// RecentOrders returns up to limit orders of a user, newest first
	RecentOrders(ctx context.Context, phone string, limit int) ([]domain.Order, error)

	ListOrders(ctx context.Context) ([]domain.Order, error)

	// UpdateOrderStatus moves an order from one status to another, failing
	// when the stored status is not from
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
}
