package port

import (
	"context"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
)

type PriceProvider interface {
	// Lookup returns retailer rows for a product name, empty when nothing matches
	Lookup(ctx context.Context, product string) ([]domain.PriceRow, error)
}
