package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
	"github.com/rl1809/pricechek-rider/internal/port"
)

// Compare looks up every product and summarises the cheapest and average
// price of each. Products without rows are listed in NotFound.
func Compare(ctx context.Context, prices port.PriceProvider, products []string) (domain.Comparison, error) {
	cmp := domain.Comparison{TotalCheapest: decimal.Zero}
	for _, product := range products {
		rows, err := prices.Lookup(ctx, product)
		if err != nil {
			return domain.Comparison{}, fmt.Errorf("lookup %q: %w", product, err)
		}
		pc, ok := summarise(product, rows)
		if !ok {
			cmp.NotFound = append(cmp.NotFound, product)
			continue
		}
		cmp.Products = append(cmp.Products, pc)
		cmp.TotalCheapest = cmp.TotalCheapest.Add(pc.Cheapest.Price)
	}
	return cmp, nil
}

func summarise(product string, rows []domain.PriceRow) (domain.ProductComparison, bool) {
	if len(rows) == 0 {
		return domain.ProductComparison{}, false
	}
	cheapest := rows[0]
	sum := decimal.Zero
	for _, row := range rows {
		// strict comparison keeps the first-seen row on ties
		if row.Price.LessThan(cheapest.Price) {
			cheapest = row
		}
		sum = sum.Add(row.Price)
	}
	return domain.ProductComparison{
		Product:  product,
		Cheapest: cheapest,
		Average:  sum.Div(decimal.NewFromInt(int64(len(rows)))).Round(0),
		Rows:     rows,
	}, true
}
