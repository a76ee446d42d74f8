package domain

import "github.com/shopspring/decimal"

// PriceRow is one retailer quote for a product.
type PriceRow struct {
	Store string          `json:"store"`
	Area  string          `json:"area"`
	Price decimal.Decimal `json:"price"`
	ETA   string          `json:"eta"`
}

type ProductComparison struct {
	Product  string          `json:"product"`
	Cheapest PriceRow        `json:"cheapest"`
	Average  decimal.Decimal `json:"average"`
	Rows     []PriceRow      `json:"rows"`
}

type Comparison struct {
	Products      []ProductComparison `json:"products"`
	NotFound      []string            `json:"not_found,omitempty"`
	TotalCheapest decimal.Decimal     `json:"total_cheapest"`
}

// Items returns the names of the matched products in input order.
func (c Comparison) Items() []string {
	items := make([]string, 0, len(c.Products))
	for _, p := range c.Products {
		items = append(items, p.Product)
	}
	return items
}

// OutboundMessage is a text queued for delivery to a phone number.
type OutboundMessage struct {
	To   string
	Text string
}
