package pricing

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
)

type quote struct {
	store string
	price int64
	eta   string
}

// Static Kileleshwa price table, per product key.
var defaultTable = map[string][]quote{
	"sugar":       {{"Naivas", 230, "5 min"}, {"Quickmart", 245, "8 min"}, {"Tuskys", 250, "10 min"}, {"Carrefour", 235, "12 min"}},
	"milk":        {{"Naivas", 120, "5 min"}, {"Quickmart", 125, "8 min"}, {"Tuskys", 130, "10 min"}, {"Carrefour", 118, "12 min"}},
	"bread":       {{"Naivas", 55, "5 min"}, {"Quickmart", 60, "8 min"}, {"Tuskys", 58, "10 min"}, {"Carrefour", 57, "12 min"}},
	"rice":        {{"Naivas", 180, "5 min"}, {"Quickmart", 185, "8 min"}, {"Tuskys", 190, "10 min"}, {"Carrefour", 175, "12 min"}},
	"cooking oil": {{"Naivas", 450, "5 min"}, {"Quickmart", 460, "8 min"}, {"Tuskys", 470, "10 min"}, {"Carrefour", 445, "12 min"}},
	"tea":         {{"Naivas", 95, "5 min"}, {"Quickmart", 100, "8 min"}, {"Tuskys", 98, "10 min"}, {"Carrefour", 92, "12 min"}},
}

const (
	defaultArea = "Kileleshwa"
	// shorter queries only match keys they contain
	minFragmentLen = 3
)

// MockProvider serves prices from an in-memory table.
type MockProvider struct {
	keys []string // longest first
	rows map[string][]domain.PriceRow
}

func NewMockProvider() *MockProvider {
	rows := make(map[string][]domain.PriceRow, len(defaultTable))
	for product, quotes := range defaultTable {
		for _, q := range quotes {
			rows[product] = append(rows[product], domain.PriceRow{
				Store: q.store,
				Area:  defaultArea,
				Price: decimal.NewFromInt(q.price),
				ETA:   q.eta,
			})
		}
	}
	return NewMockProviderFromRows(rows)
}

// NewMockProviderFromRows builds a provider over a custom table keyed by
// product name.
func NewMockProviderFromRows(rows map[string][]domain.PriceRow) *MockProvider {
	p := &MockProvider{rows: make(map[string][]domain.PriceRow, len(rows))}
	for product, r := range rows {
		key := normalise(product)
		p.rows[key] = r
		p.keys = append(p.keys, key)
	}
	sort.Slice(p.keys, func(i, j int) bool {
		if len(p.keys[i]) != len(p.keys[j]) {
			return len(p.keys[i]) > len(p.keys[j])
		}
		return p.keys[i] < p.keys[j]
	})
	return p
}

// Lookup matches case-insensitively, either way round: "Sugar 2kg" matches
// "sugar" and "oil" matches "cooking oil". The longest matching key wins.
func (p *MockProvider) Lookup(ctx context.Context, product string) ([]domain.PriceRow, error) {
	query := normalise(product)
	if query == "" {
		return nil, nil
	}
	if rows, ok := p.rows[query]; ok {
		return copyRows(rows), nil
	}
	for _, key := range p.keys {
		if strings.Contains(query, key) || (len(query) >= minFragmentLen && strings.Contains(key, query)) {
			return copyRows(p.rows[key]), nil
		}
	}
	return nil, nil
}

// Products lists the product keys in the table.
func (p *MockProvider) Products() []string {
	keys := append([]string(nil), p.keys...)
	sort.Strings(keys)
	return keys
}

func copyRows(rows []domain.PriceRow) []domain.PriceRow {
	return append([]domain.PriceRow(nil), rows...)
}

func normalise(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
