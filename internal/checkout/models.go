package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
	"github.com/ariefcatur/go-storefront-stock/internal/reservation"
)

type Item struct {
	ProductID string
	Quantity  int
}

type Request struct {
	Items    []Item
	Customer orders.Customer
	Payment  orders.Payment
	Holder   reservation.Holder
}

// LineItem is a priced cart line, frozen from the catalogue at checkout time.
type LineItem struct {
	ProductID   string          `json:"productId"`
	ProductSlug string          `json:"productSlug"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
}

func newLine(p *catalog.Product, qty int) LineItem {
	return LineItem{
		ProductID:   p.ID,
		ProductSlug: p.Slug,
		ProductName: p.Name,
		Quantity:    qty,
		UnitPrice:   p.Price,
		Total:       p.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

type Receipt struct {
	OrderID     string     `json:"orderId"`
	OrderNumber string     `json:"orderNumber"`
	Message     string     `json:"message"`
	Items       []LineItem `json:"items"`
	orders.Totals
}
