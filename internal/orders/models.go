package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentEMoney PaymentMethod = "emoney"
	PaymentCash   PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool { return m == PaymentEMoney || m == PaymentCash }

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address"`
	ZIP     string `json:"zip"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Payment is stored as submitted. Nothing here talks to a payment provider.
type Payment struct {
	Method       PaymentMethod `json:"method"`
	EMoneyNumber string        `json:"emoneyNumber,omitempty"`
	EMoneyPIN    string        `json:"emoneyPin,omitempty"`
}

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	VAT        decimal.Decimal `json:"vat"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	Status      Status      `json:"status"`
	UserID      string      `json:"userId,omitempty"`
	Customer    Customer    `json:"customer"`
	Payment     Payment     `json:"payment"`
	Totals      Totals      `json:"totals"`
	Items       []OrderItem `json:"items,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// OrderItem is a snapshot of the product at purchase time. It is never
// updated after insert, so later catalogue edits do not rewrite history.
type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"orderId"`
	ProductID   string          `json:"productId"`
	ProductSlug string          `json:"productSlug"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"createdAt"`
}
