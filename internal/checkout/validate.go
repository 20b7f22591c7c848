package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
)

// ValidateCart resolves every line through the catalogue and collects all
// problems before failing, so the shopper sees the whole list at once.
func ValidateCart(ctx context.Context, lookup catalog.Lookup, items []Item) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, &Error{Kind: CartValidationFailed, Message: "Cart is empty"}
	}

	lines := make([]LineItem, 0, len(items))
	var problems []FieldError
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		p, err := lookup.GetProduct(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			problems = append(problems, FieldError{Field: field, Message: "Product not found: " + it.ProductID})
			continue
		}
		if err != nil {
			return nil, unexpected(err)
		}
		if it.Quantity <= 0 {
			problems = append(problems, FieldError{Field: field, Message: "Invalid quantity for product " + it.ProductID})
			continue
		}
		lines = append(lines, newLine(p, it.Quantity))
	}
	if len(problems) > 0 {
		return nil, &Error{Kind: CartValidationFailed, Message: "Cart validation failed", Errors: problems}
	}
	return lines, nil
}

// ValidatePayment checks the payment fields are complete. It never contacts a provider.
func ValidatePayment(p orders.Payment) error {
	switch p.Method {
	case orders.PaymentCash:
		return nil
	case orders.PaymentEMoney:
		if p.EMoneyNumber == "" || p.EMoneyPIN == "" {
			return &Error{
				Kind:    PaymentValidationFailed,
				Message: "e-Money payment requires emoneyNumber and emoneyPin",
				Errors:  []FieldError{{Field: "payment", Message: "e-Money payment requires emoneyNumber and emoneyPin"}},
			}
		}
		return nil
	default:
		return &Error{
			Kind:    PaymentValidationFailed,
			Message: fmt.Sprintf("Unsupported payment method: %q", p.Method),
			Errors:  []FieldError{{Field: "payment.method", Message: "Payment method must be emoney or cash"}},
		}
	}
}
