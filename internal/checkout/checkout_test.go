package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	"github.com/ariefcatur/go-storefront-stock/internal/config"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
)

type fakeCatalog map[string]*catalog.Product

func (f fakeCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

type brokenCatalog struct{}

func (brokenCatalog) GetProduct(context.Context, string) (*catalog.Product, error) {
	return nil, errors.New("connection reset")
}

func product(id, name, price string) *catalog.Product {
	return &catalog.Product{ID: id, Slug: id + "-slug", Name: name, Price: decimal.RequireFromString(price)}
}

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var ce *Error
	require.True(t, errors.As(err, &ce), "want *checkout.Error, got %T", err)
	return ce
}

func TestComputeTotalsLiteral(t *testing.T) {
	lines := []LineItem{
		newLine(product("xx99", "XX99 Mark II", "2999"), 1),
		newLine(product("yx1", "YX1 Earphones", "899"), 2),
	}
	got := ComputeTotals(lines, DefaultShipping, DefaultVATRate)

	assert.Equal(t, "4797.00", got.Subtotal.StringFixed(2))
	assert.Equal(t, "50.00", got.Shipping.StringFixed(2))
	assert.Equal(t, "959.40", got.VAT.StringFixed(2))
	assert.Equal(t, "5806.40", got.GrandTotal.StringFixed(2))
	assert.True(t, got.GrandTotal.Equal(got.Subtotal.Add(got.Shipping).Add(got.VAT)))
}

func TestComputeTotalsRoundsVAT(t *testing.T) {
	lines := []LineItem{newLine(product("p", "P", "0.125"), 1)}
	got := ComputeTotals(lines, decimal.Zero, DefaultVATRate)
	// 0.125 * 0.2 = 0.025 -> 0.03 (half away from zero)
	assert.Equal(t, "0.03", got.VAT.StringFixed(2))
}

func TestRatesFromConfig(t *testing.T) {
	ship, vat := (&Service{}).rates()
	assert.True(t, ship.Equal(DefaultShipping))
	assert.True(t, vat.Equal(DefaultVATRate))

	t.Setenv("SHIPPING_FEE", "0")
	t.Setenv("VAT_RATE", "0")
	cfg, err := config.Load()
	require.NoError(t, err)
	cfgShip, err := cfg.Shipping()
	require.NoError(t, err)
	cfgVAT, err := cfg.VAT()
	require.NoError(t, err)

	svc := &Service{Shipping: &cfgShip, VATRate: &cfgVAT}
	ship, vat = svc.rates()
	assert.True(t, ship.IsZero())
	assert.True(t, vat.IsZero())

	got := ComputeTotals([]LineItem{newLine(product("xx99", "XX99 Mark II", "2999"), 1)}, ship, vat)
	assert.Equal(t, "2999.00", got.GrandTotal.StringFixed(2))
	assert.True(t, got.VAT.IsZero())
}

func TestValidateCart(t *testing.T) {
	ctx := context.Background()
	cat := fakeCatalog{"xx99": product("xx99", "XX99 Mark II", "2999")}

	t.Run("empty", func(t *testing.T) {
		_, err := ValidateCart(ctx, cat, nil)
		ce := asError(t, err)
		assert.Equal(t, CartValidationFailed, ce.Kind)
		assert.Equal(t, "Cart is empty", ce.Message)
	})

	t.Run("collects every problem", func(t *testing.T) {
		_, err := ValidateCart(ctx, cat, []Item{
			{ProductID: "ghost", Quantity: 1},
			{ProductID: "xx99", Quantity: 0},
			{ProductID: "xx99", Quantity: 1},
		})
		ce := asError(t, err)
		assert.Equal(t, "Cart validation failed", ce.Message)
		require.Len(t, ce.Errors, 2)
		assert.Equal(t, "Product not found: ghost", ce.Errors[0].Message)
		assert.Equal(t, "Invalid quantity for product xx99", ce.Errors[1].Message)
	})

	t.Run("prices lines from the catalogue", func(t *testing.T) {
		lines, err := ValidateCart(ctx, cat, []Item{{ProductID: "xx99", Quantity: 3}})
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, "8997", lines[0].Total.String())
		assert.Equal(t, "XX99 Mark II", lines[0].ProductName)
	})

	t.Run("lookup failure is unexpected", func(t *testing.T) {
		_, err := ValidateCart(ctx, brokenCatalog{}, []Item{{ProductID: "x", Quantity: 1}})
		ce := asError(t, err)
		assert.Equal(t, UnexpectedError, ce.Kind)
		assert.Equal(t, "An unexpected error occurred", ce.Message)
		assert.ErrorContains(t, ce, "connection reset")
	})
}

func TestValidatePayment(t *testing.T) {
	assert.NoError(t, ValidatePayment(orders.Payment{Method: orders.PaymentCash}))
	assert.NoError(t, ValidatePayment(orders.Payment{Method: orders.PaymentEMoney, EMoneyNumber: "123456789", EMoneyPIN: "1234"}))

	ce := asError(t, ValidatePayment(orders.Payment{Method: orders.PaymentEMoney, EMoneyNumber: "123456789"}))
	assert.Equal(t, PaymentValidationFailed, ce.Kind)
	assert.Equal(t, "e-Money payment requires emoneyNumber and emoneyPin", ce.Message)

	ce = asError(t, ValidatePayment(orders.Payment{Method: "card"}))
	assert.Equal(t, PaymentValidationFailed, ce.Kind)
}
