package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	"github.com/ariefcatur/go-storefront-stock/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-stock/internal/kafka"
	"github.com/ariefcatur/go-storefront-stock/internal/metrics"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
	"github.com/ariefcatur/go-storefront-stock/internal/reservation"
)

// Publisher is the fire-and-forget side of a Kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	DB      *pgxpool.Pool
	Catalog catalog.Lookup
	Ledger  inventory.Ledger
	Holds   reservation.Store
	Orders  *orders.Repo
	Events  Publisher

	// Shipping and VATRate fall back to DefaultShipping and DefaultVATRate
	// when nil. A configured zero is honoured.
	Shipping *decimal.Decimal
	VATRate  *decimal.Decimal
	Location *time.Location
	Now      func() time.Time

	ServiceName string
	Log         zerolog.Logger
	Metrics     *metrics.Metrics
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) rates() (decimal.Decimal, decimal.Decimal) {
	ship, vat := DefaultShipping, DefaultVATRate
	if s.Shipping != nil {
		ship = *s.Shipping
	}
	if s.VATRate != nil {
		vat = *s.VATRate
	}
	return ship, vat
}

// ProcessCheckout turns a cart into a pending order. Nothing is trusted from
// earlier steps of the shopping flow: products, prices and stock are re-read,
// and stock is checked and deducted under row locks in a single transaction.
// Every returned error is a *Error.
func (s *Service) ProcessCheckout(ctx context.Context, req Request) (*Receipt, error) {
	started := time.Now()
	rec, err := s.process(ctx, req)

	result := "ok"
	var ce *Error
	if errors.As(err, &ce) {
		result = string(ce.Kind)
		if ce.Kind == UnexpectedError {
			s.Log.Error().Err(ce.Err).Msg("checkout failed")
		}
	}
	s.Metrics.Checkout(result, started)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) process(ctx context.Context, req Request) (*Receipt, error) {
	lines, err := ValidateCart(ctx, s.Catalog, req.Items)
	if err != nil {
		return nil, err
	}
	if err := ValidatePayment(req.Payment); err != nil {
		return nil, err
	}
	shipping, vatRate := s.rates()
	totals := ComputeTotals(lines, shipping, vatRate)

	now := s.now()
	order := &orders.Order{
		ID:        uuid.NewString(),
		Status:    orders.StatusPending,
		UserID:    req.Holder.UserID,
		Customer:  req.Customer,
		Payment:   req.Payment,
		Totals:    totals,
		CreatedAt: now,
	}
	for _, l := range lines {
		order.Items = append(order.Items, orders.OrderItem{
			ProductID:   l.ProductID,
			ProductSlug: l.ProductSlug,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Total:       l.Total,
		})
	}

	if err := s.commit(ctx, order, lines, req.Holder, now); err != nil {
		return nil, err
	}

	s.publishPlaced(order)
	s.Log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int("lines", len(lines)).
		Str("grand_total", totals.GrandTotal.StringFixed(2)).
		Msg("order placed")

	return &Receipt{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Message:     msgOrderPlaced,
		Items:       lines,
		Totals:      totals,
	}, nil
}

// commit runs the stock check, order insert, stock deduction and hold cleanup
// as one transaction. Product rows are locked in ascending id order.
func (s *Service) commit(ctx context.Context, order *orders.Order, lines []LineItem, h reservation.Holder, now time.Time) error {
	want := make(map[string]int, len(lines))
	names := make(map[string]string, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := want[l.ProductID]; !ok {
			ids = append(ids, l.ProductID)
		}
		want[l.ProductID] += l.Quantity
		names[l.ProductID] = l.ProductName
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return unexpected(err)
	}
	defer tx.Rollback(ctx)

	stock, err := s.Ledger.Lock(ctx, tx, ids...)
	if err != nil {
		return unexpected(err)
	}
	held, err := s.Holds.ActiveQuantities(ctx, tx, ids, now)
	if err != nil {
		return unexpected(err)
	}

	var short []FieldError
	for _, id := range ids {
		onHand, ok := stock[id]
		if !ok {
			return &Error{
				Kind:    CartValidationFailed,
				Message: "Cart validation failed",
				Errors:  []FieldError{{Message: "Product not found: " + id}},
			}
		}
		if available := max(0, onHand-held[id]); available < want[id] {
			short = append(short, FieldError{
				Field:   id,
				Message: fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", names[id], available, want[id]),
			})
		}
	}
	if len(short) > 0 {
		return &Error{Kind: InsufficientStock, Message: "Insufficient stock", Errors: short}
	}

	number, err := s.Orders.NextOrderNumber(ctx, tx, now, s.Location)
	if err != nil {
		return unexpected(err)
	}
	order.OrderNumber = number
	if err := s.Orders.Insert(ctx, tx, order); err != nil {
		return unexpected(err)
	}

	for _, id := range ids {
		if err := s.Ledger.Deduct(ctx, tx, id, want[id]); err != nil {
			return unexpected(err)
		}
	}
	if _, err := s.Holds.DeleteForHolder(ctx, tx, h, ids); err != nil {
		return unexpected(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return unexpected(err)
	}
	return nil
}

func (s *Service) publishPlaced(o *orders.Order) {
	if s.Events == nil {
		return
	}
	items := make([]orders.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			UserID:      o.UserID,
			Items:       items,
			GrandTotal:  o.Totals.GrandTotal.StringFixed(2),
		}),
	}
	s.Events.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
