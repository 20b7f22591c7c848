package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	kafkax "github.com/ariefcatur/go-storefront-stock/internal/kafka"
	"github.com/ariefcatur/go-storefront-stock/internal/metrics"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
	"github.com/ariefcatur/go-storefront-stock/internal/postgres/pgtest"
	"github.com/ariefcatur/go-storefront-stock/internal/reservation"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (p *recordingPublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, value)
}

var shopper = orders.Customer{
	Name: "Alexei Ward", Email: "alexei@mail.com", Phone: "+1 202-555-0136",
	Address: "1137 Williams Avenue", ZIP: "10001", City: "New York", Country: "United States",
}

func newCheckout(t *testing.T) (*Service, *pgxpool.Pool, *recordingPublisher) {
	db := pgtest.New(t)
	pgtest.SeedProduct(t, db, "xx99", "XX99 Mark II", "2999", 100)
	pgtest.SeedProduct(t, db, "yx1", "YX1 Earphones", "899", 50)
	pub := &recordingPublisher{}
	return &Service{
		DB:          db,
		Catalog:     &catalog.Repo{DB: db},
		Orders:      &orders.Repo{DB: db},
		Events:      pub,
		Location:    time.UTC,
		ServiceName: "storefront-test",
		Log:         zerolog.Nop(),
		Metrics:     metrics.New(prometheus.NewRegistry()),
	}, db, pub
}

func reservations(db *pgxpool.Pool) *reservation.Service {
	return &reservation.Service{DB: db, Log: zerolog.Nop()}
}

func TestProcessCheckoutSuccess(t *testing.T) {
	svc, db, pub := newCheckout(t)
	ctx := context.Background()

	rec, err := svc.ProcessCheckout(ctx, Request{
		Items:    []Item{{ProductID: "xx99", Quantity: 2}, {ProductID: "yx1", Quantity: 1}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentCash},
		Holder:   reservation.NewHolder("", "sess-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Order placed successfully", rec.Message)
	assert.Regexp(t, `^ORD-\d{8}-\d{4}$`, rec.OrderNumber)
	assert.Equal(t, "6897.00", rec.Subtotal.StringFixed(2))
	assert.Equal(t, "1379.40", rec.VAT.StringFixed(2))
	assert.Equal(t, "8326.40", rec.GrandTotal.StringFixed(2))

	assert.Equal(t, 98, pgtest.Stock(t, db, "xx99"))
	assert.Equal(t, 49, pgtest.Stock(t, db, "yx1"))

	o, err := svc.Orders.Get(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, shopper.Email, o.Customer.Email)
	assert.Len(t, o.Items, 2)

	require.Len(t, pub.msgs, 1)
	var ev orders.Envelope
	require.NoError(t, kafkax.UnmarshalEnvelope(pub.msgs[0], &ev))
	assert.Equal(t, orders.EventOrderPlaced, ev.EventType)
	payload, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, rec.OrderNumber, payload.OrderNumber)
	assert.Len(t, payload.Items, 2)
}

func TestProcessCheckoutIsAtomic(t *testing.T) {
	svc, db, pub := newCheckout(t)
	pgtest.SeedProduct(t, db, "zx9", "ZX9 Speaker", "4500", 5)

	_, err := svc.ProcessCheckout(context.Background(), Request{
		Items:    []Item{{ProductID: "xx99", Quantity: 1}, {ProductID: "zx9", Quantity: 10}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentCash},
		Holder:   reservation.NewHolder("u1", ""),
	})
	ce := asError(t, err)
	assert.Equal(t, InsufficientStock, ce.Kind)
	assert.Equal(t, "Insufficient stock", ce.Message)
	require.Len(t, ce.Errors, 1)
	assert.Equal(t, "Insufficient stock for ZX9 Speaker. Available: 5, Requested: 10", ce.Errors[0].Message)

	assert.Equal(t, 5, pgtest.Stock(t, db, "zx9"))
	assert.Equal(t, 100, pgtest.Stock(t, db, "xx99"))
	assert.Zero(t, pgtest.Count(t, db, "orders"))
	assert.Zero(t, pgtest.Count(t, db, "order_items"))
	assert.Empty(t, pub.msgs)
}

func TestProcessCheckoutHonoursOtherShoppersHolds(t *testing.T) {
	svc, db, _ := newCheckout(t)
	ctx := context.Background()
	pgtest.SeedProduct(t, db, "ltd", "Limited", "10", 3)

	_, err := reservations(db).Reserve(ctx, "ltd", 2, reservation.NewHolder("someone-else", ""))
	require.NoError(t, err)

	_, err = svc.ProcessCheckout(ctx, Request{
		Items:    []Item{{ProductID: "ltd", Quantity: 2}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentCash},
		Holder:   reservation.NewHolder("me", ""),
	})
	ce := asError(t, err)
	assert.Equal(t, InsufficientStock, ce.Kind)
	assert.Equal(t, "Insufficient stock for Limited. Available: 1, Requested: 2", ce.Errors[0].Message)
}

func TestProcessCheckoutClearsCallerHolds(t *testing.T) {
	svc, db, _ := newCheckout(t)
	ctx := context.Background()
	h := reservation.NewHolder("user-7", "")

	_, err := reservations(db).Reserve(ctx, "xx99", 5, h)
	require.NoError(t, err)
	_, err = reservations(db).Reserve(ctx, "yx1", 1, h)
	require.NoError(t, err)

	_, err = svc.ProcessCheckout(ctx, Request{
		Items:    []Item{{ProductID: "xx99", Quantity: 2}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentCash},
		Holder:   h,
	})
	require.NoError(t, err)

	active, err := reservations(db).Active(ctx, "xx99", h)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, 98, pgtest.Stock(t, db, "xx99"))

	other, err := reservations(db).Active(ctx, "yx1", h)
	require.NoError(t, err)
	assert.Len(t, other, 1, "holds on products not bought are kept")
}

func TestProcessCheckoutEMoney(t *testing.T) {
	svc, db, _ := newCheckout(t)
	ctx := context.Background()
	req := Request{
		Items:    []Item{{ProductID: "yx1", Quantity: 1}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentEMoney, EMoneyNumber: "123456789"},
		Holder:   reservation.NewHolder("", "s"),
	}

	_, err := svc.ProcessCheckout(ctx, req)
	assert.Equal(t, PaymentValidationFailed, asError(t, err).Kind)
	assert.Zero(t, pgtest.Count(t, db, "orders"))

	req.Payment.EMoneyPIN = "1234"
	rec, err := svc.ProcessCheckout(ctx, req)
	require.NoError(t, err)

	o, err := svc.Orders.Get(ctx, rec.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentEMoney, o.Payment.Method)
	assert.Equal(t, "123456789", o.Payment.EMoneyNumber)
	assert.Equal(t, "1234", o.Payment.EMoneyPIN)
}

func TestProcessCheckoutUnknownProduct(t *testing.T) {
	svc, db, _ := newCheckout(t)
	_, err := svc.ProcessCheckout(context.Background(), Request{
		Items:    []Item{{ProductID: "does-not-exist", Quantity: 1}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentCash},
	})
	ce := asError(t, err)
	assert.Equal(t, CartValidationFailed, ce.Kind)
	assert.Equal(t, "Product not found: does-not-exist", ce.Errors[0].Message)
	assert.Zero(t, pgtest.Count(t, db, "orders"))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	svc, db, _ := newCheckout(t)
	pgtest.SeedProduct(t, db, "last", "Last Units", "100", 3)

	const buyers = 8
	var ok, short atomic.Int64
	numbers := sync.Map{}
	var g errgroup.Group
	for i := 0; i < buyers; i++ {
		g.Go(func() error {
			rec, err := svc.ProcessCheckout(context.Background(), Request{
				Items:    []Item{{ProductID: "last", Quantity: 1}},
				Customer: shopper,
				Payment:  orders.Payment{Method: orders.PaymentCash},
			})
			var ce *Error
			switch {
			case err == nil:
				ok.Add(1)
				if _, dup := numbers.LoadOrStore(rec.OrderNumber, true); dup {
					return errors.New("duplicate order number " + rec.OrderNumber)
				}
			case errors.As(err, &ce) && ce.Kind == InsufficientStock:
				short.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 3, ok.Load())
	assert.EqualValues(t, buyers-3, short.Load())
	assert.Equal(t, 0, pgtest.Stock(t, db, "last"))
	assert.Equal(t, 3, pgtest.Count(t, db, "orders"))
}

func TestProcessCheckoutZeroFees(t *testing.T) {
	svc, _, _ := newCheckout(t)
	zero := decimal.Zero
	svc.Shipping, svc.VATRate = &zero, &zero

	rec, err := svc.ProcessCheckout(context.Background(), Request{
		Items:    []Item{{ProductID: "yx1", Quantity: 2}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentCash},
		Holder:   reservation.NewHolder("", "sess-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", rec.Shipping.StringFixed(2))
	assert.Equal(t, "0.00", rec.VAT.StringFixed(2))
	assert.Equal(t, "1798.00", rec.GrandTotal.StringFixed(2))
}

func TestProcessCheckoutUsesServiceClock(t *testing.T) {
	svc, _, pub := newCheckout(t)
	at := time.Date(2030, 5, 6, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return at }

	rec, err := svc.ProcessCheckout(context.Background(), Request{
		Items:    []Item{{ProductID: "xx99", Quantity: 1}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentCash},
		Holder:   reservation.NewHolder("u1", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-20300506-0001", rec.OrderNumber)

	require.Len(t, pub.msgs, 1)
	var ev orders.Envelope
	require.NoError(t, kafkax.UnmarshalEnvelope(pub.msgs[0], &ev))
	assert.True(t, ev.OccurredAt.Equal(at), "occurredAt %s", ev.OccurredAt)
}

func TestProcessCheckoutOrderNumberTaken(t *testing.T) {
	svc, db, pub := newCheckout(t)
	ctx := context.Background()
	at := time.Date(2030, 5, 6, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return at }

	// created the day before, so today's count stays at zero and 0001 collides
	taken := &orders.Order{
		OrderNumber: "ORD-20300506-0001",
		Customer:    shopper,
		Payment:     orders.Payment{Method: orders.PaymentCash},
		CreatedAt:   at.AddDate(0, 0, -1),
	}
	require.NoError(t, pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error { return svc.Orders.Insert(ctx, tx, taken) }))

	_, err := svc.ProcessCheckout(ctx, Request{
		Items:    []Item{{ProductID: "xx99", Quantity: 1}},
		Customer: shopper,
		Payment:  orders.Payment{Method: orders.PaymentCash},
		Holder:   reservation.NewHolder("u1", ""),
	})
	ce := asError(t, err)
	assert.Equal(t, UnexpectedError, ce.Kind)
	assert.ErrorIs(t, err, orders.ErrDuplicateOrderNumber)
	assert.Equal(t, 100, pgtest.Stock(t, db, "xx99"))
	assert.Equal(t, 1, pgtest.Count(t, db, "orders"))
	assert.Empty(t, pub.msgs)
}
