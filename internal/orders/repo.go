package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/ariefcatur/go-storefront-stock/internal/postgres"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("order status transition not allowed")

	// ErrDuplicateOrderNumber means the day's sequence already issued this
	// number, e.g. after orders of that day were deleted.
	ErrDuplicateOrderNumber = errors.New("order number already taken")
)

type Repo struct{ DB *pgxpool.Pool }

// NextOrderNumber returns ORD-YYYYMMDD-NNNN for the local day of now, where
// NNNN is one more than the number of orders created since local midnight.
// It takes a transaction-scoped advisory lock per day, so tx must be a live
// transaction and the order must be inserted before it commits.
func (r *Repo) NextOrderNumber(ctx context.Context, tx postgres.DBTX, now time.Time, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	day := local.Format("20060102")
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "order_number:"+day); err != nil {
		return "", pkgerrors.Wrap(err, "lock order sequence")
	}
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2`,
		midnight, midnight.AddDate(0, 0, 1)).Scan(&n)
	if err != nil {
		return "", pkgerrors.Wrap(err, "count today's orders")
	}
	return FormatOrderNumber(local, n+1), nil
}

func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("ORD-%s-%04d", day.Format("20060102"), seq)
}

// Insert writes the order and its item snapshots. IDs are assigned when empty.
func (r *Repo) Insert(ctx context.Context, tx postgres.DBTX, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	o.UpdatedAt = o.CreatedAt

	_, err := tx.Exec(ctx, `
		INSERT INTO orders(
			id, order_number, status, user_id,
			customer_name, customer_email, customer_phone,
			shipping_address, shipping_zip, shipping_city, shipping_country,
			payment_method, emoney_number, emoney_pin,
			subtotal, shipping, vat, grand_total, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$19)`,
		o.ID, o.OrderNumber, o.Status, nullable(o.UserID),
		o.Customer.Name, o.Customer.Email, nullable(o.Customer.Phone),
		o.Customer.Address, o.Customer.ZIP, o.Customer.City, o.Customer.Country,
		o.Payment.Method, nullable(o.Payment.EMoneyNumber), nullable(o.Payment.EMoneyPIN),
		postgres.Numeric(o.Totals.Subtotal), postgres.Numeric(o.Totals.Shipping),
		postgres.Numeric(o.Totals.VAT), postgres.Numeric(o.Totals.GrandTotal),
		o.CreatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return pkgerrors.Wrapf(ErrDuplicateOrderNumber, "insert order %s", o.OrderNumber)
	}
	if err != nil {
		return pkgerrors.Wrap(err, "insert order")
	}

	b := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		it.CreatedAt = o.CreatedAt
		b.Queue(`
			INSERT INTO order_items(id, order_id, product_id, product_slug, product_name, quantity, unit_price, total, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			it.ID, it.OrderID, it.ProductID, it.ProductSlug, it.ProductName, it.Quantity,
			postgres.Numeric(it.UnitPrice), postgres.Numeric(it.Total), it.CreatedAt)
	}
	br := tx.SendBatch(ctx, b)
	for range o.Items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return pkgerrors.Wrap(err, "insert order item")
		}
	}
	return pkgerrors.Wrap(br.Close(), "insert order items")
}

const orderColumns = `id, order_number, status, user_id,
	customer_name, customer_email, customer_phone,
	shipping_address, shipping_zip, shipping_city, shipping_country,
	payment_method, emoney_number, emoney_pin,
	subtotal, shipping, vat, grand_total, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                              Order
		userID, phone, emNum, emPIN    *string
		subtotal, shipping, vat, grand pgtype.Numeric
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Status, &userID,
		&o.Customer.Name, &o.Customer.Email, &phone,
		&o.Customer.Address, &o.Customer.ZIP, &o.Customer.City, &o.Customer.Country,
		&o.Payment.Method, &emNum, &emPIN,
		&subtotal, &shipping, &vat, &grand, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.UserID, o.Customer.Phone = deref(userID), deref(phone)
	o.Payment.EMoneyNumber, o.Payment.EMoneyPIN = deref(emNum), deref(emPIN)
	o.Totals = Totals{
		Subtotal:   postgres.Decimal(subtotal),
		Shipping:   postgres.Decimal(shipping),
		VAT:        postgres.Decimal(vat),
		GrandTotal: postgres.Decimal(grand),
	}
	return &o, nil
}

// Get loads an order with its items ordered by creation.
func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "select order %s", id)
	}

	items, err := r.items(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *Repo) items(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_slug, product_name, quantity, unit_price, total, created_at
		FROM order_items WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select order items")
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var (
			it           OrderItem
			price, total pgtype.Numeric
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductSlug, &it.ProductName,
			&it.Quantity, &price, &total, &it.CreatedAt); err != nil {
			return nil, pkgerrors.Wrap(err, "scan order item")
		}
		it.UnitPrice, it.Total = postgres.Decimal(price), postgres.Decimal(total)
		out = append(out, it)
	}
	return out, pkgerrors.Wrap(rows.Err(), "select order items")
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return "", ErrNotFound
	}
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", pkgerrors.Wrap(err, "select order status")
	}
	return Status(s), nil
}

// UpdateStatus moves an order to status to if the transition table allows it
// and returns the previous status.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, to Status) (Status, error) {
	if !to.Valid() {
		return "", ErrInvalidStatus
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return "", ErrNotFound
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", pkgerrors.Wrap(err, "begin status update")
	}
	defer tx.Rollback(ctx)

	var from Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", pkgerrors.Wrap(err, "lock order")
	}
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, to); err != nil {
		return "", pkgerrors.Wrap(err, "update order status")
	}
	if err := tx.Commit(ctx); err != nil {
		return "", pkgerrors.Wrap(err, "commit status update")
	}
	return from, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
