package reservation

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ariefcatur/go-storefront-stock/internal/postgres"
)

// Store is the SQL side of stock_reservations. It never locks; callers that
// make stock decisions hold the product row lock from inventory.Ledger.
type Store struct{}

// ActiveQuantity sums quantities of holds on productID whose expires_at is after now.
func (Store) ActiveQuantity(ctx context.Context, db postgres.DBTX, productID string, now time.Time) (int, error) {
	var n int
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)::int FROM stock_reservations
		WHERE product_id = $1 AND expires_at > $2`, productID, now).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "sum active reservations")
	}
	return n, nil
}

// ActiveQuantities is ActiveQuantity for many products in one round trip.
func (Store) ActiveQuantities(ctx context.Context, db postgres.DBTX, productIDs []string, now time.Time) (map[string]int, error) {
	rows, err := db.Query(ctx, `
		SELECT product_id, COALESCE(SUM(quantity), 0)::int FROM stock_reservations
		WHERE product_id = ANY($1) AND expires_at > $2
		GROUP BY product_id`, productIDs, now)
	if err != nil {
		return nil, errors.Wrap(err, "sum active reservations")
	}
	defer rows.Close()

	out := make(map[string]int, len(productIDs))
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, errors.Wrap(err, "scan reservation sum")
		}
		out[id] = n
	}
	return out, errors.Wrap(rows.Err(), "sum active reservations")
}

func (Store) Insert(ctx context.Context, db postgres.DBTX, r Reservation) error {
	_, err := db.Exec(ctx, `
		INSERT INTO stock_reservations(id, product_id, user_id, session_id, quantity, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.ProductID, nullable(r.Holder.UserID), nullable(r.Holder.SessionID), r.Quantity, r.ExpiresAt, r.CreatedAt)
	return errors.Wrap(err, "insert reservation")
}

// DeleteForHolder removes every hold (active or not) the holder has on productIDs.
func (Store) DeleteForHolder(ctx context.Context, db postgres.DBTX, h Holder, productIDs []string) (int64, error) {
	if !h.Valid() || len(productIDs) == 0 {
		return 0, nil
	}
	col, val := h.column()
	ct, err := db.Exec(ctx, `DELETE FROM stock_reservations WHERE `+col+` = $1 AND product_id = ANY($2)`, val, productIDs)
	if err != nil {
		return 0, errors.Wrap(err, "delete holder reservations")
	}
	return ct.RowsAffected(), nil
}

// DeleteExpired removes holds already past their deadline. Active rows are never touched.
func (Store) DeleteExpired(ctx context.Context, db postgres.DBTX, now time.Time) (int64, error) {
	ct, err := db.Exec(ctx, `DELETE FROM stock_reservations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, errors.Wrap(err, "delete expired reservations")
	}
	return ct.RowsAffected(), nil
}

// ListActive returns the holder's live holds on productID, oldest first.
func (Store) ListActive(ctx context.Context, db postgres.DBTX, h Holder, productID string, now time.Time) ([]Reservation, error) {
	if !h.Valid() {
		return nil, ErrHolderRequired
	}
	col, val := h.column()
	rows, err := db.Query(ctx, `
		SELECT id, product_id, COALESCE(user_id, ''), COALESCE(session_id, ''), quantity, expires_at, created_at
		FROM stock_reservations
		WHERE `+col+` = $1 AND product_id = $2 AND expires_at > $3
		ORDER BY created_at`, val, productID, now)
	if err != nil {
		return nil, errors.Wrap(err, "list reservations")
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Holder.UserID, &r.Holder.SessionID, &r.Quantity, &r.ExpiresAt, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan reservation")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "list reservations")
}
