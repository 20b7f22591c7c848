package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Filters narrows an admin order listing. Zero values mean "no filter".
type Filters struct {
	Status   Status
	DateFrom time.Time
	DateTo   time.Time
	// Search matches order number, customer name or customer email.
	Search string
	Limit  int
	Offset int
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

func (f Filters) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.DateFrom.IsZero() {
		add("created_at >= $%d", f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		add("created_at <= $%d", f.DateTo)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(order_number LIKE $%d OR customer_name LIKE $%d OR customer_email LIKE $%d)", n, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of orders, newest first, without their items.
func (r *Repo) List(ctx context.Context, f Filters) ([]Order, Pagination, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, Pagination{}, ErrInvalidStatus
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	f.Limit = min(f.Limit, MaxListLimit)
	f.Offset = max(f.Offset, 0)

	where, args := f.where()
	var (
		out   []Order
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n := len(args)
		rows, err := r.DB.Query(gctx,
			`SELECT `+orderColumns+` FROM orders`+where+
				fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, n+1, n+2),
			append(append([]any{}, args...), f.Limit, f.Offset)...)
		if err != nil {
			return pkgerrors.Wrap(err, "list orders")
		}
		defer rows.Close()
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return pkgerrors.Wrap(err, "scan order")
			}
			out = append(out, *o)
		}
		return pkgerrors.Wrap(rows.Err(), "list orders")
	})
	g.Go(func() error {
		err := r.DB.QueryRow(gctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total)
		return pkgerrors.Wrap(err, "count orders")
	})
	if err := g.Wait(); err != nil {
		return nil, Pagination{}, err
	}

	return out, Pagination{
		Total:   total,
		Limit:   f.Limit,
		Offset:  f.Offset,
		HasMore: f.Offset+f.Limit < total,
	}, nil
}
