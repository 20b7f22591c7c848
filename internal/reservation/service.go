package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront-stock/internal/inventory"
	"github.com/ariefcatur/go-storefront-stock/internal/metrics"
)

type Service struct {
	DB      *pgxpool.Pool
	Store   Store
	Ledger  inventory.Ledger
	TTL     time.Duration
	Now     func() time.Time
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

// AvailableStock is total stock minus live holds, never below zero.
// Unknown products have no stock available.
func (s *Service) AvailableStock(ctx context.Context, productID string) (int, error) {
	stock, err := s.Ledger.Stock(ctx, s.DB, productID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read stock")
	}
	reserved, err := s.Store.ActiveQuantity(ctx, s.DB, productID, s.now())
	if err != nil {
		return 0, err
	}
	return max(0, stock-reserved), nil
}

// Reserve places a time-bounded hold of quantity units of productID for h.
// The product row is locked for the duration of the check-and-insert, so two
// concurrent Reserve calls on the same product cannot both see the same
// available stock.
func (s *Service) Reserve(ctx context.Context, productID string, quantity int, h Holder) (string, error) {
	if quantity <= 0 {
		s.Metrics.Reservation("invalid")
		return "", ErrInvalidQuantity
	}
	if !h.Valid() {
		s.Metrics.Reservation("invalid")
		return "", ErrHolderRequired
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return "", errors.Wrap(err, "begin reserve")
	}
	defer tx.Rollback(ctx)

	stock, err := s.Ledger.LockOne(ctx, tx, productID)
	if errors.Is(err, inventory.ErrProductNotFound) {
		s.Metrics.Reservation("not_found")
		return "", ErrProductNotFound
	}
	if err != nil {
		return "", err
	}

	now := s.now()
	reserved, err := s.Store.ActiveQuantity(ctx, tx, productID, now)
	if err != nil {
		return "", err
	}
	if available := stock - reserved; available < quantity {
		s.Metrics.Reservation("insufficient_stock")
		s.Log.Debug().Str("product_id", productID).Int("available", available).Int("requested", quantity).Msg("reservation rejected")
		return "", ErrInsufficientStock
	}

	r := Reservation{
		ID:        uuid.NewString(),
		ProductID: productID,
		Holder:    h,
		Quantity:  quantity,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	if err := s.Store.Insert(ctx, tx, r); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", errors.Wrap(err, "commit reserve")
	}
	s.Metrics.Reservation("ok")
	s.Log.Info().Str("reservation_id", r.ID).Str("product_id", productID).Int("quantity", quantity).Time("expires_at", r.ExpiresAt).Msg("stock reserved")
	return r.ID, nil
}

// CleanupExpired deletes holds that already stopped counting. Safe to run
// alongside live traffic.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.Store.DeleteExpired(ctx, s.DB, s.now())
	if err != nil {
		return 0, err
	}
	s.Metrics.Swept(n)
	return n, nil
}

// Active lists a holder's live holds on a product.
func (s *Service) Active(ctx context.Context, productID string, h Holder) ([]Reservation, error) {
	return s.Store.ListActive(ctx, s.DB, h, productID, s.now())
}
