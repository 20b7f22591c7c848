// Package janitor periodically deletes reservation rows that already expired.
// Expired holds stop counting the moment they expire, so the sweep only keeps
// the table small; running it late, twice, or not at all never changes
// available stock.
package janitor

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront-stock/internal/redisx"
)

type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	cleaner  Cleaner
	redis    *redis.Client
	owner    string
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper builds a sweeper. With a non-nil Redis client, replicas share a
// lease so a single one deletes per interval.
func NewSweeper(cleaner Cleaner, rdb *redis.Client, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	host, _ := os.Hostname()
	return &Sweeper{
		cleaner:  cleaner,
		redis:    rdb,
		owner:    host + "/" + uuid.NewString(),
		interval: interval,
		log:      log.With().Str("component", "reservation-sweeper").Logger(),
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("sweep failed")
		}
		return
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("expired reservations swept")
	}
}

// Sweep runs one cleanup pass. It returns 0 without touching the database
// when another replica holds the lease. If Redis is unreachable the pass runs
// anyway; deleting expired rows twice is harmless.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if s.redis != nil {
		ok, err := redisx.TryLock(ctx, s.redis, redisx.KeySweepLock, s.owner, s.interval)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("sweep lease unavailable, sweeping without it")
		case !ok:
			return 0, nil
		default:
			defer func() {
				if err := redisx.Unlock(context.WithoutCancel(ctx), s.redis, redisx.KeySweepLock, s.owner); err != nil {
					s.log.Warn().Err(err).Msg("release sweep lease")
				}
			}()
		}
	}
	return s.cleaner.CleanupExpired(ctx)
}
