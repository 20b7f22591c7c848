package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	"github.com/ariefcatur/go-storefront-stock/internal/config"
	"github.com/ariefcatur/go-storefront-stock/internal/janitor"
	kafkax "github.com/ariefcatur/go-storefront-stock/internal/kafka"
	"github.com/ariefcatur/go-storefront-stock/internal/logging"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
	"github.com/ariefcatur/go-storefront-stock/internal/postgres"
	"github.com/ariefcatur/go-storefront-stock/internal/redisx"
	"github.com/ariefcatur/go-storefront-stock/internal/reservation"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := logging.New("storefront-worker", "info", false)
		l.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.ServiceName+"-worker", cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
	log.Info().Msg("worker stopped")
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	reservations := &reservation.Service{DB: db, Log: log}
	sweeper := janitor.NewSweeper(reservations, rdb, cfg.SweepInterval, log)

	cache := &catalog.Cache{Next: &catalog.Repo{DB: db}, Redis: rdb, TTL: cfg.CatalogCacheTTL, Log: log}
	placed := &orderPlacedHandler{Cache: cache, Redis: rdb, Group: cfg.WorkerGroup, Log: log}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers(), cfg.WorkerGroup, orders.TopicOrderPlaced, cfg.WorkerConcurrency, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("topic", orders.TopicOrderPlaced).Int("workers", cfg.WorkerConcurrency).Msg("order consumer started")
		return cons.Start(ctx, placed.Handle)
	})
	return g.Wait()
}
