package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	"github.com/ariefcatur/go-storefront-stock/internal/checkout"
	"github.com/ariefcatur/go-storefront-stock/internal/config"
	"github.com/ariefcatur/go-storefront-stock/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-stock/internal/kafka"
	"github.com/ariefcatur/go-storefront-stock/internal/logging"
	"github.com/ariefcatur/go-storefront-stock/internal/metrics"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
	"github.com/ariefcatur/go-storefront-stock/internal/postgres"
	"github.com/ariefcatur/go-storefront-stock/internal/redisx"
	"github.com/ariefcatur/go-storefront-stock/internal/reservation"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := logging.New("storefront-api", "info", false)
		l.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel, cfg.LogPretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api exited")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	shipping, err := cfg.Shipping()
	if err != nil {
		return err
	}
	vat, err := cfg.VAT()
	if err != nil {
		return err
	}
	// money goes out as JSON numbers, like the storefront client expects
	decimal.MarshalJSONWithoutQuotes = true

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	placed := kafkax.NewProducer(cfg.KafkaBrokers(), orders.TopicOrderPlaced, 1024, log)
	placed.Start(ctx)
	statusChanged := kafkax.NewProducer(cfg.KafkaBrokers(), orders.TopicOrderStatusChanged, 256, log)
	statusChanged.Start(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	products := &catalog.Repo{DB: db}
	cached := &catalog.Cache{Next: products, Redis: rdb, TTL: cfg.CatalogCacheTTL, Log: log}
	orderRepo := &orders.Repo{DB: db}

	reservations := &reservation.Service{DB: db, TTL: cfg.ReservationTTL, Log: log, Metrics: m}
	checkouts := &checkout.Service{
		DB:          db,
		Catalog:     products, // prices must be current, so checkout skips the cache
		Orders:      orderRepo,
		Events:      placed,
		Shipping:    &shipping,
		VATRate:     &vat,
		Location:    loc,
		ServiceName: cfg.ServiceName,
		Log:         log,
		Metrics:     m,
	}

	validate := httpx.NewValidator()
	router := httpx.NewRouter(log, reg)
	(&httpx.HealthHandler{Checks: map[string]httpx.Check{
		"database": db.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}}).Register(router)
	(&httpx.StockHandler{Reservations: reservations, Catalog: cached, Validate: validate, Log: log}).Register(router)
	(&httpx.CheckoutHandler{Checkout: checkouts, Validate: validate, Log: log}).Register(router)
	(&httpx.OrdersHandler{Repo: orderRepo, Redis: rdb, Producer: statusChanged, Service: cfg.ServiceName, Log: log}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-errCh:
		return err
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	placed.Close()
	statusChanged.Close()
	placed.WaitClosed()
	statusChanged.WaitClosed()
	return nil
}
