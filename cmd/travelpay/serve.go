package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"francoggm/travelpay/internal/app/checkout"
	"francoggm/travelpay/internal/app/checkoutlock"
	"francoggm/travelpay/internal/app/credential"
	"francoggm/travelpay/internal/app/events"
	"francoggm/travelpay/internal/app/healthcheck"
	"francoggm/travelpay/internal/app/payment"
	"francoggm/travelpay/internal/app/pipeline"
	"francoggm/travelpay/internal/app/providers"
	"francoggm/travelpay/internal/app/providers/card"
	"francoggm/travelpay/internal/app/providers/hostedorder"
	"francoggm/travelpay/internal/app/server"
	"francoggm/travelpay/internal/app/server/handlers"
	"francoggm/travelpay/internal/app/session"
	"francoggm/travelpay/internal/app/workers"
	"francoggm/travelpay/internal/app/workers/processors"
	"francoggm/travelpay/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
)

func serveCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, config.NewConfig(), logger)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Stores
	var (
		credentials credential.Store
		lock        checkoutlock.Lock
		probes      = map[string]healthcheck.Probe{}
	)

	if cfg.Cache.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%s", cfg.Cache.Host, cfg.Cache.Port),
			Password:     cfg.Cache.Password,
			DB:           0,
			MinIdleConns: 2,
			PoolTimeout:  5 * time.Second,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}

		credentials = credential.NewRedisStore(rdb)
		lock = checkoutlock.NewRedisLock(rdb, cfg.Checkout.LockTTL)
		probes["cache"] = healthcheck.RedisProbe(rdb)
		logger.Info("using redis stores", slog.String("host", cfg.Cache.Host))
	} else {
		credentials = credential.NewMemoryStore()
		lock = checkoutlock.NewMemoryLock(cfg.Checkout.LockTTL)
		logger.Info("using in-memory stores")
	}

	// Outcome publisher
	var publisher events.Publisher = events.NewLogPublisher(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		publisher = events.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	}
	defer publisher.Close()

	// Services
	httpClient := &fasthttp.Client{
		Name:                "travelpay",
		MaxConnsPerHost:     64,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        10 * time.Second,
		MaxIdleConnDuration: time.Minute,
	}

	sessions := session.NewManager(credentials, session.WithLogger(logger))
	backend := pipeline.NewClient(cfg.Backend.URL, httpClient, sessions, logger)
	paymentService := payment.NewPaymentService(backend)

	cardAdapter := card.NewAdapter(cfg.Providers.CardURL, cfg.Providers.CardKey, httpClient, logger)
	hostedAdapter := hostedorder.NewAdapter(cfg.Providers.HostedURL, cfg.Providers.HostedToken, cfg.Providers.PublicURL, httpClient, logger)

	probes["backend"] = healthcheck.HTTPProbe(httpClient, cfg.Backend.URL)
	health := healthcheck.NewHealthCheckService(probes, logger)
	health.Start(ctx)

	// Worker queue
	outcomeEventsCh := make(chan any, cfg.Workers.OutcomeBufferSize)

	// Worker processors
	outcomeProcessor := processors.NewOutcomeProcessor(publisher)
	outcomePool := workers.NewWorkerPool(cfg.Workers.OutcomeCount, outcomeEventsCh, outcomeProcessor, logger)

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	outcomePool.StartWorkers(workersCtx)

	orchestrator := checkout.NewOrchestrator(
		paymentService,
		[]providers.Adapter{cardAdapter, hostedAdapter},
		lock,
		outcomeEventsCh,
		checkout.Config{
			Currency:       cfg.Checkout.Currency,
			ConfirmTimeout: cfg.Checkout.ConfirmTimeout,
			CollectTimeout: cfg.Checkout.LockTTL,
		},
		logger,
	)

	h := handlers.NewHandlers(sessions, orchestrator, cardAdapter, hostedAdapter, health, logger)
	srv := server.NewServer(cfg, h, logger)

	err := srv.Run(ctx)

	// Flows finish first so their outcomes reach the queue before the
	// workers stop.
	orchestrator.Close()
	drain(outcomeEventsCh, outcomeProcessor, logger)
	stopWorkers()
	outcomePool.Wait()

	return err
}

// drain publishes whatever is still queued at shutdown.
func drain(eventsCh chan any, processor processors.Processor, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case event := <-eventsCh:
			if err := processor.ProcessEvent(ctx, event); err != nil {
				logger.Error("failed to publish outcome at shutdown", slog.Any("error", err))
			}
		default:
			return
		}
	}
}
