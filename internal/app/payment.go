package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/order-pipeline/internal/clock"
	"github.com/xenking/order-pipeline/internal/domain/order"
	"github.com/xenking/order-pipeline/internal/handler"
	"github.com/xenking/order-pipeline/internal/inventory"
	storage "github.com/xenking/order-pipeline/internal/storage/redis"
	"github.com/xenking/order-pipeline/internal/worker"
	"github.com/xenking/order-pipeline/pkg/health"
)

// RunPayment creates the payment service's dependencies — the lifecycle
// coordinator, the durable completion queue, and the completion worker —
// starts the HTTP server alongside the worker, and handles graceful
// shutdown.
func RunPayment(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing payment service",
		zap.String("addr", cfg.Payment.Addr),
		zap.String("inventory_url", cfg.Payment.InventoryURL),
		zap.Duration("completion_delay", cfg.Payment.CompletionDelay),
	)

	client, err := storage.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer client.Close()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Storage and collaborators, all sharing the one injected client handle.
	orders := storage.NewOrderStore(client)
	queue := storage.NewCompletionQueue(client)
	events := storage.NewEventPublisher(client)
	lookup := inventory.NewClient(cfg.Payment.InventoryURL,
		inventory.WithTimeout(cfg.Payment.LookupTimeout),
	)

	clk := clock.NewSystem()
	coordinator := order.NewCoordinator(lookup, orders, queue, events, clk, cfg.Payment.CompletionDelay)

	completionWorker, err := worker.New(queue, coordinator, clk, worker.Config{
		PollInterval: cfg.Payment.Worker.PollInterval,
		BatchSize:    cfg.Payment.Worker.BatchSize,
		RetryDelay:   cfg.Payment.Worker.RetryDelay,
	}, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create completion worker")
	}

	mux := http.NewServeMux()
	handler.NewPaymentHandler(coordinator, orders).Register(mux)

	server := newServer(ctx, cfg, cfg.Payment.Addr, "payment-api", m, healthSvc, mux)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(gCtx, cfg, server, healthSvc)
	})
	g.Go(func() error {
		if err := completionWorker.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "completion worker")
		}
		return nil
	})
	return g.Wait()
}
