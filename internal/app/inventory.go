package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/order-pipeline/internal/handler"
	storage "github.com/xenking/order-pipeline/internal/storage/redis"
	"github.com/xenking/order-pipeline/pkg/health"
)

// RunInventory creates the inventory service's dependencies, starts its HTTP
// server, and handles graceful shutdown. It is the single wiring point for
// the inventory binary.
func RunInventory(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing inventory service", zap.String("addr", cfg.Inventory.Addr))

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

	products := storage.NewProductRepository(client)

	mux := http.NewServeMux()
	handler.NewInventoryHandler(products).Register(mux)

	server := newServer(ctx, cfg, cfg.Inventory.Addr, "inventory-api", m, healthSvc, mux)
	return serve(ctx, cfg, server, healthSvc)
}
