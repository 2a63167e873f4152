// Command seed-products loads a products JSON file into Redis so the
// inventory service has a catalog to serve.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/shopspring/decimal"

	"github.com/xenking/order-pipeline/internal/domain/product"
	storage "github.com/xenking/order-pipeline/internal/storage/redis"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func main() {
	var (
		redisURL     string
		productsFile string
	)

	flag.StringVar(&redisURL, "redis-url", "", "Redis connection URL (or REDIS_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}
	if redisURL == "" {
		slog.Error("redis URL is required: set --redis-url or REDIS_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, redisURL, productsFile); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, redisURL, productsFile string) error {
	data, err := os.ReadFile(productsFile)
	if err != nil {
		return err
	}

	var items []productJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	client, err := storage.NewClient(ctx, redisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	repo := storage.NewProductRepository(client)
	for _, item := range items {
		p := &product.Product{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
		if err := repo.Create(ctx, p); err != nil {
			return err
		}
		slog.Info("seeded product", "id", p.ID, "name", p.Name, "price", p.Price.String())
	}
	slog.Info("seed complete", "count", len(items))
	return nil
}
