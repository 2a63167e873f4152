// Package redis implements the order store, product repository, completion
// queue, and completed-order event stream on top of a single Redis instance,
// mirroring the key layout the services share:
//
//	product:<id>            hash  name, price, quantity
//	products                set   index of product ids
//	order:<id>              hash  product_id, price, fee, total, quantity, status, version, created_at
//	orders:completion_queue zset  order id scored by due unix milli
//	order_completed         stream
package redis

import (
	"context"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient opens a Redis client from a URL of the form
// redis://[:password@]host:port[/db] and verifies connectivity. The caller
// owns the handle and closes it at shutdown.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}
