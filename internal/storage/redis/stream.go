package redis

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/order-pipeline/internal/domain/order"
)

// CompletedStream is the stream completed-order events are appended to.
const CompletedStream = "order_completed"

var _ order.EventPublisher = (*EventPublisher)(nil)

// EventPublisher implements order.EventPublisher on a Redis stream. Each
// publish appends one entry; Redis assigns the monotonically increasing
// sequence id. There is no deduplication — consumers needing exactly-once
// semantics dedupe on the order_id field.
type EventPublisher struct {
	client *goredis.Client
}

// NewEventPublisher returns an EventPublisher using the given client.
func NewEventPublisher(client *goredis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// PublishCompleted appends the completed-order event and returns the
// assigned stream sequence id.
func (p *EventPublisher) PublishCompleted(ctx context.Context, o *order.Order) (string, error) {
	seq, err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: CompletedStream,
		Values: map[string]interface{}{
			"order_id":   o.ID,
			"product_id": o.ProductID,
			"price":      o.Price.String(),
			"fee":        o.Fee.String(),
			"total":      o.Total.String(),
			"quantity":   strconv.Itoa(o.Quantity),
			"status":     string(o.Status),
		},
	}).Result()
	if err != nil {
		return "", errors.Wrap(err, "xadd order_completed")
	}
	return seq, nil
}
