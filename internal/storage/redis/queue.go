package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/order-pipeline/internal/domain/order"
)

const completionQueueKey = "orders:completion_queue"

// claimDueScript atomically pops up to ARGV[2] members with a score at or
// below ARGV[1]. Popped members are removed, so each scheduled completion is
// claimed by exactly one worker; a worker that dies mid-completion loses the
// claim, which the worker compensates by re-enqueueing on failure.
var claimDueScript = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, member in ipairs(due) do
    redis.call('ZREM', KEYS[1], member)
end
return due
`)

var _ order.CompletionQueue = (*CompletionQueue)(nil)

// CompletionQueue is a durable delay queue of pending order completions,
// backed by a sorted set scored by due time. Unlike an in-process timer, a
// scheduled completion survives process restarts.
type CompletionQueue struct {
	client *goredis.Client
}

// NewCompletionQueue returns a CompletionQueue using the given client.
func NewCompletionQueue(client *goredis.Client) *CompletionQueue {
	return &CompletionQueue{client: client}
}

// Enqueue schedules the completion of orderID no earlier than due.
// Re-enqueueing an already scheduled id moves its due time.
func (q *CompletionQueue) Enqueue(ctx context.Context, orderID string, due time.Time) error {
	err := q.client.ZAdd(ctx, completionQueueKey, goredis.Z{
		Score:  float64(due.UnixMilli()),
		Member: orderID,
	}).Err()
	if err != nil {
		return errors.Wrap(err, "zadd completion")
	}
	return nil
}

// ClaimDue removes and returns up to limit order ids whose due time is at or
// before now.
func (q *CompletionQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := claimDueScript.Run(ctx, q.client,
		[]string{completionQueueKey},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.Itoa(limit),
	).StringSlice()
	if err != nil {
		return nil, errors.Wrap(err, "claim due completions")
	}
	return ids, nil
}
