package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-pipeline/internal/domain/order"
)

const orderKeyPrefix = "order:"

// updateOrderScript performs a compare-version-and-set on an order hash.
// KEYS[1] is the order key, ARGV[1] the expected version, the remaining
// ARGV pairs are fields to write. Returns 1 on success, 0 on version
// mismatch, -1 when the order does not exist.
var updateOrderScript = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current then
    return -1
end
if current ~= ARGV[1] then
    return 0
end
for i = 2, #ARGV, 2 do
    redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('HINCRBY', KEYS[1], 'version', 1)
return 1
`)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by Redis hashes.
type OrderStore struct {
	client *goredis.Client
}

// NewOrderStore returns an OrderStore using the given client handle.
func NewOrderStore(client *goredis.Client) *OrderStore {
	return &OrderStore{client: client}
}

func orderKey(id string) string {
	return orderKeyPrefix + id
}

// Create persists a new order at version 1. The write is acknowledged by
// Redis before Create returns.
func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	o.Version = 1
	if err := s.client.HSet(ctx, orderKey(o.ID), orderToFields(o)).Err(); err != nil {
		return errors.Wrap(err, "hset order")
	}
	return nil
}

// Get loads an order by id. An unknown id yields order.ErrNotFound; a
// stored order is always returned fully populated or not at all.
func (s *OrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	fields, err := s.client.HGetAll(ctx, orderKey(id)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "hgetall order")
	}
	if len(fields) == 0 {
		return nil, order.ErrNotFound
	}

	o, err := orderFromFields(id, fields)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt order %q", id)
	}
	return o, nil
}

// Update conditionally writes o, guarded by o.Version. On success the stored
// version is bumped and o.Version is advanced to match. A concurrent writer
// having touched the record yields order.ErrVersionConflict.
func (s *OrderStore) Update(ctx context.Context, o *order.Order) error {
	args := []interface{}{strconv.FormatInt(o.Version, 10)}
	for field, value := range orderToFields(o) {
		if field == "version" {
			continue
		}
		args = append(args, field, value)
	}

	res, err := updateOrderScript.Run(ctx, s.client, []string{orderKey(o.ID)}, args...).Int()
	if err != nil {
		return errors.Wrap(err, "run order update script")
	}
	switch res {
	case 1:
		o.Version++
		return nil
	case 0:
		return order.ErrVersionConflict
	default:
		return order.ErrNotFound
	}
}

// Delete removes an order record. Deleting an unknown id is not an error;
// it is used to compensate a creation whose scheduling step failed.
func (s *OrderStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, orderKey(id)).Err(); err != nil {
		return errors.Wrap(err, "del order")
	}
	return nil
}

// orderToFields maps an order to its hash representation. Decimals are
// stored as exact strings, never as floats.
func orderToFields(o *order.Order) map[string]interface{} {
	return map[string]interface{}{
		"product_id": o.ProductID,
		"price":      o.Price.String(),
		"fee":        o.Fee.String(),
		"total":      o.Total.String(),
		"quantity":   strconv.Itoa(o.Quantity),
		"status":     string(o.Status),
		"version":    strconv.FormatInt(o.Version, 10),
		"created_at": o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// orderFromFields rebuilds an order from its hash representation.
func orderFromFields(id string, fields map[string]string) (*order.Order, error) {
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, errors.Wrap(err, "price")
	}
	fee, err := decimal.NewFromString(fields["fee"])
	if err != nil {
		return nil, errors.Wrap(err, "fee")
	}
	total, err := decimal.NewFromString(fields["total"])
	if err != nil {
		return nil, errors.Wrap(err, "total")
	}
	quantity, err := strconv.Atoi(fields["quantity"])
	if err != nil {
		return nil, errors.Wrap(err, "quantity")
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "version")
	}
	status := order.Status(fields["status"])
	if !status.Valid() {
		return nil, errors.Errorf("unknown status %q", fields["status"])
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, errors.Wrap(err, "created_at")
	}

	return &order.Order{
		ID:        id,
		ProductID: fields["product_id"],
		Price:     price,
		Fee:       fee,
		Total:     total,
		Quantity:  quantity,
		Status:    status,
		Version:   version,
		CreatedAt: createdAt,
	}, nil
}
