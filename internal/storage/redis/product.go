package redis

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-pipeline/internal/domain/product"
)

const (
	productKeyPrefix = "product:"
	productIndexKey  = "products"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by Redis hashes
// with a set index of known ids.
type ProductRepository struct {
	client *goredis.Client
}

// NewProductRepository returns a ProductRepository using the given client.
func NewProductRepository(client *goredis.Client) *ProductRepository {
	return &ProductRepository{client: client}
}

func productKey(id string) string {
	return productKeyPrefix + id
}

// Create persists a product. A missing id is assigned. The hash write and
// the index update happen in one transaction.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, productKey(p.ID), productToFields(p))
	pipe.SAdd(ctx, productIndexKey, p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "create product")
	}
	return nil
}

// GetByID loads one product; unknown ids yield product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	fields, err := r.client.HGetAll(ctx, productKey(id)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "hgetall product")
	}
	if len(fields) == 0 {
		return nil, product.ErrNotFound
	}
	return productFromFields(id, fields)
}

// List returns all catalog products. Reads are pipelined; an id whose hash
// vanished between the index read and the hash read is skipped.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	ids, err := r.client.SMembers(ctx, productIndexKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list product ids")
	}
	if len(ids) == 0 {
		return []product.Product{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, productKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "fetch products")
	}

	products := make([]product.Product, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		p, err := productFromFields(ids[i], fields)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

// Delete removes a product and its index entry; unknown ids yield
// product.ErrNotFound.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	delCmd := pipe.Del(ctx, productKey(id))
	pipe.SRem(ctx, productIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "delete product")
	}
	if delCmd.Val() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func productToFields(p *product.Product) map[string]interface{} {
	return map[string]interface{}{
		"name":     p.Name,
		"price":    p.Price.String(),
		"quantity": strconv.Itoa(p.Quantity),
	}
}

func productFromFields(id string, fields map[string]string) (*product.Product, error) {
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt product %q: price", id)
	}
	quantity, err := strconv.Atoi(fields["quantity"])
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt product %q: quantity", id)
	}
	return &product.Product{
		ID:       id,
		Name:     fields["name"],
		Price:    price,
		Quantity: quantity,
	}, nil
}
