// Package inventory provides the HTTP client the payment service uses to
// resolve product snapshots from the inventory service.
package inventory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/order-pipeline/internal/domain/product"
)

// DefaultTimeout bounds a single product lookup.
const DefaultTimeout = 3 * time.Second

// TransportError indicates the inventory service could not be reached or did
// not complete the request.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("inventory transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError indicates the inventory service answered with a body that is
// not a valid product representation.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("inventory decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Client looks up products over the inventory service's read endpoint.
// It carries no cache and no retry; retry policy belongs to the boundary.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a lookup client against the given inventory base URL,
// e.g. "http://localhost:8000". Requests are traced via otelhttp.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the product snapshot for id. It returns product.ErrNotFound
// when the inventory service reports 404, *TransportError when the call does
// not complete or the service answers with an unexpected status, and
// *DecodeError for malformed bodies. A zero-price product is never
// fabricated from a failure.
func (c *Client) Lookup(ctx context.Context, id string) (*product.Product, error) {
	u := c.baseURL + "/products/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, product.ErrNotFound
	default:
		return nil, &TransportError{Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	p, err := decodeProduct(body)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if p.ID == "" {
		p.ID = id
	}
	return p, nil
}

// decodeProduct parses the inventory wire representation
// {"id","name","price","quantity"}.
func decodeProduct(body []byte) (*product.Product, error) {
	var (
		p        product.Product
		sawPrice bool
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.ID = v
		case "name":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.Name = v
		case "price":
			num, err := d.Num()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(num.String())
			if err != nil {
				return err
			}
			p.Price = price
			sawPrice = true
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			p.Quantity = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if !sawPrice {
		return nil, fmt.Errorf("missing price field")
	}
	if p.Price.IsNegative() {
		return nil, fmt.Errorf("negative price %s", p.Price)
	}
	return &p, nil
}
