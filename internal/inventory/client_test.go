package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/order-pipeline/internal/domain/product"
)

func TestLookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products/p1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p1","name":"Widget","price":10.5,"quantity":7}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.Lookup(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Widget", p.Name)
	assert.True(t, decimal.RequireFromString("10.5").Equal(p.Price))
	assert.Equal(t, 7, p.Quantity)
}

func TestLookup_FillsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Widget","price":3,"quantity":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.Lookup(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, "p9", p.ID)
}

func TestLookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Lookup(context.Background(), "missing")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestLookup_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Lookup(context.Background(), "p1")

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
}

func TestLookup_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // refuse all connections

	c := NewClient(srv.URL)
	_, err := c.Lookup(context.Background(), "p1")

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
}

func TestLookup_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Lookup(context.Background(), "p1")

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
}

func TestLookup_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "wrong price type", body: `{"id":"p1","price":"ten"}`},
		{name: "missing price", body: `{"id":"p1","name":"Widget","quantity":1}`},
		{name: "negative price", body: `{"id":"p1","price":-4,"quantity":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL)
			_, err := c.Lookup(context.Background(), "p1")

			var dErr *DecodeError
			require.ErrorAs(t, err, &dErr, "malformed response must never become a zero-price product")
		})
	}
}
