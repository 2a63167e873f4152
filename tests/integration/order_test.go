//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"testing"
	"time"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// The compose file runs the payment service with a 1s completion delay so the
// pending-to-completed transition is observable without slowing the suite.
const completionWait = 15 * time.Second

func TestCreateOrder(t *testing.T) {
	resp := doPost(t, paymentURL, "/orders", createOrderRequest{ProductID: "p1", Quantity: 3})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	if !uuidPattern.MatchString(order.ID) {
		t.Errorf("id: got %q, want a generated UUID", order.ID)
	}
	if order.ProductID != "p1" {
		t.Errorf("product_id: got %q, want %q", order.ProductID, "p1")
	}
	// p1 costs 10.00, so fee = 2.00 and total = 12.00.
	if order.Price != 10 {
		t.Errorf("price: got %v, want 10", order.Price)
	}
	if order.Fee != 2 {
		t.Errorf("fee: got %v, want 2", order.Fee)
	}
	if order.Total != 12 {
		t.Errorf("total: got %v, want 12", order.Total)
	}
	if order.Quantity != 3 {
		t.Errorf("quantity: got %d, want 3", order.Quantity)
	}
	if order.Status != "pending" {
		t.Errorf("status: got %q, want %q", order.Status, "pending")
	}
}

func TestCreateOrder_FullPrecisionFee(t *testing.T) {
	// p2 costs 10.99; the fee carries all digits instead of rounding to cents.
	resp := doPost(t, paymentURL, "/orders", createOrderRequest{ProductID: "p2", Quantity: 1})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	if order.Fee != 2.198 {
		t.Errorf("fee: got %v, want 2.198", order.Fee)
	}
	if order.Total != 13.188 {
		t.Errorf("total: got %v, want 13.188", order.Total)
	}
}

func TestCreateOrder_CompletesAfterDelay(t *testing.T) {
	resp := doPost(t, paymentURL, "/orders", createOrderRequest{ProductID: "p1", Quantity: 1})
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	order := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	completed, err := waitForStatus(order.ID, "completed", completionWait)
	if err != nil {
		t.Fatal(err)
	}

	// Completion touches only the status; the money fields stay as created.
	if completed.Price != order.Price || completed.Fee != order.Fee || completed.Total != order.Total {
		t.Errorf("money fields changed: got %+v, want %+v", completed, order)
	}
}

func TestOrderCompleted_EventPublished(t *testing.T) {
	resp := doPost(t, paymentURL, "/orders", createOrderRequest{ProductID: "p2", Quantity: 2})
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	order := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if _, err := waitForStatus(order.ID, "completed", completionWait); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	entries, err := redisClient.XRange(ctx, "order_completed", "-", "+").Result()
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}

	var matched int
	for _, entry := range entries {
		if entry.Values["order_id"] == order.ID {
			matched++
			if got := entry.Values["status"]; got != "completed" {
				t.Errorf("event status: got %v, want completed", got)
			}
			if got := entry.Values["product_id"]; got != "p2" {
				t.Errorf("event product_id: got %v, want p2", got)
			}
			if got := entry.Values["total"]; got != "13.188" {
				t.Errorf("event total: got %v, want 13.188", got)
			}
		}
	}

	if matched != 1 {
		t.Errorf("events for order %s: got %d, want exactly 1", order.ID, matched)
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	resp := doPost(t, paymentURL, "/orders", createOrderRequest{ProductID: "no-such-product", Quantity: 1})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 422 {
		t.Errorf("error code: got %d, want 422", errResp.Code)
	}
}

func TestCreateOrder_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  createOrderRequest
	}{
		{"missing product_id", createOrderRequest{Quantity: 1}},
		{"zero quantity", createOrderRequest{ProductID: "p1"}},
		{"negative quantity", createOrderRequest{ProductID: "p1", Quantity: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doPost(t, paymentURL, "/orders", tt.req)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, paymentURL, "/orders/1e2b4a00-0000-0000-0000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// waitForStatus polls GET /orders/{id} until the order reaches the wanted
// status or the timeout expires.
func waitForStatus(orderID, want string, timeout time.Duration) (orderResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var last orderResponse
	for {
		select {
		case <-ctx.Done():
			return last, fmt.Errorf("order %s did not reach %q (last status %q): %w", orderID, want, last.Status, ctx.Err())
		case <-ticker.C:
			resp, err := httpClient.Get(paymentURL + "/orders/" + orderID)
			if err != nil {
				continue
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				continue
			}
			if err := json.NewDecoder(resp.Body).Decode(&last); err != nil {
				resp.Body.Close()
				continue
			}
			resp.Body.Close()

			if last.Status == want {
				return last, nil
			}
		}
	}
}
