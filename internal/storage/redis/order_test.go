package redis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/order-pipeline/internal/domain/order"
)

func TestOrderFieldsRoundTrip(t *testing.T) {
	o := &order.Order{
		ID:        "o1",
		ProductID: "p1",
		Price:     decimal.RequireFromString("10.99"),
		Fee:       decimal.RequireFromString("2.198"),
		Total:     decimal.RequireFromString("13.188"),
		Quantity:  3,
		Status:    order.StatusPending,
		Version:   1,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC),
	}

	fields := orderToFields(o)
	assert.Equal(t, "10.99", fields["price"], "decimals stored exactly, never as floats")
	assert.Equal(t, "2.198", fields["fee"])

	str := make(map[string]string, len(fields))
	for k, v := range fields {
		str[k] = v.(string)
	}

	got, err := orderFromFields("o1", str)
	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestOrderFromFieldsRejectsCorruptRecords(t *testing.T) {
	valid := map[string]string{
		"product_id": "p1",
		"price":      "10",
		"fee":        "2",
		"total":      "12",
		"quantity":   "3",
		"status":     "pending",
		"version":    "1",
		"created_at": "2025-06-01T12:00:00Z",
	}

	tests := []struct {
		name  string
		field string
		value string
	}{
		{name: "bad price", field: "price", value: "ten"},
		{name: "bad quantity", field: "quantity", value: "3.5"},
		{name: "unknown status", field: "status", value: "shipped"},
		{name: "bad version", field: "version", value: ""},
		{name: "bad timestamp", field: "created_at", value: "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := make(map[string]string, len(valid))
			for k, v := range valid {
				fields[k] = v
			}
			fields[tt.field] = tt.value

			_, err := orderFromFields("o1", fields)
			require.Error(t, err, "a partially-populated order must never be returned")
		})
	}
}
