// Package handler exposes the inventory and payment HTTP surfaces. Routing
// uses net/http ServeMux method patterns; business logic lives in the domain
// packages.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// errorResponse is the uniform error body for both services.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeJSON serializes v with the given status. Serialization failures are
// logged; headers are already sent at that point.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

// writeError emits the uniform error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: message})
}
