// Package api provides HTTP response utilities for VASA.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vasa-labs/vasa/internal/models"
)

// fallbackErrorBody is written when a response fails to marshal, so the
// failure path never depends on runtime encoding. Built once at startup.
var fallbackErrorBody = mustMarshal(models.Error("Internal server error"))

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("fallback response not marshalable: %v", err))
	}
	return data
}

// writeJSONResponse marshals before touching the ResponseWriter, so an
// encoding failure can still swap in a 500 with the fallback body.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		body = fallbackErrorBody
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", err)
	}
}
