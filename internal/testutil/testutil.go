// Package testutil provides common test utilities and helpers for VASA tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vasa-labs/vasa/internal/models"
	"github.com/vasa-labs/vasa/internal/store"
)

// NewStoreWithUser creates an in-memory store seeded with one user in the
// given stage. This centralizes the seeding logic used across test files.
func NewStoreWithUser(t *testing.T, userID string, stage models.Stage) *store.InMemoryStore {
	t.Helper()
	st := store.NewInMemoryStore()
	now := time.Now()
	err := st.SaveUser(models.User{
		ID:           userID,
		CurrentStage: stage,
		CreatedAt:    now,
		LastActiveAt: now,
	})
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", userID, err)
	}
	return st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeJSONResponse decodes the recorded response body into a generic map.
func DecodeJSONResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// AssertTurnCount validates the number of stored turns for a conversation.
func AssertTurnCount(t *testing.T, st store.Store, conversationID string, expected int, context string) {
	t.Helper()
	turns, err := st.TurnsByConversation(conversationID)
	if err != nil {
		t.Fatalf("%s: failed to load turns: %v", context, err)
	}
	if len(turns) != expected {
		t.Errorf("%s: expected %d turns, got %d", context, expected, len(turns))
	}
}
