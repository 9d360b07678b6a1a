package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vasa-labs/vasa/internal/memory"
	"github.com/vasa-labs/vasa/internal/models"
	"github.com/vasa-labs/vasa/internal/store"
	"github.com/vasa-labs/vasa/internal/testutil"
)

// slowSearcher blocks until its context is cancelled, simulating a memory
// backend that never answers in time.
type slowSearcher struct{}

func (slowSearcher) Search(ctx context.Context, userID, query string, limit int) ([]models.MemorySnippet, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// echoGenerator returns the prompt it was given.
type echoGenerator struct{}

func (echoGenerator) GenerateReply(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return userPrompt, nil
}

func TestChatHandler(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore(),
		WithChatResponder(&fakeChat{resp: models.ChatResponse{Response: "hello there", MemoriesUsed: 2}}),
	)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/memory/chat", models.ChatRequest{UserID: "u1", Message: "hi"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "chat")
	resp := testutil.DecodeJSONResponse(t, rr)
	if resp["response"] != "hello there" {
		t.Errorf("unexpected response %v", resp["response"])
	}
	if resp["memoriesUsed"] != float64(2) {
		t.Errorf("expected memoriesUsed 2, got %v", resp["memoriesUsed"])
	}
}

func TestChatHandlerTimeoutFallback(t *testing.T) {
	pipeline := memory.NewChatPipeline(slowSearcher{}, echoGenerator{}, 50*time.Millisecond)
	srv := newTestServer(t, store.NewInMemoryStore(), WithChatResponder(pipeline))

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/memory/chat", models.ChatRequest{UserID: "u1", Message: "are you there"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "chat timeout")
	resp := testutil.DecodeJSONResponse(t, rr)
	if resp["note"] != memory.TimeoutNote {
		t.Errorf("expected timeout note, got %v", resp["note"])
	}
	if resp["memoriesUsed"] != float64(0) {
		t.Errorf("expected memoriesUsed 0, got %v", resp["memoriesUsed"])
	}
	if resp["response"] != memory.FallbackResponse {
		t.Errorf("expected fallback response, got %v", resp["response"])
	}
}

func TestChatHandlerValidation(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore(), WithChatResponder(&fakeChat{}))

	tests := []struct {
		name string
		body models.ChatRequest
	}{
		{name: "missing user", body: models.ChatRequest{Message: "hi"}},
		{name: "missing message", body: models.ChatRequest{UserID: "u1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/memory/chat", tt.body)
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)
			testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, tt.name)
		})
	}
}

func TestChatHandlerUnconfigured(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/memory/chat", models.ChatRequest{UserID: "u1", Message: "hi"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusServiceUnavailable, rr.Code, "no chat configured")
}

func TestGetMemoriesHandler(t *testing.T) {
	st := testutil.NewStoreWithUser(t, "u1", models.StagePointedOrigin)
	if err := st.AddTurn(models.ConversationTurn{
		ID:             uuid.NewString(),
		UserID:         "u1",
		ConversationID: "conv_1",
		Role:           models.RoleUser,
		Content:        "stored turn",
		Stage:          models.StagePointedOrigin,
		CreatedAt:      time.Now(),
	}); err != nil {
		t.Fatalf("failed to seed turn: %v", err)
	}
	mem := &fakeMemory{snippets: []models.MemorySnippet{{Text: "likes tea"}}}
	srv := newTestServer(t, st, WithMemoryService(mem))

	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/api/memory/get?userId=u1", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get memories")
	resp := testutil.DecodeJSONResponse(t, rr)
	turns, _ := resp["turns"].([]interface{})
	memories, _ := resp["memories"].([]interface{})
	if len(turns) != 1 {
		t.Errorf("expected 1 stored turn, got %d", len(turns))
	}
	if len(memories) != 1 {
		t.Errorf("expected 1 semantic memory, got %d", len(memories))
	}
}

func TestGetMemoriesHandlerSourceFilter(t *testing.T) {
	st := testutil.NewStoreWithUser(t, "u1", models.StagePointedOrigin)
	mem := &fakeMemory{snippets: []models.MemorySnippet{{Text: "likes tea"}}}
	srv := newTestServer(t, st, WithMemoryService(mem))

	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/api/memory/get?userId=u1&source=semantic", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "semantic only")
	resp := testutil.DecodeJSONResponse(t, rr)
	if _, present := resp["turns"]; present {
		t.Errorf("expected no turns for semantic source, got %v", resp["turns"])
	}
}

func TestGetMemoriesHandlerRequiresUserID(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())

	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/api/memory/get", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing userId")
}

func TestSearchHandler(t *testing.T) {
	mem := &fakeMemory{snippets: []models.MemorySnippet{{Text: "moved last spring", Score: 0.91}}}
	srv := newTestServer(t, store.NewInMemoryStore(), WithMemoryService(mem))

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/memory/search", models.SearchRequest{UserID: "u1", Query: "moving"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "search")
	resp := testutil.DecodeJSONResponse(t, rr)
	memories, _ := resp["memories"].([]interface{})
	if len(memories) != 1 {
		t.Fatalf("expected 1 result, got %d", len(memories))
	}
}

func TestSearchHandlerValidation(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore(), WithMemoryService(&fakeMemory{}))

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/memory/search", models.SearchRequest{UserID: "u1"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty query")
}

func TestContextHandlerByUserID(t *testing.T) {
	st := testutil.NewStoreWithUser(t, "u1", models.StageBindingFocus)
	for i := 0; i < 3; i++ {
		if err := st.AddTurn(models.ConversationTurn{
			ID:             uuid.NewString(),
			UserID:         "u1",
			ConversationID: "conv_1",
			Role:           models.RoleUser,
			Content:        "turn content",
			Stage:          models.StageBindingFocus,
			CreatedAt:      time.Now().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("failed to seed turn: %v", err)
		}
	}
	srv := newTestServer(t, st)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/get-conversation-context", models.ContextRequest{UserID: "u1", Limit: 2})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "context by user")
	resp := testutil.DecodeJSONResponse(t, rr)
	turns, _ := resp["turns"].([]interface{})
	if len(turns) != 2 {
		t.Errorf("expected 2 turns, got %d", len(turns))
	}
	summary, _ := resp["context"].(string)
	if summary == "" {
		t.Error("expected a non-empty context summary")
	}
}

func TestContextHandlerByConversationID(t *testing.T) {
	st := testutil.NewStoreWithUser(t, "u1", models.StagePointedOrigin)
	seedMappedConversation(t, st, "u1", "conv_1")
	srv := newTestServer(t, st)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/get-conversation-context", models.ContextRequest{ConversationID: "conv_1"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "context by conversation")
	resp := testutil.DecodeJSONResponse(t, rr)
	if resp["user_id"] != "u1" {
		t.Errorf("expected resolved user u1, got %v", resp["user_id"])
	}
}

func TestContextHandlerUnknownConversation(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/get-conversation-context", models.ContextRequest{ConversationID: "conv_ghost"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown conversation")
}

func TestContextHandlerValidation(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/get-conversation-context", models.ContextRequest{})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "neither id set")
}
