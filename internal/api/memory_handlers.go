// Package api provides HTTP handlers for VASA memory endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vasa-labs/vasa/internal/models"
)

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if s.chat == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Chat is not configured"))
		return
	}

	resp, err := s.chat.Respond(r.Context(), req.UserID, req.Message)
	if err != nil {
		slog.Error("Server.chatHandler: chat pipeline failed", "error", err, "userID", req.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate response"))
		return
	}
	slog.Debug("Server.chatHandler: responded", "userID", req.UserID, "memories_used", resp.MemoriesUsed)
	writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) getMemoriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("userId query parameter is required"))
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "all"
	}

	resp := models.GetMemoriesResponse{Success: true}
	if source == "store" || source == "all" {
		turns, err := s.store.RecentTurns(userID, models.MaxContextTurns)
		if err != nil {
			slog.Error("Server.getMemoriesHandler: failed to load turns", "error", err, "userID", userID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load stored turns"))
			return
		}
		resp.Turns = turns
	}
	if source == "semantic" || source == "all" {
		if s.memory == nil {
			if source == "semantic" {
				writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Semantic memory is not configured"))
				return
			}
		} else {
			memories, err := s.memory.GetAll(r.Context(), userID)
			if err != nil {
				// Semantic memory is a collaborator, not the source of truth.
				slog.Warn("Server.getMemoriesHandler: semantic memory fetch failed", "error", err, "userID", userID)
			} else {
				resp.Memories = memories
			}
		}
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.searchHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if s.memory == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Semantic memory is not configured"))
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	memories, err := s.memory.Search(r.Context(), req.UserID, req.Query, limit)
	if err != nil {
		slog.Error("Server.searchHandler: search failed", "error", err, "userID", req.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Memory search failed"))
		return
	}
	if memories == nil {
		memories = []models.MemorySnippet{}
	}
	writeJSONResponse(w, http.StatusOK, models.SearchResponse{Success: true, Memories: memories})
}

func (s *Server) contextHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.contextHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	userID := req.UserID
	if userID == "" {
		resolved, err := s.resolver.ResolveUser(r.Context(), req.ConversationID)
		if err != nil {
			slog.Error("Server.contextHandler: resolution failed", "error", err, "conversationID", req.ConversationID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to resolve conversation"))
			return
		}
		if resolved == "" {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		userID = resolved
	}

	limit := req.Limit
	if limit <= 0 {
		limit = models.DefaultContextTurns
	}
	if limit > models.MaxContextTurns {
		limit = models.MaxContextTurns
	}

	turns, err := s.store.RecentTurns(userID, limit)
	if err != nil {
		slog.Error("Server.contextHandler: failed to load turns", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load turns"))
		return
	}
	summary, err := s.assembler.BuildSummary(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Server.contextHandler: failed to build summary", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build context"))
		return
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	writeJSONResponse(w, http.StatusOK, models.ContextResponse{
		Success: true,
		UserID:  userID,
		Turns:   turns,
		Context: summary,
	})
}
