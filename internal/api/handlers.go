// Package api provides HTTP handlers for VASA conversation endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vasa-labs/vasa/internal/models"
	"github.com/vasa-labs/vasa/internal/stage"
	"github.com/vasa-labs/vasa/internal/util"
	"github.com/vasa-labs/vasa/internal/voice"
)

func (s *Server) startConversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startConversationHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.startConversationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.startConversationHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	now := time.Now()
	user, err := s.store.GetUser(req.UserUUID)
	if err != nil {
		slog.Error("Server.startConversationHandler: user lookup failed", "error", err, "userID", req.UserUUID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load user"))
		return
	}
	if user == nil {
		user = &models.User{
			ID:           req.UserUUID,
			CurrentStage: models.StagePointedOrigin,
			CreatedAt:    now,
		}
		slog.Info("Server.startConversationHandler: creating new user", "userID", user.ID)
	}
	if req.Profile != nil {
		if req.Profile.DisplayName != "" {
			user.Profile.DisplayName = req.Profile.DisplayName
		}
		if len(req.Profile.Goals) > 0 {
			user.Profile.Goals = req.Profile.Goals
		}
		if len(req.Profile.Preferences) > 0 {
			user.Profile.Preferences = req.Profile.Preferences
		}
	}
	user.Metrics.TotalSessions++
	user.LastActiveAt = now
	if err := s.store.SaveUser(*user); err != nil {
		slog.Error("Server.startConversationHandler: failed to save user", "error", err, "userID", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save user"))
		return
	}

	agent := s.defaultAgent(req.AgentID)
	conversationID := util.NewConversationID(user.ID)
	mapping := models.ConversationMapping{
		ConversationID: conversationID,
		UserID:         user.ID,
		Status:         models.MappingStatusActive,
		CreatedAt:      now,
	}
	if agent != nil {
		mapping.AgentID = agent.ID
	}
	if err := s.store.SaveConversationMapping(mapping); err != nil {
		slog.Error("Server.startConversationHandler: failed to register mapping", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to register conversation"))
		return
	}

	summary, err := s.assembler.BuildSummary(r.Context(), user.ID, models.DefaultContextTurns)
	if err != nil {
		slog.Error("Server.startConversationHandler: failed to build context", "error", err, "userID", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build context"))
		return
	}

	var signedURL string
	if s.voice != nil && agent != nil {
		signedURL, err = s.voice.GetSignedURL(r.Context(), agent.ID)
		if err != nil {
			// A missing signed URL degrades the session, it does not block it.
			slog.Warn("Server.startConversationHandler: signed URL fetch failed", "error", err, "agentID", agent.ID)
			signedURL = ""
		}
	}

	slog.Info("Server.startConversationHandler: conversation started", "userID", user.ID, "conversationID", conversationID, "sessions", user.Metrics.TotalSessions)
	writeJSONResponse(w, http.StatusOK, models.StartConversationResponse{
		Success:        true,
		ConversationID: conversationID,
		UserProfile:    user,
		Context:        summary,
		AgentConfig:    agent,
		SignedURL:      signedURL,
	})
}

func (s *Server) endConversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.EndConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.endConversationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	mapping, err := s.store.GetConversationMapping(req.ConversationID)
	if err != nil {
		slog.Error("Server.endConversationHandler: mapping lookup failed", "error", err, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if mapping == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	if err := s.store.EndConversationMapping(req.ConversationID, time.Now()); err != nil {
		slog.Error("Server.endConversationHandler: failed to end mapping", "error", err, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to end conversation"))
		return
	}

	slog.Info("Server.endConversationHandler: conversation ended", "conversationID", req.ConversationID, "userID", mapping.UserID)
	writeJSONResponse(w, http.StatusOK, models.WebhookResponse{Success: true, Message: "Conversation ended"})
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.webhookHandler: processing webhook", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("Server.webhookHandler: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusOK, models.WebhookResponse{Success: false, Message: "Unreadable payload"})
		return
	}

	if s.webhookSecret != "" {
		if err := voice.VerifySignature(body, r.Header.Get(voice.SignatureHeader), s.webhookSecret, time.Now()); err != nil {
			// Soft-ack like every other unhappy path: the vendor must never
			// see repeated failures from this endpoint.
			slog.Warn("Server.webhookHandler: signature verification failed", "error", err)
			writeJSONResponse(w, http.StatusOK, models.WebhookResponse{Success: false, Message: "Invalid signature"})
			return
		}
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusOK, models.WebhookResponse{Success: false, Message: "Invalid payload"})
		return
	}

	conversationID := event.Data.ConversationID
	userID, err := s.resolver.ResolveUser(r.Context(), conversationID)
	if err != nil {
		slog.Error("Server.webhookHandler: user resolution failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusOK, models.WebhookResponse{Success: false, Message: "Resolution failed"})
		return
	}
	if userID == "" {
		slog.Warn("Server.webhookHandler: dropping event for unknown conversation", "conversationID", conversationID)
		writeJSONResponse(w, http.StatusOK, models.WebhookResponse{Success: false, Message: "Unknown conversation"})
		return
	}

	s.processTranscript(r.Context(), userID, conversationID, event.Data.Transcript)

	if s.memory != nil && s.queue != nil {
		if text := transcriptText(event.Data.Transcript, event.Data.Analysis); text != "" {
			mem := s.memory
			submitted := s.queue.Submit("memory-forward", func(ctx context.Context) error {
				return mem.Add(ctx, userID, text, map[string]interface{}{"conversation_id": conversationID, "source": "voice"})
			})
			if !submitted {
				slog.Warn("Server.webhookHandler: memory forward not queued", "conversationID", conversationID)
			}
		}
	}

	if err := s.store.EndConversationMapping(conversationID, time.Now()); err != nil {
		// The mapping may have come from the UUID fallback and not exist.
		slog.Debug("Server.webhookHandler: could not mark conversation ended", "error", err, "conversationID", conversationID)
	}

	slog.Info("Server.webhookHandler: webhook processed", "conversationID", conversationID, "userID", userID, "turns", len(event.Data.Transcript))
	writeJSONResponse(w, http.StatusOK, models.WebhookResponse{Success: true, Message: "Webhook processed"})
}

// processTranscript classifies and persists transcript entries. Persistence
// here is best-effort: a failed write is logged and skipped so one bad entry
// never rejects the delivery.
func (s *Server) processTranscript(ctx context.Context, userID, conversationID string, transcript []models.TranscriptEntry) {
	current := models.StagePointedOrigin
	if user, err := s.store.GetUser(userID); err == nil && user != nil {
		current = user.CurrentStage
	}

	now := time.Now()
	for i, entry := range transcript {
		if entry.Message == "" {
			continue
		}
		role := transcriptRole(entry.Role)
		if role == models.RoleUser {
			detected := stage.Classify(entry.Message, current)
			if detected != current {
				if _, err := s.recorder.Record(ctx, userID, detected, conversationID); err != nil {
					slog.Warn("Server.processTranscript: transition not recorded", "error", err, "userID", userID, "to", detected)
				}
				current = detected
			}
		}

		turn := models.ConversationTurn{
			ID:             uuid.NewString(),
			UserID:         userID,
			ConversationID: conversationID,
			Role:           role,
			Content:        entry.Message,
			Stage:          current,
			CreatedAt:      now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := turn.Validate(); err != nil {
			slog.Warn("Server.processTranscript: skipping invalid turn", "error", err, "conversationID", conversationID)
			continue
		}
		if err := s.store.AddTurn(turn); err != nil {
			slog.Error("Server.processTranscript: failed to persist turn", "error", err, "conversationID", conversationID)
		}
	}
}

// transcriptRole normalizes vendor transcript roles onto our Role type.
func transcriptRole(role string) models.Role {
	switch strings.ToLower(role) {
	case "agent", "assistant":
		return models.RoleAssistant
	default:
		return models.RoleUser
	}
}

// transcriptText flattens a transcript into the text forwarded to the
// semantic memory collaborator.
func transcriptText(transcript []models.TranscriptEntry, analysis *models.WebhookAnalysis) string {
	var b strings.Builder
	for _, entry := range transcript {
		if entry.Message == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", transcriptRole(entry.Role), entry.Message)
	}
	if analysis != nil && analysis.TranscriptSummary != "" {
		fmt.Fprintf(&b, "summary: %s\n", analysis.TranscriptSummary)
	}
	return strings.TrimSpace(b.String())
}

func (s *Server) userHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", http.MethodDelete)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid user id"))
		return
	}

	user, err := s.store.GetUser(id)
	if err != nil {
		slog.Error("Server.userHandler: user lookup failed", "error", err, "userID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load user"))
		return
	}
	if user == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("User not found"))
		return
	}
	if err := s.store.DeleteUser(id); err != nil {
		slog.Error("Server.userHandler: failed to delete user", "error", err, "userID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete user"))
		return
	}

	slog.Info("Server.userHandler: user deleted", "userID", id)
	writeJSONResponse(w, http.StatusOK, models.WebhookResponse{Success: true, Message: "User deleted"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	services := map[string]bool{
		"database": s.store != nil,
		"memory":   s.memory != nil,
		"chat":     s.chat != nil,
		"voice":    s.voice != nil,
	}
	status := "ok"
	code := http.StatusOK
	for _, ready := range services {
		if !ready {
			status = "degraded"
			code = http.StatusPartialContent
			break
		}
	}
	writeJSONResponse(w, code, models.StatusResponse{Status: status, Services: services})
}
