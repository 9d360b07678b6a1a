// Package session implements the conversation-session logic.
//
// This file resolves vendor conversation identifiers to internal user
// identifiers. The mapping lookup is exact and idempotent; the UUID
// extraction fallback is heuristic and lossy, and callers must treat an
// empty result as "drop the event", not as an error.
package session

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/vasa-labs/vasa/internal/store"
)

// uuidPattern matches a UUID embedded anywhere in a conversation id. Our
// own generated conversation ids embed the user UUID by convention.
var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Resolver maps conversation ids to user ids.
type Resolver struct {
	store store.Store
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(st store.Store) *Resolver {
	slog.Debug("Creating Resolver")
	return &Resolver{store: st}
}

// ResolveUser returns the internal user id for a conversation id, or ""
// when the conversation is unknown. Repeated calls with no intervening
// writes return the same result.
func (r *Resolver) ResolveUser(ctx context.Context, conversationID string) (string, error) {
	if conversationID == "" {
		return "", nil
	}

	mapping, err := r.store.GetConversationMapping(conversationID)
	if err != nil {
		slog.Error("Resolver ResolveUser mapping lookup failed", "error", err, "conversationID", conversationID)
		return "", err
	}
	if mapping != nil {
		slog.Debug("Resolver ResolveUser mapping hit", "conversationID", conversationID, "userID", mapping.UserID)
		return mapping.UserID, nil
	}

	// Heuristic fallback: conversation ids generated by this service embed
	// the user UUID. Only trust the extraction when the user exists.
	candidate := uuidPattern.FindString(conversationID)
	if candidate == "" {
		slog.Warn("Resolver ResolveUser unknown conversation", "conversationID", conversationID)
		return "", nil
	}
	if _, err := uuid.Parse(candidate); err != nil {
		return "", nil
	}
	user, err := r.store.GetUser(candidate)
	if err != nil {
		slog.Error("Resolver ResolveUser fallback user lookup failed", "error", err, "conversationID", conversationID)
		return "", err
	}
	if user == nil {
		slog.Warn("Resolver ResolveUser fallback UUID has no user", "conversationID", conversationID)
		return "", nil
	}
	slog.Info("Resolver ResolveUser resolved via UUID fallback", "conversationID", conversationID, "userID", user.ID)
	return user.ID, nil
}
