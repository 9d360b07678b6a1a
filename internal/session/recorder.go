// Package session implements the conversation-session logic: recording stage
// transitions, resolving vendor conversation ids to users, and assembling
// the context summary injected at session start.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vasa-labs/vasa/internal/models"
	"github.com/vasa-labs/vasa/internal/store"
)

// TransitionRecorder appends stage transitions and keeps the user's current
// stage in sync. Call sites treat failures as best-effort: they log and
// continue rather than blocking turn processing.
type TransitionRecorder struct {
	store store.Store
}

// NewTransitionRecorder creates a recorder backed by the given store.
func NewTransitionRecorder(st store.Store) *TransitionRecorder {
	slog.Debug("Creating TransitionRecorder")
	return &TransitionRecorder{store: st}
}

// Record compares the detected stage against the user's current stage. Equal
// stages are a no-op with no writes; a change appends one StageTransition and
// updates the user record. It reports whether a transition was recorded.
func (r *TransitionRecorder) Record(ctx context.Context, userID string, detected models.Stage, conversationID string) (bool, error) {
	if !models.IsValidStage(detected) {
		return false, models.ErrInvalidStage
	}

	user, err := r.store.GetUser(userID)
	if err != nil {
		slog.Error("TransitionRecorder Record get user failed", "error", err, "userID", userID)
		return false, err
	}
	if user == nil {
		return false, fmt.Errorf("record transition for %s: %w", userID, models.ErrUserNotFound)
	}

	if detected == user.CurrentStage {
		slog.Debug("TransitionRecorder Record no-op", "userID", userID, "stage", detected)
		return false, nil
	}

	now := time.Now()
	transition := models.StageTransition{
		ID:             uuid.NewString(),
		UserID:         userID,
		FromStage:      user.CurrentStage,
		ToStage:        detected,
		ConversationID: conversationID,
		CreatedAt:      now,
	}
	if err := r.store.AddStageTransition(transition); err != nil {
		slog.Error("TransitionRecorder Record append failed", "error", err, "userID", userID, "from", user.CurrentStage, "to", detected)
		return false, err
	}

	user.CurrentStage = detected
	user.Metrics.StagesCompleted++
	user.LastActiveAt = now
	if err := r.store.SaveUser(*user); err != nil {
		slog.Error("TransitionRecorder Record user update failed", "error", err, "userID", userID)
		return false, err
	}

	slog.Info("TransitionRecorder recorded stage transition", "userID", userID, "from", transition.FromStage, "to", transition.ToStage)
	return true, nil
}
