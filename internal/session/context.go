// Package session implements the conversation-session logic.
//
// This file assembles the natural-language context summary injected as the
// agent's opening message. The summary is a pure function of stored state at
// call time; the caller gates sending it exactly once per session.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/vasa-labs/vasa/internal/models"
	"github.com/vasa-labs/vasa/internal/store"
)

const (
	// summaryExcerptLen bounds how much of each turn feeds the summary.
	summaryExcerptLen = 100
	// summarySeparator joins turn excerpts.
	summarySeparator = " | "
)

// ContextAssembler renders recent conversation history into a summary string.
type ContextAssembler struct {
	store store.Store
}

// NewContextAssembler creates an assembler backed by the given store.
func NewContextAssembler(st store.Store) *ContextAssembler {
	slog.Debug("Creating ContextAssembler")
	return &ContextAssembler{store: st}
}

// BuildSummary produces the opening-context string for a user. Users with no
// stored turns get the fixed new-session template; otherwise the summary
// concatenates truncated excerpts of the most recent turns and closes with
// the current stage and session count. Read-only; calling twice with no new
// turns yields the same string.
func (a *ContextAssembler) BuildSummary(ctx context.Context, userID string, limit int) (string, error) {
	if limit <= 0 {
		limit = models.DefaultContextTurns
	}
	if limit > models.MaxContextTurns {
		limit = models.MaxContextTurns
	}

	user, err := a.store.GetUser(userID)
	if err != nil {
		slog.Error("ContextAssembler BuildSummary get user failed", "error", err, "userID", userID)
		return "", err
	}
	currentStage := models.StagePointedOrigin
	sessions := 0
	if user != nil {
		currentStage = user.CurrentStage
		sessions = user.Metrics.TotalSessions
	}

	turns, err := a.store.RecentTurns(userID, limit)
	if err != nil {
		slog.Error("ContextAssembler BuildSummary turns query failed", "error", err, "userID", userID)
		return "", err
	}

	if len(turns) == 0 {
		slog.Debug("ContextAssembler BuildSummary new session", "userID", userID, "stage", currentStage)
		return fmt.Sprintf("This is a new session with no prior history. Begin gently; their current stage is %s.", currentStage), nil
	}

	excerpts := make([]string, 0, len(turns))
	for _, t := range turns {
		excerpts = append(excerpts, fmt.Sprintf("%s: %s", t.Role, truncate(t.Content, summaryExcerptLen)))
	}

	summary := fmt.Sprintf(
		"Picking up from earlier conversations. Recent exchanges: %s. Their current stage is %s and this is session %d with them.",
		strings.Join(excerpts, summarySeparator), currentStage, sessions)
	slog.Debug("ContextAssembler BuildSummary assembled", "userID", userID, "turns", len(turns), "length", len(summary))
	return summary, nil
}

// truncate cuts s to at most n bytes on a rune boundary, marking the cut
// with an ellipsis.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
