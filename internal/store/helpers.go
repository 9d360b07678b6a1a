package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vasa-labs/vasa/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalStringList converts a string slice to JSON for storage, or nil for
// an empty slice.
func marshalStringList(list []string) (interface{}, error) {
	if len(list) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("marshal string list failed: %w", err)
	}
	return data, nil
}

// unmarshalStringList converts a stored JSON column back to a string slice.
// Malformed data is logged and treated as empty rather than failing the read.
func unmarshalStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		slog.Error("store unmarshalStringList failed, treating as empty", "error", err)
		return nil
	}
	return list
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a user record from a row.
func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var displayName sql.NullString
	var goalsJSON, prefsJSON []byte
	err := row.Scan(
		&u.ID, &u.CurrentStage, &displayName, &goalsJSON, &prefsJSON,
		&u.Metrics.TotalSessions, &u.Metrics.StagesCompleted,
		&u.CreatedAt, &u.LastActiveAt,
	)
	if err != nil {
		return u, err
	}
	u.Profile.DisplayName = displayName.String
	u.Profile.Goals = unmarshalStringList(goalsJSON)
	u.Profile.Preferences = unmarshalStringList(prefsJSON)
	return u, nil
}

// scanTurn scans a conversation turn from a row.
func scanTurn(row rowScanner) (models.ConversationTurn, error) {
	var t models.ConversationTurn
	err := row.Scan(&t.ID, &t.UserID, &t.ConversationID, &t.Role, &t.Content, &t.Stage, &t.CreatedAt)
	if err != nil {
		return t, fmt.Errorf("scan turn failed: %w", err)
	}
	return t, nil
}

// scanTransition scans a stage transition from a row.
func scanTransition(row rowScanner) (models.StageTransition, error) {
	var tr models.StageTransition
	var conversationID sql.NullString
	err := row.Scan(&tr.ID, &tr.UserID, &tr.FromStage, &tr.ToStage, &conversationID, &tr.CreatedAt)
	if err != nil {
		return tr, fmt.Errorf("scan stage transition failed: %w", err)
	}
	tr.ConversationID = conversationID.String
	return tr, nil
}

// scanMapping scans a conversation mapping from a row.
func scanMapping(row rowScanner) (models.ConversationMapping, error) {
	var m models.ConversationMapping
	var agentID sql.NullString
	var endedAt sql.NullTime
	err := row.Scan(&m.ConversationID, &m.UserID, &agentID, &m.Status, &m.CreatedAt, &endedAt)
	if err != nil {
		return m, fmt.Errorf("scan conversation mapping failed: %w", err)
	}
	m.AgentID = agentID.String
	if endedAt.Valid {
		m.EndedAt = &endedAt.Time
	}
	return m, nil
}
