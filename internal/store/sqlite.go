// Package store provides storage backends for VASA.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/vasa-labs/vasa/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists records in a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, current_stage, display_name, goals, preferences, total_sessions, stages_completed, created_at, last_active_at FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUser not found", "userID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &u, nil
}

// SaveUser inserts or updates a user record.
func (s *SQLiteStore) SaveUser(u models.User) error {
	goals, err := marshalStringList(u.Profile.Goals)
	if err != nil {
		return err
	}
	prefs, err := marshalStringList(u.Profile.Preferences)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO users (id, current_stage, display_name, goals, preferences, total_sessions, stages_completed, created_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_stage = excluded.current_stage,
			display_name = excluded.display_name,
			goals = excluded.goals,
			preferences = excluded.preferences,
			total_sessions = excluded.total_sessions,
			stages_completed = excluded.stages_completed,
			last_active_at = excluded.last_active_at`,
		u.ID, u.CurrentStage, nilIfEmpty(u.Profile.DisplayName), goals, prefs,
		u.Metrics.TotalSessions, u.Metrics.StagesCompleted, u.CreatedAt, u.LastActiveAt)
	if err != nil {
		slog.Error("SQLiteStore SaveUser failed", "error", err, "userID", u.ID)
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	slog.Debug("SQLiteStore SaveUser succeeded", "userID", u.ID, "stage", u.CurrentStage)
	return nil
}

// DeleteUser removes a user and all dependent records.
func (s *SQLiteStore) DeleteUser(id string) error {
	for _, q := range []string{
		`DELETE FROM turns WHERE user_id = ?`,
		`DELETE FROM stage_transitions WHERE user_id = ?`,
		`DELETE FROM conversation_mappings WHERE user_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	} {
		if _, err := s.db.Exec(q, id); err != nil {
			slog.Error("SQLiteStore DeleteUser failed", "error", err, "userID", id)
			return fmt.Errorf("failed to delete user %s: %w", id, err)
		}
	}
	slog.Debug("SQLiteStore DeleteUser succeeded", "userID", id)
	return nil
}

// AddTurn appends one conversation turn.
func (s *SQLiteStore) AddTurn(t models.ConversationTurn) error {
	_, err := s.db.Exec(`INSERT INTO turns (id, user_id, conversation_id, role, content, stage, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ConversationID, t.Role, t.Content, t.Stage, t.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddTurn failed", "error", err, "userID", t.UserID)
		return fmt.Errorf("failed to insert turn for %s: %w", t.UserID, err)
	}
	slog.Debug("SQLiteStore AddTurn succeeded", "userID", t.UserID, "conversationID", t.ConversationID)
	return nil
}

// RecentTurns returns up to limit most recent turns in chronological order.
func (s *SQLiteStore) RecentTurns(userID string, limit int) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, conversation_id, role, content, stage, created_at FROM (
			SELECT id, user_id, conversation_id, role, content, stage, created_at
			FROM turns WHERE user_id = ? ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`, userID, limit)
	if err != nil {
		slog.Error("SQLiteStore RecentTurns query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// TurnsByConversation returns all turns of one conversation in chronological order.
func (s *SQLiteStore) TurnsByConversation(conversationID string) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(`SELECT id, user_id, conversation_id, role, content, stage, created_at FROM turns WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore TurnsByConversation query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// AddStageTransition appends one stage transition record.
func (s *SQLiteStore) AddStageTransition(tr models.StageTransition) error {
	_, err := s.db.Exec(`INSERT INTO stage_transitions (id, user_id, from_stage, to_stage, conversation_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.UserID, tr.FromStage, tr.ToStage, nilIfEmpty(tr.ConversationID), tr.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddStageTransition failed", "error", err, "userID", tr.UserID)
		return fmt.Errorf("failed to insert stage transition for %s: %w", tr.UserID, err)
	}
	slog.Debug("SQLiteStore AddStageTransition succeeded", "userID", tr.UserID, "from", tr.FromStage, "to", tr.ToStage)
	return nil
}

// StageTransitions returns all transitions for a user in chronological order.
func (s *SQLiteStore) StageTransitions(userID string) ([]models.StageTransition, error) {
	rows, err := s.db.Query(`SELECT id, user_id, from_stage, to_stage, conversation_id, created_at FROM stage_transitions WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		slog.Error("SQLiteStore StageTransitions query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query stage transitions: %w", err)
	}
	defer rows.Close()

	var transitions []models.StageTransition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stage transition rows: %w", err)
	}
	return transitions, nil
}

// SaveConversationMapping upserts a mapping keyed by conversation id,
// preserving the original creation time on repeated saves.
func (s *SQLiteStore) SaveConversationMapping(m models.ConversationMapping) error {
	var endedAt interface{}
	if m.EndedAt != nil {
		endedAt = *m.EndedAt
	}
	_, err := s.db.Exec(`
		INSERT INTO conversation_mappings (conversation_id, user_id, agent_id, status, created_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			user_id = excluded.user_id,
			agent_id = excluded.agent_id,
			status = excluded.status,
			ended_at = COALESCE(excluded.ended_at, conversation_mappings.ended_at)`,
		m.ConversationID, m.UserID, nilIfEmpty(m.AgentID), m.Status, m.CreatedAt, endedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationMapping failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to save conversation mapping %s: %w", m.ConversationID, err)
	}
	slog.Debug("SQLiteStore SaveConversationMapping succeeded", "conversationID", m.ConversationID, "userID", m.UserID)
	return nil
}

// GetConversationMapping retrieves a mapping by conversation id.
func (s *SQLiteStore) GetConversationMapping(conversationID string) (*models.ConversationMapping, error) {
	row := s.db.QueryRow(`SELECT conversation_id, user_id, agent_id, status, created_at, ended_at FROM conversation_mappings WHERE conversation_id = ?`, conversationID)
	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationMapping not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationMapping failed", "error", err, "conversationID", conversationID)
		return nil, err
	}
	return &m, nil
}

// EndConversationMapping marks a mapping ended at the given time.
func (s *SQLiteStore) EndConversationMapping(conversationID string, endedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE conversation_mappings SET status = ?, ended_at = ? WHERE conversation_id = ?`,
		models.MappingStatusEnded, endedAt, conversationID)
	if err != nil {
		slog.Error("SQLiteStore EndConversationMapping failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to end conversation mapping %s: %w", conversationID, err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// collectTurns drains a turn result set.
func collectTurns(rows *sql.Rows) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	return turns, nil
}
