// Package store provides storage backends for VASA.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/vasa-labs/vasa/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists records in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// GetUser retrieves a user by id.
func (s *PostgresStore) GetUser(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, current_stage, display_name, goals, preferences, total_sessions, stages_completed, created_at, last_active_at FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUser not found", "userID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &u, nil
}

// SaveUser inserts or updates a user record.
func (s *PostgresStore) SaveUser(u models.User) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			current_stage = EXCLUDED.current_stage,
			display_name = EXCLUDED.display_name,
			goals = EXCLUDED.goals,
			preferences = EXCLUDED.preferences,
			total_sessions = EXCLUDED.total_sessions,
			stages_completed = EXCLUDED.stages_completed,
			last_active_at = EXCLUDED.last_active_at`,
		u.ID, u.CurrentStage, nilIfEmpty(u.Profile.DisplayName), goals, prefs,
		u.Metrics.TotalSessions, u.Metrics.StagesCompleted, u.CreatedAt, u.LastActiveAt)
	if err != nil {
		slog.Error("PostgresStore SaveUser failed", "error", err, "userID", u.ID)
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	slog.Debug("PostgresStore SaveUser succeeded", "userID", u.ID, "stage", u.CurrentStage)
	return nil
}

// DeleteUser removes a user and all dependent records.
func (s *PostgresStore) DeleteUser(id string) error {
	for _, q := range []string{
		`DELETE FROM turns WHERE user_id = $1`,
		`DELETE FROM stage_transitions WHERE user_id = $1`,
		`DELETE FROM conversation_mappings WHERE user_id = $1`,
		`DELETE FROM users WHERE id = $1`,
	} {
		if _, err := s.db.Exec(q, id); err != nil {
			slog.Error("PostgresStore DeleteUser failed", "error", err, "userID", id)
			return fmt.Errorf("failed to delete user %s: %w", id, err)
		}
	}
	slog.Debug("PostgresStore DeleteUser succeeded", "userID", id)
	return nil
}

// AddTurn appends one conversation turn.
func (s *PostgresStore) AddTurn(t models.ConversationTurn) error {
	_, err := s.db.Exec(`INSERT INTO turns (id, user_id, conversation_id, role, content, stage, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.ConversationID, t.Role, t.Content, t.Stage, t.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddTurn failed", "error", err, "userID", t.UserID)
		return fmt.Errorf("failed to insert turn for %s: %w", t.UserID, err)
	}
	slog.Debug("PostgresStore AddTurn succeeded", "userID", t.UserID, "conversationID", t.ConversationID)
	return nil
}

// RecentTurns returns up to limit most recent turns in chronological order.
func (s *PostgresStore) RecentTurns(userID string, limit int) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, conversation_id, role, content, stage, created_at FROM (
			SELECT id, user_id, conversation_id, role, content, stage, created_at
			FROM turns WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`, userID, limit)
	if err != nil {
		slog.Error("PostgresStore RecentTurns query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// TurnsByConversation returns all turns of one conversation in chronological order.
func (s *PostgresStore) TurnsByConversation(conversationID string) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(`SELECT id, user_id, conversation_id, role, content, stage, created_at FROM turns WHERE conversation_id = $1 ORDER BY created_at ASC`, conversationID)
	if err != nil {
		slog.Error("PostgresStore TurnsByConversation query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// AddStageTransition appends one stage transition record.
func (s *PostgresStore) AddStageTransition(tr models.StageTransition) error {
	_, err := s.db.Exec(`INSERT INTO stage_transitions (id, user_id, from_stage, to_stage, conversation_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.ID, tr.UserID, tr.FromStage, tr.ToStage, nilIfEmpty(tr.ConversationID), tr.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddStageTransition failed", "error", err, "userID", tr.UserID)
		return fmt.Errorf("failed to insert stage transition for %s: %w", tr.UserID, err)
	}
	slog.Debug("PostgresStore AddStageTransition succeeded", "userID", tr.UserID, "from", tr.FromStage, "to", tr.ToStage)
	return nil
}

// StageTransitions returns all transitions for a user in chronological order.
func (s *PostgresStore) StageTransitions(userID string) ([]models.StageTransition, error) {
	rows, err := s.db.Query(`SELECT id, user_id, from_stage, to_stage, conversation_id, created_at FROM stage_transitions WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		slog.Error("PostgresStore StageTransitions query failed", "error", err, "userID", userID)
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
func (s *PostgresStore) SaveConversationMapping(m models.ConversationMapping) error {
	var endedAt interface{}
	if m.EndedAt != nil {
		endedAt = *m.EndedAt
	}
	_, err := s.db.Exec(`
		INSERT INTO conversation_mappings (conversation_id, user_id, agent_id, status, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			agent_id = EXCLUDED.agent_id,
			status = EXCLUDED.status,
			ended_at = COALESCE(EXCLUDED.ended_at, conversation_mappings.ended_at)`,
		m.ConversationID, m.UserID, nilIfEmpty(m.AgentID), m.Status, m.CreatedAt, endedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationMapping failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to save conversation mapping %s: %w", m.ConversationID, err)
	}
	slog.Debug("PostgresStore SaveConversationMapping succeeded", "conversationID", m.ConversationID, "userID", m.UserID)
	return nil
}

// GetConversationMapping retrieves a mapping by conversation id.
func (s *PostgresStore) GetConversationMapping(conversationID string) (*models.ConversationMapping, error) {
	row := s.db.QueryRow(`SELECT conversation_id, user_id, agent_id, status, created_at, ended_at FROM conversation_mappings WHERE conversation_id = $1`, conversationID)
	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationMapping not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationMapping failed", "error", err, "conversationID", conversationID)
		return nil, err
	}
	return &m, nil
}

// EndConversationMapping marks a mapping ended at the given time.
func (s *PostgresStore) EndConversationMapping(conversationID string, endedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE conversation_mappings SET status = $1, ended_at = $2 WHERE conversation_id = $3`,
		models.MappingStatusEnded, endedAt, conversationID)
	if err != nil {
		slog.Error("PostgresStore EndConversationMapping failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to end conversation mapping %s: %w", conversationID, err)
	}
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
