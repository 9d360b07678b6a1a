// Package store provides storage backends for VASA.
//
// It defines the Store interface over users, conversation turns, stage
// transitions, and conversation mappings, with in-memory, SQLite, and
// PostgreSQL implementations. Writes are single-record set/update
// operations; the store relies on per-row atomicity and uses no
// multi-record transactions.
package store

import (
	"strings"
	"time"

	"github.com/vasa-labs/vasa/internal/models"
)

// Store defines the persistence operations the service depends on.
// Lookups that find nothing return (nil, nil), not an error.
type Store interface {
	// GetUser retrieves a user by id.
	GetUser(id string) (*models.User, error)

	// SaveUser inserts or updates a user record.
	SaveUser(u models.User) error

	// DeleteUser removes a user and all dependent records. Admin cleanup
	// only; the normal flow never hard-deletes.
	DeleteUser(id string) error

	// AddTurn appends one conversation turn. Turns are immutable; there is
	// no update operation.
	AddTurn(t models.ConversationTurn) error

	// RecentTurns returns up to limit most recent turns for a user in
	// chronological (oldest-first) order.
	RecentTurns(userID string, limit int) ([]models.ConversationTurn, error)

	// TurnsByConversation returns all turns of one conversation in
	// chronological order.
	TurnsByConversation(conversationID string) ([]models.ConversationTurn, error)

	// AddStageTransition appends one stage transition record.
	AddStageTransition(tr models.StageTransition) error

	// StageTransitions returns all transitions for a user in chronological order.
	StageTransitions(userID string) ([]models.StageTransition, error)

	// SaveConversationMapping upserts a mapping keyed by conversation id.
	// Saving an existing id merges fields and preserves the original
	// creation time, so registration is idempotent.
	SaveConversationMapping(m models.ConversationMapping) error

	// GetConversationMapping retrieves a mapping by conversation id.
	GetConversationMapping(conversationID string) (*models.ConversationMapping, error)

	// EndConversationMapping marks a mapping ended at the given time.
	EndConversationMapping(conversationID string, endedAt time.Time) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // database connection string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
