// Package models defines the core data structures for VASA.
//
// It includes the symbolic stage enumeration, persistent records (users,
// conversation turns, stage transitions, conversation mappings), and the
// request/response types shared across modules.
package models

import (
	"errors"
	"time"
)

// Stage is one of six fixed symbolic conversation phases. Stages tag turns,
// drive the agent configuration, and are recorded on the user profile.
type Stage string

const (
	// StagePointedOrigin marks utterances naming where a concern began.
	StagePointedOrigin Stage = "pointed_origin"
	// StageBindingFocus marks utterances circling a fixation the speaker cannot drop.
	StageBindingFocus Stage = "binding_focus"
	// StageSuspension marks utterances holding a concern without acting on it.
	StageSuspension Stage = "suspension"
	// StageGestureToward marks utterances reaching for a change or next step.
	StageGestureToward Stage = "gesture_toward"
	// StageCompletion marks utterances describing a concern as resolved.
	StageCompletion Stage = "completion"
	// StageTerminalField marks utterances closing the conversation itself.
	StageTerminalField Stage = "terminal_field"
)

// stageOrder fixes the display order of stages from origin to terminal.
// Classification is free to move in any direction; this order is for
// presentation and metrics only.
var stageOrder = map[Stage]int{
	StagePointedOrigin: 0,
	StageBindingFocus:  1,
	StageSuspension:    2,
	StageGestureToward: 3,
	StageCompletion:    4,
	StageTerminalField: 5,
}

// stageDescriptions holds the human-readable description for each stage.
var stageDescriptions = map[Stage]string{
	StagePointedOrigin: "naming where the concern began",
	StageBindingFocus:  "circling a fixation that will not let go",
	StageSuspension:    "holding the concern without acting on it",
	StageGestureToward: "reaching toward a change or next step",
	StageCompletion:    "describing the concern as resolved",
	StageTerminalField: "closing the conversation",
}

// AllStages lists every stage in display order.
var AllStages = []Stage{
	StagePointedOrigin,
	StageBindingFocus,
	StageSuspension,
	StageGestureToward,
	StageCompletion,
	StageTerminalField,
}

// IsValidStage checks if the given stage is one of the six fixed symbols.
func IsValidStage(s Stage) bool {
	_, ok := stageOrder[s]
	return ok
}

// Ordinal returns the display position of the stage, or -1 for unknown stages.
func (s Stage) Ordinal() int {
	if o, ok := stageOrder[s]; ok {
		return o
	}
	return -1
}

// Description returns the human-readable description of the stage.
func (s Stage) Description() string {
	return stageDescriptions[s]
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValidRole checks if the given role is supported.
func IsValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Validation constants for input validation
const (
	// MaxTurnContentLength defines the maximum allowed length for a stored turn.
	MaxTurnContentLength = 8192
	// MaxChatMessageLength defines the maximum allowed length for a chat message.
	MaxChatMessageLength = 4096
	// MaxContextTurns bounds how many turns a context request may ask for.
	MaxContextTurns = 50
	// DefaultContextTurns is the number of recent turns used when unspecified.
	DefaultContextTurns = 5
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID         = errors.New("user id cannot be empty")
	ErrEmptyConversationID = errors.New("conversation id cannot be empty")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
	ErrEmptyQuery          = errors.New("query cannot be empty")
	ErrInvalidStage        = errors.New("invalid stage symbol")
	ErrInvalidRole         = errors.New("invalid speaker role")
	ErrTurnContentTooLong  = errors.New("turn content exceeds maximum length")
	ErrUserNotFound        = errors.New("user not found")
)

// UserProfile holds the mutable profile sub-object of a user.
type UserProfile struct {
	DisplayName string   `json:"display_name,omitempty"`
	Goals       []string `json:"goals,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

// UserMetrics holds aggregate counters maintained on session start and
// stage transitions.
type UserMetrics struct {
	TotalSessions   int `json:"total_sessions"`
	StagesCompleted int `json:"stages_completed"`
}

// User is a participant identified by an opaque id issued by the auth
// collaborator. Created on first contact; never hard-deleted by normal flow.
type User struct {
	ID           string      `json:"id"`
	CurrentStage Stage       `json:"current_stage"`
	Profile      UserProfile `json:"profile"`
	Metrics      UserMetrics `json:"metrics"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActiveAt time.Time   `json:"last_active_at"`
}

// ConversationTurn is one utterance. Immutable once written; appended,
// never edited.
type ConversationTurn struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Stage          Stage     `json:"stage"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate performs validation on a ConversationTurn before persistence.
func (t *ConversationTurn) Validate() error {
	if t.UserID == "" {
		return ErrEmptyUserID
	}
	if t.ConversationID == "" {
		return ErrEmptyConversationID
	}
	if !IsValidRole(t.Role) {
		return ErrInvalidRole
	}
	if !IsValidStage(t.Stage) {
		return ErrInvalidStage
	}
	if len(t.Content) > MaxTurnContentLength {
		return ErrTurnContentTooLong
	}
	return nil
}

// StageTransition records one detected stage change. Append-only; no entry
// is written when the detected stage equals the current stage.
type StageTransition struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	FromStage      Stage     `json:"from_stage"`
	ToStage        Stage     `json:"to_stage"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MappingStatus represents the lifecycle state of a conversation mapping.
type MappingStatus string

const (
	// MappingStatusActive indicates the conversation is in progress.
	MappingStatusActive MappingStatus = "active"
	// MappingStatusEnded indicates the conversation has completed.
	MappingStatusEnded MappingStatus = "ended"
)

// ConversationMapping binds a vendor-issued conversation identifier to an
// internal user identifier. At most one mapping exists per conversation id;
// saves are merges, so repeated registration is idempotent.
type ConversationMapping struct {
	ConversationID string        `json:"conversation_id"`
	UserID         string        `json:"user_id"`
	AgentID        string        `json:"agent_id,omitempty"`
	Status         MappingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
}

// MemorySnippet is one ranked result from the semantic memory collaborator.
type MemorySnippet struct {
	ID        string  `json:"id,omitempty"`
	Text      string  `json:"text"`
	Score     float64 `json:"score,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// AgentConfig describes one configured voice agent.
type AgentConfig struct {
	ID           string `json:"id" mapstructure:"id"`
	Name         string `json:"name" mapstructure:"name"`
	VoiceID      string `json:"voice_id,omitempty" mapstructure:"voice_id"`
	FirstMessage string `json:"first_message,omitempty" mapstructure:"first_message"`
}
