// Package models defines HTTP request and response payloads for the VASA API.
package models

// StartConversationRequest is the payload for POST /api/start-conversation.
type StartConversationRequest struct {
	UserUUID         string                 `json:"userUUID"`
	AgentID          string                 `json:"agentId,omitempty"`
	ConversationData map[string]interface{} `json:"conversationData,omitempty"`
	Profile          *UserProfile           `json:"profile,omitempty"`
}

// Validate validates a StartConversationRequest.
func (r *StartConversationRequest) Validate() error {
	if r.UserUUID == "" {
		return ErrEmptyUserID
	}
	return nil
}

// StartConversationResponse is returned by POST /api/start-conversation.
type StartConversationResponse struct {
	Success        bool         `json:"success"`
	ConversationID string       `json:"conversationId"`
	UserProfile    *User        `json:"userProfile"`
	Context        string       `json:"context"`
	AgentConfig    *AgentConfig `json:"agentConfig,omitempty"`
	SignedURL      string       `json:"signedUrl,omitempty"`
}

// EndConversationRequest is the payload for POST /api/end-conversation.
type EndConversationRequest struct {
	ConversationID string `json:"conversationId"`
}

// Validate validates an EndConversationRequest.
func (r *EndConversationRequest) Validate() error {
	if r.ConversationID == "" {
		return ErrEmptyConversationID
	}
	return nil
}

// TranscriptEntry is one utterance inside a post-call webhook payload.
type TranscriptEntry struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs,omitempty"`
}

// WebhookAnalysis carries the vendor's post-call analysis block.
type WebhookAnalysis struct {
	TranscriptSummary string `json:"transcript_summary,omitempty"`
	CallSuccessful    string `json:"call_successful,omitempty"`
}

// WebhookData is the inner payload of a post-call webhook event.
type WebhookData struct {
	ConversationID string                 `json:"conversation_id"`
	AgentID        string                 `json:"agent_id,omitempty"`
	Status         string                 `json:"status,omitempty"`
	Transcript     []TranscriptEntry      `json:"transcript,omitempty"`
	Analysis       *WebhookAnalysis       `json:"analysis,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// WebhookEvent is the payload for POST /api/webhook.
type WebhookEvent struct {
	Type           string      `json:"type,omitempty"`
	EventTimestamp int64       `json:"event_timestamp,omitempty"`
	Data           WebhookData `json:"data"`
}

// WebhookResponse is returned by POST /api/webhook. The handler responds 200
// on the happy and unhappy path alike; Success reports whether the event was
// actually processed.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ChatRequest is the payload for POST /api/memory/chat.
type ChatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Validate validates a ChatRequest.
func (r *ChatRequest) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxChatMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ChatResponse is returned by POST /api/memory/chat.
type ChatResponse struct {
	Response     string `json:"response"`
	MemoriesUsed int    `json:"memoriesUsed"`
	Note         string `json:"note,omitempty"`
}

// SearchRequest is the payload for POST /api/memory/search.
type SearchRequest struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
}

// Validate validates a SearchRequest.
func (r *SearchRequest) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if r.Query == "" {
		return ErrEmptyQuery
	}
	return nil
}

// SearchResponse is returned by POST /api/memory/search.
type SearchResponse struct {
	Success  bool            `json:"success"`
	Memories []MemorySnippet `json:"memories"`
}

// GetMemoriesResponse is returned by GET /api/memory/get.
type GetMemoriesResponse struct {
	Success  bool               `json:"success"`
	Turns    []ConversationTurn `json:"turns,omitempty"`
	Memories []MemorySnippet    `json:"memories,omitempty"`
}

// ContextRequest is the payload for POST /api/get-conversation-context.
// Exactly one of UserID or ConversationID must be set.
type ContextRequest struct {
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// Validate validates a ContextRequest.
func (r *ContextRequest) Validate() error {
	if r.UserID == "" && r.ConversationID == "" {
		return ErrEmptyUserID
	}
	return nil
}

// ContextResponse is returned by POST /api/get-conversation-context.
type ContextResponse struct {
	Success bool               `json:"success"`
	UserID  string             `json:"user_id"`
	Turns   []ConversationTurn `json:"turns"`
	Context string             `json:"context"`
}

// StatusResponse is returned by GET /api/status. Status is "ok" when every
// collaborator is configured, "degraded" otherwise.
type StatusResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

// ErrorResponse is the uniform error body for validation and internal errors.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Error builds the uniform error body for a failed request.
func Error(message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message}
}
