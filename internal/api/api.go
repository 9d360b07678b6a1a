// Package api provides HTTP handlers and the main API server logic for VASA.
//
// It exposes endpoints for starting conversations, receiving post-call
// webhooks, memory-aware chat, memory retrieval and search, conversation
// context assembly, and service status. The API integrates the store,
// memory, genai, voice, session, and tasks modules.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vasa-labs/vasa/internal/models"
	"github.com/vasa-labs/vasa/internal/session"
	"github.com/vasa-labs/vasa/internal/store"
	"github.com/vasa-labs/vasa/internal/tasks"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful shutdown on exit.
const shutdownTimeout = 10 * time.Second

// MemoryService is the semantic memory surface the server depends on.
type MemoryService interface {
	Add(ctx context.Context, userID, text string, metadata map[string]interface{}) error
	Search(ctx context.Context, userID, query string, limit int) ([]models.MemorySnippet, error)
	GetAll(ctx context.Context, userID string) ([]models.MemorySnippet, error)
}

// ChatResponder answers a user message with remembered context.
type ChatResponder interface {
	Respond(ctx context.Context, userID, message string) (models.ChatResponse, error)
}

// SignedURLProvider issues vendor signed URLs for voice sessions.
type SignedURLProvider interface {
	GetSignedURL(ctx context.Context, agentID string) (string, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	Memory        MemoryService
	Chat          ChatResponder
	Voice         SignedURLProvider
	Queue         *tasks.Queue
	Agents        []models.AgentConfig
	WebhookSecret string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithMemoryService sets the semantic memory collaborator.
func WithMemoryService(m MemoryService) Option {
	return func(o *Opts) { o.Memory = m }
}

// WithChatResponder sets the chat pipeline.
func WithChatResponder(c ChatResponder) Option {
	return func(o *Opts) { o.Chat = c }
}

// WithVoiceClient sets the voice vendor client.
func WithVoiceClient(v SignedURLProvider) Option {
	return func(o *Opts) { o.Voice = v }
}

// WithTaskQueue sets the background task queue used for fire-and-forget work.
func WithTaskQueue(q *tasks.Queue) Option {
	return func(o *Opts) { o.Queue = q }
}

// WithAgents sets the configured voice agents.
func WithAgents(agents []models.AgentConfig) Option {
	return func(o *Opts) { o.Agents = agents }
}

// WithWebhookSecret enables webhook signature verification with the given secret.
func WithWebhookSecret(secret string) Option {
	return func(o *Opts) { o.WebhookSecret = secret }
}

// Server wires the HTTP surface to its collaborators. Optional
// collaborators (memory, chat, voice) may be nil; the corresponding
// endpoints then report the degradation instead of failing at startup.
type Server struct {
	store     store.Store
	memory    MemoryService
	chat      ChatResponder
	voice     SignedURLProvider
	queue     *tasks.Queue
	recorder  *session.TransitionRecorder
	resolver  *session.Resolver
	assembler *session.ContextAssembler

	addr          string
	agents        []models.AgentConfig
	webhookSecret string
}

// NewServer creates an API server over the given store. Session helpers
// (recorder, resolver, context assembler) are constructed internally; the
// remaining collaborators come in as options.
func NewServer(st store.Store, opts ...Option) (*Server, error) {
	if st == nil {
		return nil, errors.New("api: store is required")
	}
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		store:         st,
		memory:        cfg.Memory,
		chat:          cfg.Chat,
		voice:         cfg.Voice,
		queue:         cfg.Queue,
		recorder:      session.NewTransitionRecorder(st),
		resolver:      session.NewResolver(st),
		assembler:     session.NewContextAssembler(st),
		addr:          cfg.Addr,
		agents:        cfg.Agents,
		webhookSecret: cfg.WebhookSecret,
	}
	slog.Debug("Server created", "addr", s.addr, "memory", s.memory != nil, "chat", s.chat != nil, "voice", s.voice != nil, "agents", len(s.agents))
	return s, nil
}

// Handler returns the routed HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/start-conversation", s.startConversationHandler)
	mux.HandleFunc("/api/end-conversation", s.endConversationHandler)
	mux.HandleFunc("/api/webhook", s.webhookHandler)
	mux.HandleFunc("/api/memory/chat", s.chatHandler)
	mux.HandleFunc("/api/memory/get", s.getMemoriesHandler)
	mux.HandleFunc("/api/memory/search", s.searchHandler)
	mux.HandleFunc("/api/get-conversation-context", s.contextHandler)
	mux.HandleFunc("/api/users/", s.userHandler)
	mux.HandleFunc("/api/status", s.statusHandler)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("Server.Run: listener failed", "error", err)
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return err
		}
		return nil
	}
}

// defaultAgent returns the agent matching id, the first configured agent
// when id is empty, or nil.
func (s *Server) defaultAgent(id string) *models.AgentConfig {
	if len(s.agents) == 0 {
		return nil
	}
	if id == "" {
		agent := s.agents[0]
		return &agent
	}
	for _, a := range s.agents {
		if a.ID == id {
			agent := a
			return &agent
		}
	}
	return nil
}
