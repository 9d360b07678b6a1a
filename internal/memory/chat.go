// Package memory integrates the semantic memory collaborator and the chat
// pipeline built on top of it.
//
// This file implements the search-then-respond pipeline with its timeout
// contract: when the pipeline does not finish within the configured budget,
// the caller receives a canned fallback response instead of an error.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vasa-labs/vasa/internal/models"
)

// DefaultChatTimeout is the pipeline budget when none is configured.
const DefaultChatTimeout = 10 * time.Second

// TimeoutNote is the note attached to fallback responses produced by the
// timeout path. Clients key off this exact string.
const TimeoutNote = "Timeout occurred - using fallback response"

// FallbackResponse is the canned conversational reply used when the pipeline
// times out or the generation collaborator fails.
const FallbackResponse = "I'm still here with you. I couldn't reach my memory just now, but tell me more and we'll pick it up from here."

const chatSystemPrompt = "You are a gentle voice companion with long-term memory of the person you are speaking with. " +
	"Use the remembered details below when they are relevant, and never mention that you are reading from stored memories."

// Searcher is the memory lookup surface the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, userID, query string, limit int) ([]models.MemorySnippet, error)
}

// Generator is the completion surface the pipeline needs.
type Generator interface {
	GenerateReply(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ChatPipeline answers a user message using remembered context.
type ChatPipeline struct {
	searcher Searcher
	gen      Generator
	timeout  time.Duration
}

// NewChatPipeline creates a chat pipeline over the given collaborators.
// A non-positive timeout falls back to DefaultChatTimeout.
func NewChatPipeline(searcher Searcher, gen Generator, timeout time.Duration) *ChatPipeline {
	if timeout <= 0 {
		timeout = DefaultChatTimeout
	}
	return &ChatPipeline{searcher: searcher, gen: gen, timeout: timeout}
}

// Respond runs search then generation, racing the whole pipeline against the
// configured timeout. Timeouts and upstream failures degrade to the fallback
// response; the error return is reserved for context cancellation.
func (p *ChatPipeline) Respond(ctx context.Context, userID, message string) (models.ChatResponse, error) {
	type outcome struct {
		response string
		used     int
		err      error
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		snippets, err := p.searcher.Search(ctx, userID, message, 10)
		if err != nil {
			// Memory misses degrade to an uninformed reply, not a failure.
			slog.Warn("ChatPipeline memory search failed, continuing without memories", "error", err, "userID", userID)
			snippets = nil
		}
		reply, err := p.gen.GenerateReply(ctx, chatSystemPrompt, buildChatPrompt(message, snippets))
		done <- outcome{response: reply, used: len(snippets), err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			slog.Error("ChatPipeline generation failed, using fallback", "error", out.err, "userID", userID)
			return models.ChatResponse{Response: FallbackResponse, MemoriesUsed: 0}, nil
		}
		slog.Debug("ChatPipeline responded", "userID", userID, "memories_used", out.used)
		return models.ChatResponse{Response: out.response, MemoriesUsed: out.used}, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			slog.Warn("ChatPipeline timed out, using fallback", "userID", userID, "timeout", p.timeout)
			return models.ChatResponse{
				Response:     FallbackResponse,
				MemoriesUsed: 0,
				Note:         TimeoutNote,
			}, nil
		}
		return models.ChatResponse{}, ctx.Err()
	}
}

// buildChatPrompt renders the user prompt with remembered snippets inlined.
func buildChatPrompt(message string, snippets []models.MemorySnippet) string {
	if len(snippets) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString("Remembered details about this person:\n")
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Text)
	}
	b.WriteString("\nTheir message: ")
	b.WriteString(message)
	return b.String()
}
