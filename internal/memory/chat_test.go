package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vasa-labs/vasa/internal/models"
)

type fakeSearcher struct {
	snippets []models.MemorySnippet
	err      error
	delay    time.Duration
}

func (f *fakeSearcher) Search(ctx context.Context, userID, query string, limit int) ([]models.MemorySnippet, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.snippets, f.err
}

type fakeGenerator struct {
	reply     string
	err       error
	gotPrompt string
}

func (f *fakeGenerator) GenerateReply(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.gotPrompt = userPrompt
	return f.reply, f.err
}

func TestRespondUsesMemories(t *testing.T) {
	searcher := &fakeSearcher{snippets: []models.MemorySnippet{
		{Text: "has two dogs"},
		{Text: "prefers short answers"},
	}}
	gen := &fakeGenerator{reply: "Of course, how are the dogs?"}
	p := NewChatPipeline(searcher, gen, time.Second)

	resp, err := p.Respond(context.Background(), "u1", "tell me about my pets")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if resp.Response != "Of course, how are the dogs?" {
		t.Errorf("unexpected response %q", resp.Response)
	}
	if resp.MemoriesUsed != 2 {
		t.Errorf("expected 2 memories used, got %d", resp.MemoriesUsed)
	}
	if resp.Note != "" {
		t.Errorf("expected no note, got %q", resp.Note)
	}
	if !strings.Contains(gen.gotPrompt, "has two dogs") {
		t.Errorf("expected memories in prompt, got %q", gen.gotPrompt)
	}
}

func TestRespondTimeoutReturnsFallback(t *testing.T) {
	searcher := &fakeSearcher{delay: time.Second}
	gen := &fakeGenerator{reply: "too late"}
	p := NewChatPipeline(searcher, gen, 20*time.Millisecond)

	resp, err := p.Respond(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if resp.Response != FallbackResponse {
		t.Errorf("expected fallback response, got %q", resp.Response)
	}
	if resp.MemoriesUsed != 0 {
		t.Errorf("expected 0 memories used on timeout, got %d", resp.MemoriesUsed)
	}
	if resp.Note != TimeoutNote {
		t.Errorf("expected timeout note %q, got %q", TimeoutNote, resp.Note)
	}
}

func TestRespondSearchFailureDegrades(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("memory service down")}
	gen := &fakeGenerator{reply: "still here"}
	p := NewChatPipeline(searcher, gen, time.Second)

	resp, err := p.Respond(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if resp.Response != "still here" {
		t.Errorf("expected generated reply despite search failure, got %q", resp.Response)
	}
	if resp.MemoriesUsed != 0 {
		t.Errorf("expected 0 memories used, got %d", resp.MemoriesUsed)
	}
}

func TestRespondGenerationFailureFallsBack(t *testing.T) {
	searcher := &fakeSearcher{}
	gen := &fakeGenerator{err: errors.New("upstream auth failure")}
	p := NewChatPipeline(searcher, gen, time.Second)

	resp, err := p.Respond(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if resp.Response != FallbackResponse {
		t.Errorf("expected fallback response, got %q", resp.Response)
	}
	if resp.Note != "" {
		t.Errorf("generation failure should not carry the timeout note, got %q", resp.Note)
	}
}

func TestBuildChatPromptWithoutMemoriesIsMessage(t *testing.T) {
	if got := buildChatPrompt("just the message", nil); got != "just the message" {
		t.Errorf("expected bare message, got %q", got)
	}
}
