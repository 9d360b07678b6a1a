package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/vasa-labs/vasa/internal/models"
	"github.com/vasa-labs/vasa/internal/store"
)

func seedUser(t *testing.T, st store.Store, id string, stage models.Stage, sessions int) {
	t.Helper()
	now := time.Now()
	err := st.SaveUser(models.User{
		ID:           id,
		CurrentStage: stage,
		Metrics:      models.UserMetrics{TotalSessions: sessions},
		CreatedAt:    now,
		LastActiveAt: now,
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func TestRecordSameStageIsNoOp(t *testing.T) {
	st := store.NewInMemoryStore()
	seedUser(t, st, "u1", models.StageSuspension, 1)
	r := NewTransitionRecorder(st)

	recorded, err := r.Record(context.Background(), "u1", models.StageSuspension, "conv_1")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if recorded {
		t.Error("expected no-op when detected stage equals current stage")
	}
	transitions, _ := st.StageTransitions("u1")
	if len(transitions) != 0 {
		t.Errorf("expected 0 transition records, got %d", len(transitions))
	}
	u, _ := st.GetUser("u1")
	if u.Metrics.StagesCompleted != 0 {
		t.Errorf("expected no metric update, got %d", u.Metrics.StagesCompleted)
	}
}

func TestRecordStageChangeAppendsAndUpdates(t *testing.T) {
	st := store.NewInMemoryStore()
	seedUser(t, st, "u1", models.StagePointedOrigin, 1)
	r := NewTransitionRecorder(st)

	recorded, err := r.Record(context.Background(), "u1", models.StageBindingFocus, "conv_1")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !recorded {
		t.Fatal("expected transition to be recorded")
	}

	transitions, _ := st.StageTransitions("u1")
	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}
	tr := transitions[0]
	if tr.FromStage != models.StagePointedOrigin || tr.ToStage != models.StageBindingFocus {
		t.Errorf("unexpected transition %+v", tr)
	}
	if tr.ConversationID != "conv_1" {
		t.Errorf("expected triggering conversation recorded, got %q", tr.ConversationID)
	}

	u, _ := st.GetUser("u1")
	if u.CurrentStage != models.StageBindingFocus {
		t.Errorf("expected user stage updated, got %q", u.CurrentStage)
	}
	if u.Metrics.StagesCompleted != 1 {
		t.Errorf("expected stages_completed 1, got %d", u.Metrics.StagesCompleted)
	}
}

func TestRecordUnknownUser(t *testing.T) {
	r := NewTransitionRecorder(store.NewInMemoryStore())
	if _, err := r.Record(context.Background(), "ghost", models.StageCompletion, ""); !errors.Is(err, models.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRecordInvalidStage(t *testing.T) {
	st := store.NewInMemoryStore()
	seedUser(t, st, "u1", models.StagePointedOrigin, 1)
	r := NewTransitionRecorder(st)
	if _, err := r.Record(context.Background(), "u1", "ascension", ""); !errors.Is(err, models.ErrInvalidStage) {
		t.Errorf("expected ErrInvalidStage, got %v", err)
	}
}

func TestResolveUserMappingHit(t *testing.T) {
	st := store.NewInMemoryStore()
	_ = st.SaveConversationMapping(models.ConversationMapping{
		ConversationID: "conv_vendor_1",
		UserID:         "u1",
		Status:         models.MappingStatusActive,
		CreatedAt:      time.Now(),
	})
	r := NewResolver(st)

	// Idempotence: repeated calls return the same result.
	for i := 0; i < 3; i++ {
		got, err := r.ResolveUser(context.Background(), "conv_vendor_1")
		if err != nil {
			t.Fatalf("ResolveUser failed: %v", err)
		}
		if got != "u1" {
			t.Errorf("call %d: expected u1, got %q", i, got)
		}
	}
}

func TestResolveUserUnknownReturnsEmpty(t *testing.T) {
	r := NewResolver(store.NewInMemoryStore())
	got, err := r.ResolveUser(context.Background(), "conv_never_seen")
	if err != nil {
		t.Fatalf("ResolveUser failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty result for unknown conversation, got %q", got)
	}
}

func TestResolveUserUUIDFallback(t *testing.T) {
	st := store.NewInMemoryStore()
	userID := "4f9c62da-7b1e-4c3a-9a88-0c2f5d1e6b77"
	seedUser(t, st, userID, models.StagePointedOrigin, 1)
	r := NewResolver(st)

	got, err := r.ResolveUser(context.Background(), "conv_"+userID+"_1700000000")
	if err != nil {
		t.Fatalf("ResolveUser failed: %v", err)
	}
	if got != userID {
		t.Errorf("expected fallback to resolve %q, got %q", userID, got)
	}

	// A UUID that matches no stored user stays unresolved.
	got, err = r.ResolveUser(context.Background(), "conv_00000000-0000-4000-8000-000000000000_1")
	if err != nil {
		t.Fatalf("ResolveUser failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty result when fallback UUID has no user, got %q", got)
	}
}

func TestBuildSummaryNewSession(t *testing.T) {
	st := store.NewInMemoryStore()
	seedUser(t, st, "u1", models.StageSuspension, 1)
	a := NewContextAssembler(st)

	summary, err := a.BuildSummary(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("BuildSummary failed: %v", err)
	}
	if !strings.Contains(summary, "new session") {
		t.Errorf("expected new-session template, got %q", summary)
	}
	if !strings.Contains(summary, string(models.StageSuspension)) {
		t.Errorf("expected current stage in summary, got %q", summary)
	}
}

func TestBuildSummaryDeterministic(t *testing.T) {
	st := store.NewInMemoryStore()
	seedUser(t, st, "u1", models.StageBindingFocus, 4)
	base := time.Now()
	longContent := strings.Repeat("the same worry again and again ", 10)
	turns := []models.ConversationTurn{
		{ID: "t1", UserID: "u1", ConversationID: "c1", Role: models.RoleUser, Content: "I keep circling the move", Stage: models.StageBindingFocus, CreatedAt: base},
		{ID: "t2", UserID: "u1", ConversationID: "c1", Role: models.RoleAssistant, Content: longContent, Stage: models.StageBindingFocus, CreatedAt: base.Add(time.Second)},
	}
	for _, turn := range turns {
		_ = st.AddTurn(turn)
	}
	a := NewContextAssembler(st)

	first, err := a.BuildSummary(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("BuildSummary failed: %v", err)
	}
	second, err := a.BuildSummary(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("second BuildSummary failed: %v", err)
	}
	if first != second {
		t.Error("expected byte-identical summary with no new turns")
	}
	if !strings.Contains(first, "I keep circling the move") {
		t.Errorf("expected turn excerpt in summary, got %q", first)
	}
	if !strings.Contains(first, "session 4") {
		t.Errorf("expected session count in summary, got %q", first)
	}
	if strings.Contains(first, longContent) {
		t.Error("expected long turn content to be truncated")
	}
	if !strings.Contains(first, string(models.StageBindingFocus)) {
		t.Errorf("expected current stage in summary, got %q", first)
	}
}

func TestBuildSummaryUnknownUserStillWorks(t *testing.T) {
	a := NewContextAssembler(store.NewInMemoryStore())
	summary, err := a.BuildSummary(context.Background(), "brand-new", 5)
	if err != nil {
		t.Fatalf("BuildSummary failed: %v", err)
	}
	if !strings.Contains(summary, string(models.StagePointedOrigin)) {
		t.Errorf("expected default stage for unknown user, got %q", summary)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	long := strings.Repeat("a", 150)
	got := truncate(long, 100)
	if len(got) != 103 {
		t.Errorf("expected 100 bytes plus ellipsis, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// 98 ASCII bytes followed by a three-byte rune straddling the cut.
	long := strings.Repeat("a", 98) + "日本語"
	got := truncate(long, 100)
	if !utf8.ValidString(got) {
		t.Errorf("expected valid UTF-8 after truncation, got %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
	if strings.Contains(strings.TrimSuffix(got, "..."), "�") {
		t.Errorf("expected no replacement characters, got %q", got)
	}
}
