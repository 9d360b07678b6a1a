package stage

import (
	"testing"

	"github.com/vasa-labs/vasa/internal/models"
)

func TestClassifyNoMatchReturnsCurrent(t *testing.T) {
	utterances := []string{
		"",
		"the weather is nice today",
		"please pass the salt",
		"hmm",
	}
	for _, u := range utterances {
		for _, current := range models.AllStages {
			if got := Classify(u, current); got != current {
				t.Errorf("Classify(%q, %q) = %q, expected identity on no-match", u, current, got)
			}
		}
	}
}

func TestClassifyDetectsEachStage(t *testing.T) {
	cases := []struct {
		utterance string
		want      models.Stage
	}{
		{"it all started when I changed jobs", models.StagePointedOrigin},
		{"I can't stop thinking about that conversation", models.StageBindingFocus},
		{"I just need to sit with this for a while", models.StageSuspension},
		{"I'm ready to try something different", models.StageGestureToward},
		{"honestly it feels finished now", models.StageCompletion},
		{"that's all for now, goodbye", models.StageTerminalField},
	}
	for _, tc := range cases {
		if got := Classify(tc.utterance, models.StagePointedOrigin); got != tc.want {
			t.Errorf("Classify(%q) = %q, expected %q", tc.utterance, got, tc.want)
		}
	}
}

func TestClassifyPriorityOrderDeterminism(t *testing.T) {
	// Matches both the terminal rule ("goodbye") and the origin rule
	// ("it started"); the earlier rule must win.
	u := "it started years ago but goodbye for now"
	if got := Classify(u, models.StageSuspension); got != models.StageTerminalField {
		t.Errorf("expected earlier rule (terminal_field) to win, got %q", got)
	}

	// Matches completion ("let it go") and gesture ("ready to"); completion
	// sits earlier in the list.
	u = "I'm ready to finally let it go"
	if got := Classify(u, models.StageSuspension); got != models.StageCompletion {
		t.Errorf("expected earlier rule (completion) to win, got %q", got)
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	if got := Classify("GOODBYE", models.StagePointedOrigin); got != models.StageTerminalField {
		t.Errorf("expected case-insensitive match, got %q", got)
	}
}

func TestClassifyAlwaysReturnsValidStage(t *testing.T) {
	utterances := []string{
		"it started back when we moved",
		"random words with no signal",
		"goodbye",
	}
	for _, u := range utterances {
		got := Classify(u, models.StageSuspension)
		if !models.IsValidStage(got) {
			t.Errorf("Classify(%q) returned invalid stage %q", u, got)
		}
	}
}

func TestRuleCountCoversAllStages(t *testing.T) {
	if RuleCount() != len(models.AllStages) {
		t.Errorf("expected one rule per stage, got %d rules for %d stages", RuleCount(), len(models.AllStages))
	}
}
