// Package stage classifies utterances into the fixed set of symbolic
// conversation stages.
//
// Classification evaluates an ordered rule list: the first matching rule
// wins, and an utterance matching no rule leaves the caller's current stage
// unchanged. The rule order is a priority list, not a set; it lives in one
// place so every caller classifies identically.
package stage

import (
	"regexp"

	"github.com/vasa-labs/vasa/internal/models"
)

// rule pairs a compiled pattern with the stage it detects.
type rule struct {
	pattern *regexp.Regexp
	stage   models.Stage
}

// rules is the canonical priority list. Closing language outranks everything
// else, so a farewell that also mentions an origin still classifies as
// terminal; origin cues sit last because openings are the weakest signal.
var rules = []rule{
	{regexp.MustCompile(`(?i)\b(goodbye|farewell|that'?s all( for now)?|we'?re done|nothing (else|more)|talk (to you )?later)\b`), models.StageTerminalField},
	{regexp.MustCompile(`(?i)\b(resolved|behind me|at peace with|made peace|let (it|that|this) go|feels? (finished|complete)|closure)\b`), models.StageCompletion},
	{regexp.MustCompile(`(?i)\b(ready to|i('m| am) going to|i (want|need) to (try|change|start|do)|next step|from now on|commit(ted)? to)\b`), models.StageGestureToward},
	{regexp.MustCompile(`(?i)\b(sit with|hold(ing)? (it|this|that|on to)|not sure yet|let me think|don'?t know what to do|stay(ing)? with it|undecided)\b`), models.StageSuspension},
	{regexp.MustCompile(`(?i)\b(keeps? coming back|can'?t stop thinking|stuck on|fixated|obsess(ed|ing)|over and over|every time i)\b`), models.StageBindingFocus},
	{regexp.MustCompile(`(?i)\b(it (all )?(started|began)|the first time|originally|back when|ever since|because of what happened|where it comes from)\b`), models.StagePointedOrigin},
}

// Classify maps an utterance to exactly one stage. The first rule matching
// the utterance determines the result; when no rule matches, the caller's
// current stage is returned unchanged. Pure function, total over all inputs.
func Classify(utterance string, current models.Stage) models.Stage {
	for _, r := range rules {
		if r.pattern.MatchString(utterance) {
			return r.stage
		}
	}
	return current
}

// RuleCount reports the number of classification rules. Exposed for tests
// that assert priority-order behavior.
func RuleCount() int {
	return len(rules)
}
