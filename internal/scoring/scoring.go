package scoring

import (
	"log"
	"math"
	"sort"

	"github.com/danielpatrickdp/speaking-coach/internal/behavior"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
)

const (
	DefaultFeedbackPass = "Great job!"
	DefaultFeedbackFail = "Please try again."
	NotApplicable       = "No applicable validation fields."
)

// #region strategies

// Strategy is how the set of counted fields is chosen.
type Strategy string

const (
	// ByBehavior counts fields whose behavior kind, or validate_pattern, is
	// in the selector's set.
	ByBehavior Strategy = "by_behavior"
	// ByScoreMap counts every recorded verdict.
	ByScoreMap Strategy = "by_score_map"
	// ByTargetList counts the logic's target_fields.
	ByTargetList Strategy = "by_target_list"
)

type selector struct {
	strategy  Strategy
	kinds     []behavior.Kind
	byPattern bool
}

var aliases = map[lesson.LogicType]selector{
	lesson.LogicPatternMatch:          {strategy: ByBehavior, byPattern: true},
	lesson.LogicYesNoPatternMatching:  {strategy: ByBehavior, byPattern: true},
	lesson.LogicCustomClause:          {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindClauseExpansion}},
	lesson.LogicPronunciationCheck:    {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindPronunciation}},
	lesson.LogicSynonymAntonymCheck:   {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindSynonymAntonym}},
	lesson.LogicMeaningfulResponse:    {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindMeaningfulResponse}},
	lesson.LogicCommandValidation:     {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindCommand}},
	lesson.LogicPlaceDescriptionCheck: {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindPlaceDescription}},
	lesson.LogicPriceCheck:            {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindPriceQuestion}},
	lesson.LogicContextualDialogue:    {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindContextualDialogue}},
	lesson.LogicMindmapCheck:          {strategy: ByBehavior, kinds: []behavior.Kind{behavior.KindMindmapIdeas}},
	lesson.LogicVerbConstructs: {strategy: ByBehavior, kinds: []behavior.Kind{
		behavior.KindModalVerb, behavior.KindFirstConditional, behavior.KindPhrasalVerb,
	}},
	lesson.LogicGrammarConstructs: {strategy: ByBehavior, kinds: []behavior.Kind{
		behavior.KindPassiveVoice, behavior.KindReportedSpeech, behavior.KindDiscourseMarker,
	}},

	lesson.LogicFamilyValidation:    {strategy: ByScoreMap},
	lesson.LogicYesNoOrNegative:     {strategy: ByScoreMap},
	lesson.LogicStressAndIntonation: {strategy: ByScoreMap},

	lesson.LogicCustomSVOBlock:     {strategy: ByTargetList},
	lesson.LogicCustomCommandBlock: {strategy: ByTargetList},
	lesson.LogicCustomMeaningful:   {strategy: ByTargetList},
	lesson.LogicLiteratureAnalysis: {strategy: ByTargetList},
	lesson.LogicDebateAnalysis:     {strategy: ByTargetList},
	lesson.LogicGroupDiscussion:    {strategy: ByTargetList},
}

// StrategyFor returns the canonical strategy behind a logic type.
func StrategyFor(t lesson.LogicType) (Strategy, bool) {
	s, ok := aliases[t]
	return s.strategy, ok
}

// #endregion

// #region result

// Result is the aggregate decision for one module run.
type Result struct {
	Correct    int
	Total      int
	Score      float64 // correct/total in [0,1]; meaningless when !Applicable
	Applicable bool
	Passed     bool // only meaningful when Applicable
	Feedback   string
}

// Failed reports a counted result below the minimum. A result that is not
// applicable never fails.
func (r Result) Failed() bool {
	return r.Applicable && !r.Passed
}

// Percent is the score as reported: x100, two decimals.
func (r Result) Percent() float64 {
	return math.Round(r.Score*100*100) / 100
}

// ReportScore returns Percent, or "N/A" when no field was counted.
func (r Result) ReportScore() any {
	if !r.Applicable {
		return "N/A"
	}
	return r.Percent()
}

// #endregion

// #region aggregate

// Aggregate applies logic to the recorded verdicts. A field with no recorded
// verdict counts as incorrect.
func Aggregate(cfg *lesson.Config, logic *lesson.Logic, scores map[string]bool) Result {
	sel, ok := aliases[logic.Type]
	if !ok {
		log.Printf("[SCORE] unknown logic type %q, nothing counted", logic.Type)
		return notApplicable()
	}

	keys := countedKeys(cfg, logic, sel, scores)
	total := len(keys)
	if total == 0 {
		log.Printf("[SCORE] module=%s type=%s: no applicable fields", cfg.ModuleID, logic.Type)
		return notApplicable()
	}

	correct := 0
	for _, k := range keys {
		if scores[k] {
			correct++
		}
	}

	minimum := total
	if logic.MinimumCorrect != nil {
		minimum = *logic.MinimumCorrect
	}
	score := float64(correct) / float64(total)
	passed := score >= float64(minimum)/float64(total)

	r := Result{Correct: correct, Total: total, Score: score, Applicable: true, Passed: passed}
	if passed {
		r.Feedback = orDefault(logic.FeedbackPass, DefaultFeedbackPass)
	} else {
		r.Feedback = orDefault(logic.FeedbackFail, DefaultFeedbackFail)
	}
	log.Printf("[SCORE] module=%s type=%s strategy=%s correct=%d/%d min=%d passed=%v",
		cfg.ModuleID, logic.Type, sel.strategy, correct, total, minimum, passed)
	return r
}

func countedKeys(cfg *lesson.Config, logic *lesson.Logic, sel selector, scores map[string]bool) []string {
	var keys []string
	switch sel.strategy {
	case ByBehavior:
		for _, f := range cfg.Fields {
			if sel.byPattern {
				if f.ValidatePattern != "" && contains(logic.Patterns, f.ValidatePattern) {
					keys = append(keys, f.Key)
				}
				continue
			}
			if f.Behavior != nil && containsKind(sel.kinds, f.Behavior.Kind()) {
				keys = append(keys, f.Key)
			}
		}
	case ByScoreMap:
		for k := range scores {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	case ByTargetList:
		keys = append(keys, logic.TargetFields...)
	}
	return keys
}

func notApplicable() Result {
	return Result{Feedback: NotApplicable}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsKind(list []behavior.Kind, k behavior.Kind) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}

// #endregion
