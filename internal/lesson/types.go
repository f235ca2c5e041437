package lesson

import (
	"errors"

	"github.com/danielpatrickdp/speaking-coach/internal/behavior"
)

// #region errors

var (
	ErrConfigNotFound  = errors.New("module config not found")
	ErrConfigMalformed = errors.New("module config malformed")
)

// #endregion

// #region defaults

const (
	DefaultDuration        = 5
	DefaultSummaryDuration = 7
	DefaultMaxAttempts     = 2

	// SummaryKey addresses the summary step; no field may use it.
	SummaryKey = "summary"
)

// reservedKeys are the report's fixed result keys. Filled fields share the
// report object with them, so no field may use one.
var reservedKeys = map[string]bool{
	SummaryKey: true, "module": true, "session_id": true, "field_results": true,
	"score": true, "feedback": true, "expected_summary": true,
	"user_summary_spoken": true, "similarity_score": true, "assessment": true,
	"completed_at": true,
}

// ReservedKey reports whether key collides with a report result key.
func ReservedKey(key string) bool { return reservedKeys[key] }

// #endregion

// #region logic-types

// LogicType names a validation_logic aggregation rule.
type LogicType string

const (
	LogicPatternMatch          LogicType = "pattern_match"
	LogicYesNoPatternMatching  LogicType = "yesno_pattern_matching"
	LogicFamilyValidation      LogicType = "family_validation"
	LogicYesNoOrNegative       LogicType = "yesno_or_negative"
	LogicStressAndIntonation   LogicType = "stress_and_intonation"
	LogicCustomSVOBlock        LogicType = "custom_svo_block"
	LogicCustomCommandBlock    LogicType = "custom_command_block"
	LogicCustomMeaningful      LogicType = "custom_meaningful"
	LogicLiteratureAnalysis    LogicType = "custom_literature_analysis"
	LogicDebateAnalysis        LogicType = "custom_debate_analysis"
	LogicGroupDiscussion       LogicType = "group_discussion_turns"
	LogicCustomClause          LogicType = "custom_clause"
	LogicPronunciationCheck    LogicType = "pronunciation_check"
	LogicSynonymAntonymCheck   LogicType = "synonym_antonym_check"
	LogicMeaningfulResponse    LogicType = "meaningful_response"
	LogicVerbConstructs        LogicType = "verb_constructs_validation"
	LogicCommandValidation     LogicType = "command_validation"
	LogicPlaceDescriptionCheck LogicType = "place_description_check"
	LogicPriceCheck            LogicType = "price_check"
	LogicContextualDialogue    LogicType = "contextual_dialogue_check"
	LogicMindmapCheck          LogicType = "mindmap_check"
	LogicGrammarConstructs     LogicType = "grammar_constructs_check"
)

var knownLogicTypes = map[LogicType]bool{
	LogicPatternMatch: true, LogicYesNoPatternMatching: true,
	LogicFamilyValidation: true, LogicYesNoOrNegative: true, LogicStressAndIntonation: true,
	LogicCustomSVOBlock: true, LogicCustomCommandBlock: true, LogicCustomMeaningful: true,
	LogicLiteratureAnalysis: true, LogicDebateAnalysis: true, LogicGroupDiscussion: true,
	LogicCustomClause: true, LogicPronunciationCheck: true, LogicSynonymAntonymCheck: true,
	LogicMeaningfulResponse: true, LogicVerbConstructs: true, LogicCommandValidation: true,
	LogicPlaceDescriptionCheck: true, LogicPriceCheck: true, LogicContextualDialogue: true,
	LogicMindmapCheck: true, LogicGrammarConstructs: true,
}

// KnownLogicType reports whether t is a supported aggregation rule.
func KnownLogicType(t LogicType) bool {
	return knownLogicTypes[t]
}

// #endregion

// #region config

// Config is one loaded, normalized exercise. It is not mutated after Load.
type Config struct {
	ModuleID            string
	Welcome             string
	Closing             string
	Fields              []Field
	SummaryTemplate     *Template
	PostSummaryFeedback map[string]string
	Logic               *Logic
}

// Field is one question of the exercise.
type Field struct {
	Key             string
	Prompt          *Template
	Hint            string
	Duration        int // advisory, seconds
	Behavior        behavior.Behavior
	MaxAttempts     int
	FeedbackPass    string
	FeedbackFail    string
	ValidatePattern string
}

// Logic is the optional end-of-module aggregation rule.
type Logic struct {
	Type           LogicType
	MinimumCorrect *int
	FeedbackPass   string
	FeedbackFail   string
	TargetFields   []string
	Patterns       []string
}

// FieldIndex returns the position of key, or -1.
func (c *Config) FieldIndex(key string) int {
	for i, f := range c.Fields {
		if f.Key == key {
			return i
		}
	}
	return -1
}

// #endregion
