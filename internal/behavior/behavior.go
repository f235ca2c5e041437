package behavior

import "strings"

// #region kinds

// Kind is the tag a field config uses to select how an answer is judged.
type Kind string

const (
	KindNone          Kind = ""
	KindExtractValue  Kind = "extract_value"
	KindAcknowledge   Kind = "acknowledge"
	KindPronunciation Kind = "validate_pronunciation"

	KindSVO                      Kind = "validate_svo"
	KindFamilyAnswers            Kind = "validate_family_answers"
	KindYesNoQuestion            Kind = "yesno_question_check"
	KindNegativeSentence         Kind = "negative_sentence_check"
	KindClauseExpansion          Kind = "validate_clause_expansion"
	KindStressPattern            Kind = "validate_stress_pattern"
	KindRisingIntonation         Kind = "validate_rising_intonation"
	KindFallingIntonation        Kind = "validate_falling_intonation"
	KindAdjectiveDescription     Kind = "validate_adjective_description"
	KindModalVerb                Kind = "validate_modal_verb_usage"
	KindFirstConditional         Kind = "validate_first_conditional"
	KindPhrasalVerb              Kind = "validate_phrasal_verb"
	KindCommand                  Kind = "validate_command"
	KindPlaceDescription         Kind = "validate_place_description"
	KindContextualDialogue       Kind = "validate_contextual_dialogue"
	KindSynonymAntonym           Kind = "validate_synonym_antonym"
	KindMeaningfulResponse       Kind = "validate_meaningful_response"
	KindMeaningfulResponseStrict Kind = "validate_meaningful_response_strict"
	KindMindmapIdeas             Kind = "validate_mindmap_ideas"
	KindGrammarCorrection        Kind = "validate_grammar_correction"
	KindPassiveVoice             Kind = "validate_passive_voice"
	KindReportedSpeech           Kind = "validate_reported_speech"
	KindDiscourseMarker          Kind = "validate_discourse_marker"
	KindDebateResponse           Kind = "validate_debate_response"
	KindComparative              Kind = "validate_comparative_expression"
	KindPastTense                Kind = "validate_past_tense_response"
	KindPriceQuestion            Kind = "validate_price_question"
)

// CheckKinds lists every yes/no validator kind.
var CheckKinds = []Kind{
	KindSVO, KindFamilyAnswers, KindYesNoQuestion, KindNegativeSentence,
	KindClauseExpansion, KindStressPattern, KindRisingIntonation, KindFallingIntonation,
	KindAdjectiveDescription, KindModalVerb, KindFirstConditional, KindPhrasalVerb,
	KindCommand, KindPlaceDescription, KindContextualDialogue, KindSynonymAntonym,
	KindMeaningfulResponse, KindMeaningfulResponseStrict, KindMindmapIdeas,
	KindGrammarCorrection, KindPassiveVoice, KindReportedSpeech, KindDiscourseMarker,
	KindDebateResponse, KindComparative, KindPastTense, KindPriceQuestion,
}

// IsCheck reports whether k is a yes/no validator kind.
func IsCheck(k Kind) bool {
	for _, c := range CheckKinds {
		if c == k {
			return true
		}
	}
	return false
}

// #endregion

// #region variants

// Behavior is the closed set of answer-handling variants. Only types in this
// package implement it.
type Behavior interface {
	Kind() Kind
	isBehavior()
}

// Passthrough keeps the raw answer for a tag this build does not know.
type Passthrough struct {
	Tag string
}

// Extract asks the oracle to pull one value out of the answer.
type Extract struct {
	Type        string // "number" enables the digit fast path
	Acknowledge bool
	AckPrompt   string // may contain {value}
}

// Acknowledge keeps the raw answer and produces a short friendly remark.
type Acknowledge struct {
	Prompt string
}

// Pronunciation compares the answer against Expected locally.
type Pronunciation struct {
	Expected string
}

// Check is a yes/no validator judged by the oracle.
type Check struct {
	Check     Kind
	Expected  string
	Context   string
	Word      string
	WordType  string
	Incorrect string
	Topic     string
	MinIdeas  int
	Base      string
}

func (Passthrough) Kind() Kind   { return KindNone }
func (Extract) Kind() Kind       { return KindExtractValue }
func (Acknowledge) Kind() Kind   { return KindAcknowledge }
func (Pronunciation) Kind() Kind { return KindPronunciation }
func (c Check) Kind() Kind       { return c.Check }

func (Passthrough) isBehavior()   {}
func (Extract) isBehavior()       {}
func (Acknowledge) isBehavior()   {}
func (Pronunciation) isBehavior() {}
func (Check) isBehavior()         {}

// #endregion

// #region parse

const (
	DefaultMindmapTopic = "Planning a Birthday Party"
	DefaultMinIdeas     = 3
	DefaultClauseBase   = "I met a girl."
	DefaultWordType     = "synonym"
)

// Params carries the raw per-field parameters a behavior may read.
type Params struct {
	Expected    string
	Context     string
	Word        string
	WordType    string
	Incorrect   string
	ExtractType string
	Acknowledge bool
	AckPrompt   string
	Topic       string
	MinIdeas    int
	Base        string
}

// Parse maps a config tag onto its variant. An empty tag returns nil (plain
// capture). Unknown tags return a Passthrough and ok=false so the caller can
// log a diagnostic.
func Parse(tag string, p Params) (b Behavior, ok bool) {
	k := Kind(strings.TrimSpace(tag))
	switch {
	case k == KindNone:
		return nil, true
	case k == KindExtractValue:
		return Extract{Type: p.ExtractType, Acknowledge: p.Acknowledge, AckPrompt: p.AckPrompt}, true
	case k == KindAcknowledge:
		return Acknowledge{Prompt: p.AckPrompt}, true
	case k == KindPronunciation:
		return Pronunciation{Expected: p.Expected}, true
	case IsCheck(k):
		c := Check{
			Check:     k,
			Expected:  p.Expected,
			Context:   p.Context,
			Word:      p.Word,
			WordType:  p.WordType,
			Incorrect: p.Incorrect,
			Topic:     p.Topic,
			MinIdeas:  p.MinIdeas,
			Base:      p.Base,
		}
		if c.WordType == "" {
			c.WordType = DefaultWordType
		}
		if c.Topic == "" {
			c.Topic = DefaultMindmapTopic
		}
		if c.MinIdeas <= 0 {
			c.MinIdeas = DefaultMinIdeas
		}
		if c.Base == "" {
			c.Base = DefaultClauseBase
		}
		return c, true
	default:
		return Passthrough{Tag: string(k)}, false
	}
}

// #endregion
