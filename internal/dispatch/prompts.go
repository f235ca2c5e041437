package dispatch

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/speaking-coach/internal/behavior"
)

const yesNoSuffix = " Reply with only Yes or No."

type promptFunc func(c behavior.Check, r Request) string

func fixed(s string) promptFunc {
	return func(behavior.Check, Request) string { return s }
}

// checkPrompts holds the oracle instruction for every yes/no validator.
var checkPrompts = map[behavior.Kind]promptFunc{
	behavior.KindSVO: fixed("You are an English grammar teacher. Decide whether the learner's sentence follows the Subject-Verb-Object pattern."),
	behavior.KindFamilyAnswers: func(_ behavior.Check, r Request) string {
		return fmt.Sprintf("You are a language tutor. The learner was asked: %q. The expected answer is: %q. Does the learner's answer answer the question correctly?",
			r.Prompt, r.Field.Hint)
	},
	behavior.KindYesNoQuestion:    fixed("You are an English grammar teacher. Is the learner's sentence a correctly formed yes/no question?"),
	behavior.KindNegativeSentence: fixed("You are an English grammar teacher. Is the learner's sentence a correct negative sentence in English?"),
	behavior.KindClauseExpansion: func(c behavior.Check, _ Request) string {
		return fmt.Sprintf("You are a grammar tutor. The base sentence is %q. Does the learner's response keep the meaning of the base sentence and extend it with a clause introduced by a word like who, where, when or because?",
			c.Base)
	},
	behavior.KindStressPattern: func(c behavior.Check, _ Request) string {
		word := c.Expected
		if word == "" {
			word = c.Word
		}
		return fmt.Sprintf("Does the learner's response say the word %q with correct syllable stress?", word)
	},
	behavior.KindRisingIntonation:  fixed("Does the learner's sentence call for rising intonation, the way a yes/no question does?"),
	behavior.KindFallingIntonation: fixed("Does the learner's sentence call for falling intonation, the way a wh-question or a statement does?"),
	behavior.KindAdjectiveDescription: func(_ behavior.Check, r Request) string {
		return fmt.Sprintf("You are a language teacher. The learner was asked: %q. Expected: %q. Is the learner's answer a contextually appropriate response?",
			r.Prompt, r.Field.Hint)
	},
	behavior.KindModalVerb:        fixed("You are a grammar teacher. Does the learner's sentence use a modal verb such as must, should or might correctly?"),
	behavior.KindFirstConditional: fixed("You are an English grammar teacher. Does the learner's sentence follow the first conditional: If + present simple, will + base verb?"),
	behavior.KindPhrasalVerb:      fixed("You are an English tutor. Does the learner's sentence use a common phrasal verb such as run out of, run into or give up?"),
	behavior.KindCommand:          fixed("You are an English teacher. Is the learner's sentence a clear and grammatical instruction in the imperative form?"),
	behavior.KindPlaceDescription: fixed("You are a language tutor. Does the learner's response describe a place using spatial prepositions such as near, next to or behind?"),
	behavior.KindContextualDialogue: func(c behavior.Check, _ Request) string {
		return fmt.Sprintf("You are running a roleplay practice. The scene is: %q. Does the learner's response fit this scene?", c.Context)
	},
	behavior.KindSynonymAntonym: func(c behavior.Check, _ Request) string {
		return fmt.Sprintf("You are a vocabulary expert. Is the learner's answer a valid %s for the word %q?", c.WordType, c.Word)
	},
	behavior.KindMeaningfulResponse: func(_ behavior.Check, r Request) string {
		return fmt.Sprintf("Does the learner's answer respond meaningfully and appropriately to the question %q?", r.Prompt)
	},
	behavior.KindMeaningfulResponseStrict: func(_ behavior.Check, r Request) string {
		return fmt.Sprintf("You are a language tutor. The learner was asked: %q. Hints: %q. Does the answer respond to the question directly and stay clearly on topic?",
			r.Prompt, r.Field.Hint)
	},
	behavior.KindMindmapIdeas: func(c behavior.Check, _ Request) string {
		return fmt.Sprintf("You are helping a learner build a mind map about %q. Does the response contain at least %d distinct ideas relevant to that topic?",
			c.Topic, c.MinIdeas)
	},
	behavior.KindGrammarCorrection: func(c behavior.Check, _ Request) string {
		return fmt.Sprintf("You are a grammar teacher. The incorrect sentence was %q. Does the learner's answer correct its error?", c.Incorrect)
	},
	behavior.KindPassiveVoice: func(_ behavior.Check, r Request) string {
		return fmt.Sprintf("The active sentence is %q. Does the learner's answer restate it correctly in the passive voice?", r.Prompt)
	},
	behavior.KindReportedSpeech: func(_ behavior.Check, r Request) string {
		return fmt.Sprintf("The direct speech is %q. Does the learner's answer convert it correctly into reported speech?", r.Prompt)
	},
	behavior.KindDiscourseMarker: fixed("Does the learner's sentence join two ideas with a discourse marker such as however, therefore or meanwhile?"),
	behavior.KindDebateResponse:  fixed("Does the learner's response present a coherent opinion or argument together with a justification?"),
	behavior.KindComparative:     fixed("You are a grammar teacher. Does the learner's response use a correct comparative or superlative form, such as better, healthier or the best?"),
	behavior.KindPastTense:       fixed("You are an English grammar teacher. Is the learner's sentence in correct past tense and about a past event or experience?"),
	behavior.KindPriceQuestion:   fixed("You are an English teacher. Is the learner's sentence a correctly formed question asking about the price of something?"),
}

func checkInstruction(c behavior.Check, r Request) (string, bool) {
	fn, ok := checkPrompts[c.Check]
	if !ok {
		return "", false
	}
	return fn(c, r) + yesNoSuffix, true
}

func extractInstruction(key string) string {
	return fmt.Sprintf("You are a silent extraction assistant. Return only the %s found in the learner's input, with no other words.",
		strings.ToUpper(key))
}

func acknowledgeInstruction(key, value, custom string) string {
	var s string
	if custom != "" {
		s = strings.ReplaceAll(custom, "{value}", value)
	} else {
		s = fmt.Sprintf("You are a friendly English-speaking assistant. Reply with one short, warm sentence about the learner's %s, %q.", key, value)
	}
	return s + " Limit your response to 10 words."
}
