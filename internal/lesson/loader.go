package lesson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/danielpatrickdp/speaking-coach/internal/behavior"
)

// #region document

// patternList accepts "pattern": "x" or "pattern": ["x", "y"].
type patternList []string

func (p *patternList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = patternList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*p = list
	return nil
}

type fieldDoc struct {
	Key             string   `json:"key" validate:"required"`
	Prompt          string   `json:"prompt"`
	PromptPool      []string `json:"prompt_pool"`
	Hint            string   `json:"hint"`
	Duration        int      `json:"duration" validate:"gte=0"`
	LLMBehavior     string   `json:"llm_behavior"`
	MaxAttempts     int      `json:"max_attempts" validate:"gte=0"`
	Expected        string   `json:"expected"`
	Context         string   `json:"context"`
	Word            string   `json:"word"`
	WordType        string   `json:"word_type" validate:"omitempty,oneof=synonym antonym"`
	Incorrect       string   `json:"incorrect"`
	ExtractType     string   `json:"extract_type"`
	Acknowledge     bool     `json:"acknowledge"`
	AckPrompt       string   `json:"ack_prompt"`
	Topic           string   `json:"topic"`
	MinIdeas        int      `json:"min_ideas" validate:"gte=0"`
	Base            string   `json:"base_sentence"`
	ValidatePattern string   `json:"validate_pattern"`
	FeedbackPass    string   `json:"feedback_pass"`
	FeedbackFail    string   `json:"feedback_fail"`
}

type logicDoc struct {
	Type           string      `json:"type" validate:"required"`
	MinimumCorrect *int        `json:"minimum_correct" validate:"omitempty,gte=0"`
	FeedbackPass   string      `json:"feedback_pass"`
	FeedbackFail   string      `json:"feedback_fail"`
	TargetFields   []string    `json:"target_fields"`
	Pattern        patternList `json:"pattern"`
}

type configDoc struct {
	Module              string            `json:"module" validate:"required"`
	Welcome             string            `json:"welcome"`
	Closing             string            `json:"closing"`
	Fields              []fieldDoc        `json:"fields" validate:"required,dive"`
	RandomPromptPool    bool              `json:"random_prompt_pool"`
	DynamicVocab        bool              `json:"dynamic_vocab"`
	SummaryTemplate     string            `json:"summary_template"`
	PostSummaryFeedback map[string]string `json:"post_summary_feedback"`
	ValidationLogic     *logicDoc         `json:"validation_logic"`
}

// #endregion

// #region loader

// Loader reads module documents from a directory tree.
type Loader struct {
	dir      string
	validate *validator.Validate

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewLoader creates a loader rooted at dir. A nil rng is seeded from the clock.
func NewLoader(dir string, rng *rand.Rand) *Loader {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Loader{dir: dir, rng: rng, validate: validator.New()}
}

// Dir returns the loader's root directory.
func (l *Loader) Dir() string { return l.dir }

// Load reads and normalizes the module named id, e.g. "energizer/intro.json".
// The ".json" suffix is optional.
func (l *Loader) Load(id string) (*Config, error) {
	path, err := l.resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
		}
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	cfg, err := l.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	log.Printf("[LESSON] loaded %s: module=%s fields=%d", id, cfg.ModuleID, len(cfg.Fields))
	return cfg, nil
}

func (l *Loader) resolve(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrConfigNotFound)
	}
	if !strings.HasSuffix(id, ".json") {
		id += ".json"
	}
	id = filepath.FromSlash(id)
	if !filepath.IsLocal(id) {
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, id)
	}
	return filepath.Join(l.dir, id), nil
}

// Decode parses a module document and applies load-time normalization.
func (l *Loader) Decode(data []byte) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var doc configDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
	}
	if err := l.validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
	}

	cfg := &Config{
		ModuleID:            doc.Module,
		Welcome:             doc.Welcome,
		Closing:             doc.Closing,
		PostSummaryFeedback: doc.PostSummaryFeedback,
	}

	declared := map[string]bool{}
	for i, fd := range doc.Fields {
		if ReservedKey(fd.Key) {
			return nil, fmt.Errorf("%w: field key %q is reserved", ErrConfigMalformed, fd.Key)
		}
		if declared[fd.Key] {
			return nil, fmt.Errorf("%w: duplicate field key %q", ErrConfigMalformed, fd.Key)
		}

		f, err := l.buildField(doc, fd)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d (%s): %v", ErrConfigMalformed, i, fd.Key, err)
		}
		for _, k := range f.Prompt.Keys() {
			if !declared[k] {
				log.Printf("[LESSON] diagnostic: module=%s field=%s prompt references %q before it is filled",
					doc.Module, fd.Key, k)
			}
		}
		declared[fd.Key] = true
		cfg.Fields = append(cfg.Fields, f)
	}

	if doc.SummaryTemplate != "" {
		t, err := ParseTemplate(doc.SummaryTemplate)
		if err != nil {
			return nil, fmt.Errorf("%w: summary_template: %v", ErrConfigMalformed, err)
		}
		for _, k := range t.Keys() {
			if !declared[k] {
				log.Printf("[LESSON] diagnostic: module=%s summary_template references unknown field %q", doc.Module, k)
			}
		}
		cfg.SummaryTemplate = t
	}

	if ld := doc.ValidationLogic; ld != nil {
		lt := LogicType(ld.Type)
		if !KnownLogicType(lt) {
			return nil, fmt.Errorf("%w: unknown validation_logic type %q", ErrConfigMalformed, ld.Type)
		}
		cfg.Logic = &Logic{
			Type:           lt,
			MinimumCorrect: ld.MinimumCorrect,
			FeedbackPass:   ld.FeedbackPass,
			FeedbackFail:   ld.FeedbackFail,
			TargetFields:   ld.TargetFields,
			Patterns:       ld.Pattern,
		}
	}

	return cfg, nil
}

func (l *Loader) buildField(doc configDoc, fd fieldDoc) (Field, error) {
	prompt, hint, word := fd.Prompt, fd.Hint, fd.Word

	if doc.RandomPromptPool && len(fd.PromptPool) > 0 {
		prompt = fd.PromptPool[l.rng.IntN(len(fd.PromptPool))]
	}
	if doc.DynamicVocab && behavior.Kind(fd.LLMBehavior) == behavior.KindSynonymAntonym {
		wordType := fd.WordType
		if wordType == "" {
			wordType = behavior.DefaultWordType
		}
		word, hint, prompt = drawVocab(l.rng, wordType)
	}
	if strings.TrimSpace(prompt) == "" {
		return Field{}, errors.New("missing prompt")
	}

	tmpl, err := ParseTemplate(prompt)
	if err != nil {
		return Field{}, fmt.Errorf("prompt: %v", err)
	}

	b, ok := behavior.Parse(fd.LLMBehavior, behavior.Params{
		Expected:    fd.Expected,
		Context:     fd.Context,
		Word:        word,
		WordType:    fd.WordType,
		Incorrect:   fd.Incorrect,
		ExtractType: fd.ExtractType,
		Acknowledge: fd.Acknowledge,
		AckPrompt:   fd.AckPrompt,
		Topic:       fd.Topic,
		MinIdeas:    fd.MinIdeas,
		Base:        fd.Base,
	})
	if !ok {
		log.Printf("[LESSON] diagnostic: module=%s field=%s unknown llm_behavior %q, answers pass through",
			doc.Module, fd.Key, fd.LLMBehavior)
	}

	f := Field{
		Key:             fd.Key,
		Prompt:          tmpl,
		Hint:            hint,
		Duration:        fd.Duration,
		Behavior:        b,
		MaxAttempts:     fd.MaxAttempts,
		FeedbackPass:    fd.FeedbackPass,
		FeedbackFail:    fd.FeedbackFail,
		ValidatePattern: fd.ValidatePattern,
	}
	if f.Duration == 0 {
		f.Duration = DefaultDuration
	}
	if f.MaxAttempts == 0 {
		f.MaxAttempts = DefaultMaxAttempts
	}
	return f, nil
}

// #endregion
