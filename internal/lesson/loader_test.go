package lesson

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/speaking-coach/internal/behavior"
)

func writeModule(t *testing.T, dir, name, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func testLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	return NewLoader(dir, rand.New(rand.NewPCG(1, 2))), dir
}

const introDoc = `{
  "module": "introduction",
  "welcome": "Welcome!",
  "fields": [
    {"key": "name", "prompt": "What is your name?", "llm_behavior": "extract_value"},
    {"key": "city", "prompt": "Where are you from, {name}?", "hint": "a city", "duration": 6}
  ],
  "summary_template": "My name is {name}. I am from {city}.",
  "post_summary_feedback": {"PASS": "Excellent!"},
  "validation_logic": {"type": "custom_meaningful", "target_fields": ["name", "city"], "minimum_correct": 1}
}`

func TestLoadIntroduction(t *testing.T) {
	l, dir := testLoader(t)
	writeModule(t, dir, "energizer/intro.json", introDoc)

	cfg, err := l.Load("energizer/intro")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModuleID != "introduction" {
		t.Errorf("ModuleID = %q", cfg.ModuleID)
	}
	if len(cfg.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(cfg.Fields))
	}
	name := cfg.Fields[0]
	if _, ok := name.Behavior.(behavior.Extract); !ok {
		t.Errorf("name behavior = %T", name.Behavior)
	}
	if name.Duration != DefaultDuration || name.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("defaults not applied: %+v", name)
	}
	city := cfg.Fields[1]
	if city.Behavior != nil {
		t.Errorf("city should be plain capture, got %T", city.Behavior)
	}
	if city.Duration != 6 || city.Hint != "a city" {
		t.Errorf("city = %+v", city)
	}
	if cfg.SummaryTemplate == nil || len(cfg.SummaryTemplate.Keys()) != 2 {
		t.Fatalf("summary template not parsed")
	}
	if cfg.Logic == nil || cfg.Logic.Type != LogicCustomMeaningful || *cfg.Logic.MinimumCorrect != 1 {
		t.Fatalf("logic = %+v", cfg.Logic)
	}
}

func TestLoadNotFound(t *testing.T) {
	l, _ := testLoader(t)
	for _, id := range []string{"energizer/missing.json", "../etc/passwd", ""} {
		_, err := l.Load(id)
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("%q: expected ErrConfigNotFound, got %v", id, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	l, _ := testLoader(t)
	cases := map[string]string{
		"bad json":      `{"module": `,
		"no module":     `{"fields": [{"key": "a", "prompt": "p"}]}`,
		"no fields":     `{"module": "m"}`,
		"no key":        `{"module": "m", "fields": [{"prompt": "p"}]}`,
		"no prompt":     `{"module": "m", "fields": [{"key": "a"}]}`,
		"duplicate key": `{"module": "m", "fields": [{"key": "a", "prompt": "p"}, {"key": "a", "prompt": "q"}]}`,
		"reserved key":  `{"module": "m", "fields": [{"key": "summary", "prompt": "p"}]}`,
		"report key":    `{"module": "m", "fields": [{"key": "score", "prompt": "p"}]}`,
		"unknown logic": `{"module": "m", "fields": [], "validation_logic": {"type": "vibes"}}`,
		"bad word type": `{"module": "m", "fields": [{"key": "a", "prompt": "p", "word_type": "homonym"}]}`,
		"bad template":  `{"module": "m", "fields": [{"key": "a", "prompt": "p {"}]}`,
	}
	for name, doc := range cases {
		_, err := l.Decode([]byte(doc))
		if !errors.Is(err, ErrConfigMalformed) {
			t.Errorf("%s: expected ErrConfigMalformed, got %v", name, err)
		}
	}
}

func TestDecodeEmptyFieldsIsValid(t *testing.T) {
	l, _ := testLoader(t)
	cfg, err := l.Decode([]byte(`{"module": "m", "fields": []}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(cfg.Fields) != 0 {
		t.Fatalf("expected no fields")
	}
}

func TestDecodeUnknownBehaviorPassesThrough(t *testing.T) {
	l, _ := testLoader(t)
	cfg, err := l.Decode([]byte(`{"module": "m", "fields": [{"key": "a", "prompt": "p", "llm_behavior": "validate_haiku"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := cfg.Fields[0].Behavior.(behavior.Passthrough); !ok {
		t.Fatalf("expected Passthrough, got %T", cfg.Fields[0].Behavior)
	}
}

func TestDecodePatternStringOrList(t *testing.T) {
	l, _ := testLoader(t)
	one, err := l.Decode([]byte(`{"module": "m", "fields": [], "validation_logic": {"type": "pattern_match", "pattern": "svo"}}`))
	if err != nil {
		t.Fatalf("Decode string: %v", err)
	}
	if len(one.Logic.Patterns) != 1 || one.Logic.Patterns[0] != "svo" {
		t.Errorf("patterns = %v", one.Logic.Patterns)
	}
	many, err := l.Decode([]byte(`{"module": "m", "fields": [], "validation_logic": {"type": "pattern_match", "pattern": ["a", "b"]}}`))
	if err != nil {
		t.Fatalf("Decode list: %v", err)
	}
	if len(many.Logic.Patterns) != 2 {
		t.Errorf("patterns = %v", many.Logic.Patterns)
	}
}

func TestRandomPromptPool(t *testing.T) {
	l, _ := testLoader(t)
	doc := `{"module": "m", "random_prompt_pool": true, "fields": [
		{"key": "a", "prompt_pool": ["one?", "two?", "three?"]}
	]}`
	cfg, err := l.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := cfg.Fields[0].Prompt.Raw()
	if got != "one?" && got != "two?" && got != "three?" {
		t.Fatalf("prompt %q not drawn from pool", got)
	}
}

func TestDynamicVocab(t *testing.T) {
	l, _ := testLoader(t)
	doc := `{"module": "m", "dynamic_vocab": true, "fields": [
		{"key": "syn", "llm_behavior": "validate_synonym_antonym"},
		{"key": "ant", "llm_behavior": "validate_synonym_antonym", "word_type": "antonym"}
	]}`
	cfg, err := l.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	syn := cfg.Fields[0].Behavior.(behavior.Check)
	if _, ok := synonymPool[syn.Word]; !ok {
		t.Errorf("synonym word %q not in pool", syn.Word)
	}
	if cfg.Fields[0].Hint != synonymPool[syn.Word] {
		t.Errorf("hint = %q", cfg.Fields[0].Hint)
	}
	if !strings.HasPrefix(cfg.Fields[0].Prompt.Raw(), "Give a synonym for '") {
		t.Errorf("prompt = %q", cfg.Fields[0].Prompt.Raw())
	}

	ant := cfg.Fields[1].Behavior.(behavior.Check)
	if _, ok := antonymPool[ant.Word]; !ok {
		t.Errorf("antonym word %q not in pool", ant.Word)
	}
	if ant.WordType != "antonym" {
		t.Errorf("word type = %q", ant.WordType)
	}
}

func TestSeededLoadsAreReproducible(t *testing.T) {
	doc := []byte(`{"module": "m", "dynamic_vocab": true, "fields": [{"key": "w", "llm_behavior": "validate_synonym_antonym"}]}`)
	a, err := NewLoader("", rand.New(rand.NewPCG(7, 7))).Decode(doc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b, err := NewLoader("", rand.New(rand.NewPCG(7, 7))).Decode(doc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if a.Fields[0].Prompt.Raw() != b.Fields[0].Prompt.Raw() {
		t.Fatalf("same seed gave %q and %q", a.Fields[0].Prompt.Raw(), b.Fields[0].Prompt.Raw())
	}
}

func TestDecodeRejectsReportKeys(t *testing.T) {
	l, _ := testLoader(t)
	for _, key := range []string{"score", "assessment", "feedback", "module", "similarity_score", "field_results"} {
		doc := `{"module": "m", "fields": [{"key": "` + key + `", "prompt": "p"}]}`
		_, err := l.Decode([]byte(doc))
		if !errors.Is(err, ErrConfigMalformed) {
			t.Errorf("key %q: expected ErrConfigMalformed, got %v", key, err)
		}
	}
	if _, err := l.Decode([]byte(`{"module": "m", "fields": [{"key": "scores", "prompt": "p"}]}`)); err != nil {
		t.Errorf("near miss should load: %v", err)
	}
}
