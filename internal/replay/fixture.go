package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
)

// #region fixture-types

// Fixture is a scripted session: a module, the oracle's replies in call
// order, the learner's turns and what the run should produce.
type Fixture struct {
	Description   string          `json:"description"`
	Module        string          `json:"module,omitempty"` // id under the modules dir
	Config        json.RawMessage `json:"config,omitempty"` // inline module document
	OracleReplies []string        `json:"oracle_replies"`
	Turns         []FixtureTurn   `json:"turns"`
	Expected      FixtureExpected `json:"expected"`
}

// FixtureTurn is one learner action. Skip abandons the field instead of
// answering it.
type FixtureTurn struct {
	Field  string            `json:"field"`
	Text   string            `json:"text,omitempty"`
	Skip   bool              `json:"skip,omitempty"`
	Expect *FixtureTurnCheck `json:"expect,omitempty"`
}

// FixtureTurnCheck is the expected acknowledgment for a turn. Unset fields
// are not checked.
type FixtureTurnCheck struct {
	Accepted  *bool  `json:"accepted,omitempty"`
	Verdict   string `json:"verdict,omitempty"`
	NextField string `json:"next_field,omitempty"`
	Error     string `json:"error,omitempty"` // "field_mismatch" | "session_closed"
}

// FixtureExpected is the expected end state of the run.
type FixtureExpected struct {
	State        string            `json:"state,omitempty"`
	Assessment   string            `json:"assessment,omitempty"`
	Score        any               `json:"score,omitempty"` // number or "N/A"
	FilledFields map[string]string `json:"filled_fields,omitempty"`
	FieldResults map[string]string `json:"field_results,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Module == "" && len(f.Config) == 0 {
		return nil, fmt.Errorf("fixture %s: needs module or config", path)
	}
	return &f, nil
}

// ModuleConfig resolves the fixture's module, preferring the inline config.
func (f *Fixture) ModuleConfig(loader *lesson.Loader) (*lesson.Config, error) {
	if len(f.Config) > 0 {
		return loader.Decode(f.Config)
	}
	return loader.Load(f.Module)
}

// #endregion fixture-loader
