package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/calcsync/internal/remote"
)

// Scenario defines an end-to-end calculation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Template is a CUE file or directory declaring the template.
	Template string `yaml:"template"`

	// TemplateName picks one template when Template declares several.
	TemplateName string `yaml:"template_name,omitempty"`

	// Catalog is the YAML catalog seeded into the fresh store.
	Catalog string `yaml:"catalog"`

	// ItemName is sent with created and updated items.
	ItemName string `yaml:"item_name,omitempty"`

	// Setup creates items before the calculation begins. Setup calls are
	// not traced.
	Setup []SetupItem `yaml:"setup,omitempty"`

	// Steps drive the calculation.
	Steps []Step `yaml:"steps"`

	// Assertions validate the complete trace and the final database.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SetupItem is a pre-existing remote item.
type SetupItem struct {
	// Key is the drill selection as ordered "path=value" entries.
	Key      []string          `yaml:"key"`
	Values   map[string]string `yaml:"values,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
	Name     string            `yaml:"name,omitempty"`
}

// Pairs parses Key into an ordered selection.
func (s SetupItem) Pairs() ([]remote.Pair, error) {
	pairs := make([]remote.Pair, 0, len(s.Key))
	for _, kv := range s.Key {
		path, value, ok := strings.Cut(kv, "=")
		if !ok || path == "" || value == "" {
			return nil, fmt.Errorf("key entry %q is not path=value", kv)
		}
		pairs = append(pairs, remote.Pair{Path: path, Value: value})
	}
	return pairs, nil
}

// Step actions.
const (
	ActionChoose    = "choose"
	ActionTryChoose = "try_choose"
	ActionValidate  = "validate"
	ActionCalculate = "calculate"
	ActionReset     = "reset"
	ActionDelete    = "delete"
	ActionBind      = "bind"
	ActionFail      = "fail"
	ActionHeal      = "heal"
)

// Step is one operation on the calculation.
type Step struct {
	// Action is one of the Action constants.
	Action string `yaml:"action"`

	// Values is the selection for choose and try_choose.
	Values map[string]string `yaml:"values,omitempty"`

	// Item is the setup index for bind.
	Item int `yaml:"item,omitempty"`

	// Op is the remote operation for fail.
	Op string `yaml:"op,omitempty"`

	// Times limits a fail to the next N calls; 0 fails until heal.
	Times int `yaml:"times,omitempty"`

	// Expect is checked after the step. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the calculation after a step. Only the given parts are
// checked.
type Expect struct {
	// Error is a substring of the step's error. Empty means no error.
	Error string `yaml:"error,omitempty"`

	// Accepted is the try_choose result.
	Accepted *bool `yaml:"accepted,omitempty"`

	State     string `yaml:"state,omitempty"`
	Satisfied *bool  `yaml:"satisfied,omitempty"`
	Bound     *bool  `yaml:"bound,omitempty"`

	// Values maps labels to values; "" expects the field unset.
	Values map[string]string `yaml:"values,omitempty"`

	// Invalid maps labels to a substring of their invalidity message.
	Invalid map[string]string `yaml:"invalid,omitempty"`

	// Calls maps remote operations to how often this step made them.
	Calls map[string]int `yaml:"calls,omitempty"`
}

// Assertion validates the trace or the final database.
type Assertion struct {
	// Type specifies the assertion type:
	// - "call_contains": a call of Op with Args (subset match)
	// - "call_order": Ops appear in order
	// - "call_count": Op appears exactly Count times
	// - "final_value": field Label ends with Value
	// - "final_state": a row of Table matching Where has Expect
	Type string `yaml:"type"`

	Op    string         `yaml:"op,omitempty"`
	Args  map[string]any `yaml:"args,omitempty"`
	Ops   []string       `yaml:"ops,omitempty"`
	Count int            `yaml:"count,omitempty"`

	Label string `yaml:"label,omitempty"`
	Value string `yaml:"value,omitempty"`

	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCallContains = "call_contains"
	AssertCallOrder    = "call_order"
	AssertCallCount    = "call_count"
	AssertFinalValue   = "final_value"
	AssertFinalState   = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Template and catalog
// paths are resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving template and catalog paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve paths relative to base path BEFORE validation
	scenario.Template = resolve(basePath, scenario.Template)
	scenario.Catalog = resolve(basePath, scenario.Catalog)

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	for _, p := range []string{scenario.Template, scenario.Catalog} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: file not found: %s", p)
		}
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Template == "" {
		return fmt.Errorf("template is required")
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, item := range s.Setup {
		if len(item.Key) == 0 {
			return fmt.Errorf("setup[%d]: key is required", i)
		}
		if _, err := item.Pairs(); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, len(s.Setup)); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, setupItems int) error {
	switch step.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionChoose, ActionTryChoose:
		if len(step.Values) == 0 {
			return fmt.Errorf("steps[%d]: values are required for %s", index, step.Action)
		}
	case ActionBind:
		if step.Item < 0 || step.Item >= setupItems {
			return fmt.Errorf("steps[%d]: item %d is not a setup item", index, step.Item)
		}
	case ActionFail:
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required for fail", index)
		}
		if step.Times < 0 {
			return fmt.Errorf("steps[%d]: times must be non-negative", index)
		}
	case ActionValidate, ActionCalculate, ActionReset, ActionDelete, ActionHeal:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}
	if step.Expect != nil && step.Expect.Accepted != nil && step.Action != ActionTryChoose {
		return fmt.Errorf("steps[%d].expect: accepted only applies to try_choose", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCallContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for call_contains", index)
		}
	case AssertCallOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for call_order", index)
		}
	case AssertCallCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for call_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertFinalValue:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for final_value", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
