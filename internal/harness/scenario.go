package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a playthrough test: a world definition, the triggers to
// feed it, and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is a directory of CUE world definitions. Relative paths are
	// resolved against the scenario file location.
	Specs string `yaml:"specs,omitempty"`

	// Source is an inline CUE world definition, used instead of Specs.
	Source string `yaml:"source,omitempty"`

	// Session is the journal session id. Defaults to "test-session" so
	// traces are identical across runs.
	Session string `yaml:"session,omitempty"`

	// Flow is the ordered list of triggers with optional expectations.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and final world.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultSession is the session id used when a scenario names none.
const DefaultSession = "test-session"

// FlowStep fires one trigger.
type FlowStep struct {
	Trigger string `yaml:"trigger"`

	// Expect checks the resulting turn. If nil, any outcome is accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected turn. Unset fields are not checked.
type ExpectClause struct {
	// Rule is the id of the rule expected to fire.
	Rule string `yaml:"rule,omitempty"`

	// Matched is false to expect the fallback turn.
	Matched *bool `yaml:"matched,omitempty"`

	// Text is the expected narration.
	Text string `yaml:"text,omitempty"`
}

// Assertion validates the final world or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "has_tag", "lacks_tag": entity carries (or lacks) tag
	// - "stat": entity's stat equals value
	// - "link": entity's link points at target
	// - "present", "absent": entity exists (or not)
	// - "rule_fired": rule fired count times, or at least once when count is unset
	// - "rule_order": rules fired in this relative order
	Type string `yaml:"type"`

	Entity string `yaml:"entity,omitempty"`
	Tag    string `yaml:"tag,omitempty"`
	Stat   string `yaml:"stat,omitempty"`
	Value  *int64 `yaml:"value,omitempty"`
	Link   string `yaml:"link,omitempty"`
	Target string `yaml:"target,omitempty"`

	Rule  string   `yaml:"rule,omitempty"`
	Count *int     `yaml:"count,omitempty"`
	Rules []string `yaml:"rules,omitempty"`
}

// Assertion type constants.
const (
	AssertHasTag    = "has_tag"
	AssertLacksTag  = "lacks_tag"
	AssertStat      = "stat"
	AssertLink      = "link"
	AssertPresent   = "present"
	AssertAbsent    = "absent"
	AssertRuleFired = "rule_fired"
	AssertRuleOrder = "rule_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the specs path relative to the scenario BEFORE validation
	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) {
		scenario.Specs = filepath.Join(filepath.Dir(path), scenario.Specs)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Specs == "" && s.Source == "":
		return fmt.Errorf("one of specs or source is required")
	case s.Specs != "" && s.Source != "":
		return fmt.Errorf("specs and source are mutually exclusive")
	}

	if s.Specs != "" {
		info, err := os.Stat(s.Specs)
		if err != nil {
			return fmt.Errorf("specs directory not found: %s", s.Specs)
		}
		if !info.IsDir() {
			return fmt.Errorf("specs must be a directory: %s", s.Specs)
		}
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Trigger == "" {
			return fmt.Errorf("flow[%d]: trigger is required", i)
		}
		if e := step.Expect; e != nil && e.Rule != "" && e.Matched != nil && !*e.Matched {
			return fmt.Errorf("flow[%d].expect: rule contradicts matched: false", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	need := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("assertions[%d]: %s is required for %s", index, field, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertHasTag, AssertLacksTag:
		if err := need(a.Entity != "", "entity"); err != nil {
			return err
		}
		return need(a.Tag != "", "tag")
	case AssertStat:
		if err := need(a.Entity != "", "entity"); err != nil {
			return err
		}
		if err := need(a.Stat != "", "stat"); err != nil {
			return err
		}
		return need(a.Value != nil, "value")
	case AssertLink:
		if err := need(a.Entity != "", "entity"); err != nil {
			return err
		}
		if err := need(a.Link != "", "link"); err != nil {
			return err
		}
		return need(a.Target != "", "target")
	case AssertPresent, AssertAbsent:
		return need(a.Entity != "", "entity")
	case AssertRuleFired:
		if err := need(a.Rule != "", "rule"); err != nil {
			return err
		}
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rule_fired", index)
		}
		return nil
	case AssertRuleOrder:
		return need(len(a.Rules) > 0, "rules")
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
}
