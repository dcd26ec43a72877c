package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario drives a fresh engine through a flow of actions and asserts on
// the resulting trace and final database state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the RFC 3339 wall time the engine clock starts at.
	// Defaults to DefaultNow.
	Now string `yaml:"now,omitempty"`

	// Rules is an optional YAML rules file that replaces the built-in
	// routing table. Relative paths resolve from the scenario file.
	Rules string `yaml:"rules,omitempty"`

	// Setup contains actions run before the main flow to establish state.
	// A failing setup step aborts the run.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the main test flow: actions with expected outcomes.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultNow is the clock start of scenarios that give none.
const DefaultNow = "2024-03-10T21:00:00Z"

// ActionStep represents a single action call.
// Used in Setup sections to establish initial state.
type ActionStep struct {
	// Action names the engine operation (e.g., "ingest", "close_day").
	Action string `yaml:"action"`

	// Args contains the action arguments as a map.
	Args map[string]interface{} `yaml:"args"`
}

// FlowStep represents a step in the main test flow.
type FlowStep struct {
	// Invoke names the engine operation.
	Invoke string `yaml:"invoke"`

	// Args contains the action arguments.
	Args map[string]interface{} `yaml:"args"`

	// Expect specifies the expected outcome.
	// If nil, the step may succeed or fail; only the trace records it.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Case is "ok" or the expected error code (e.g., "VALIDATION_ERROR").
	Case string `yaml:"case"`

	// Result contains expected fields of the JSON result.
	// This is a subset match - only specified fields are validated.
	// If nil, only the case is validated.
	Result map[string]interface{} `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check action appears in trace with args
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check action appears exactly N times
	// - "final_state": Query a table and verify a row or a row count
	Type string `yaml:"type"`

	// Action is the action name (used by trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected action arguments (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Case restricts trace_contains to completions with this output case.
	Case string `yaml:"case,omitempty"`

	// Table is the state table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values of the single matching row
	// (used by final_state). Subset match.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Rows is the expected number of matching rows (used by final_state).
	Rows *int `yaml:"rows,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative rules path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	// Validate required fields
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
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

	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			return fmt.Errorf("now must be an RFC 3339 time: %w", err)
		}
	}

	if s.Rules != "" {
		if _, err := os.Stat(s.Rules); os.IsNotExist(err) {
			return fmt.Errorf("rules file not found: %s", s.Rules)
		}
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	// Validate setup steps (if present)
	for i, step := range s.Setup {
		if step.Action == "" {
			return fmt.Errorf("setup[%d]: action is required", i)
		}
		if !knownAction(step.Action) {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
		if step.Args == nil {
			return fmt.Errorf("setup[%d]: args is required (use empty map if no args)", i)
		}
	}

	// Validate flow steps
	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if !knownAction(step.Invoke) {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		// Validate expect clause if present
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	// Validate assertions
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

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if !stateTables[a.Table] {
			return fmt.Errorf("assertions[%d]: unknown table %q for final_state", index, a.Table)
		}
		if len(a.Expect) == 0 && a.Rows == nil {
			return fmt.Errorf("assertions[%d]: expect or rows is required for final_state", index)
		}
		if a.Rows != nil && *a.Rows < 0 {
			return fmt.Errorf("assertions[%d]: rows must be non-negative for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
