package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/offset/internal/seed"
)

// Scenario is a scripted sequence of engine operations with expectations.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Setup steps run first and must succeed. Only create is allowed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence. Each step may carry an expect clause.
	Flow []Step `yaml:"flow"`

	// Assertions run against the trace and the final records.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// Action is one of create, retire, get, list.
	Action string `yaml:"action"`

	// As names the record created by this step for later ref lookups.
	As string `yaml:"as,omitempty"`

	// Record is the raw input of a create step. Numbers keep their literal
	// digits.
	Record seed.YAMLRecord `yaml:"record,omitempty"`

	// ID addresses a record directly (retire, get).
	ID string `yaml:"id,omitempty"`

	// Ref addresses a record by the name given with As (retire, get).
	Ref string `yaml:"ref,omitempty"`

	// Payload is attached to the RETIRED event.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Expect validates the step. Nil means the step must not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected result of a step. Empty fields are not checked.
type Expect struct {
	// Outcome is created or idempotent (create only).
	Outcome string `yaml:"outcome,omitempty"`

	// Error is the expected domain error code, e.g. DATA_CONFLICT.
	Error string `yaml:"error,omitempty"`

	// Status is the record status after the step.
	Status string `yaml:"status,omitempty"`

	// Count is the number of records returned (list only).
	Count *int `yaml:"count,omitempty"`
}

// Step actions.
const (
	ActionCreate = "create"
	ActionRetire = "retire"
	ActionGet    = "get"
	ActionList   = "list"
)

// Assertion validates the trace or the final records.
type Assertion struct {
	// Type is one of record_status, event_order, record_count, trace_count.
	Type string `yaml:"type"`

	// ID or Ref selects the record (record_status, event_order).
	ID  string `yaml:"id,omitempty"`
	Ref string `yaml:"ref,omitempty"`

	// Status is the expected record status (record_status).
	Status string `yaml:"status,omitempty"`

	// Events is the expected event type order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Action, Outcome and Error filter trace entries (trace_count).
	Action  string `yaml:"action,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Error   string `yaml:"error,omitempty"`

	// Count is the expected number (record_count, trace_count).
	Count int `yaml:"count"`
}

// Assertion types.
const (
	AssertRecordStatus = "record_status"
	AssertEventOrder   = "event_order"
	AssertRecordCount  = "record_count"
	AssertTraceCount   = "trace_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as load errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and step shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	names := make(map[string]bool)
	for i, step := range s.Setup {
		if step.Action != ActionCreate {
			return fmt.Errorf("setup[%d]: only create is allowed, got %q", i, step.Action)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step, names); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step, names); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, names); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks one step and records its As name. Refs must name an
// earlier create step.
func validateStep(where string, step Step, names map[string]bool) error {
	switch step.Action {
	case ActionCreate:
		if step.Record == nil {
			return fmt.Errorf("%s: record is required for create", where)
		}
		if step.As != "" {
			if names[step.As] {
				return fmt.Errorf("%s: duplicate name %q", where, step.As)
			}
			names[step.As] = true
		}
	case ActionRetire, ActionGet:
		if err := validateTarget(where, step.ID, step.Ref, names); err != nil {
			return err
		}
	case ActionList:
	case "":
		return fmt.Errorf("%s: action is required", where)
	default:
		return fmt.Errorf("%s: unknown action %q", where, step.Action)
	}

	if step.Action != ActionCreate && step.As != "" {
		return fmt.Errorf("%s: as is only valid on create", where)
	}
	if step.Payload != nil && step.Action != ActionRetire {
		return fmt.Errorf("%s: payload is only valid on retire", where)
	}
	if e := step.Expect; e != nil {
		if e.Outcome != "" && step.Action != ActionCreate {
			return fmt.Errorf("%s.expect: outcome is only valid on create", where)
		}
		if e.Count != nil && step.Action != ActionList {
			return fmt.Errorf("%s.expect: count is only valid on list", where)
		}
		if e.Error != "" && (e.Outcome != "" || e.Status != "") {
			return fmt.Errorf("%s.expect: error excludes outcome and status", where)
		}
	}
	return nil
}

func validateTarget(where, id, ref string, names map[string]bool) error {
	switch {
	case id == "" && ref == "":
		return fmt.Errorf("%s: id or ref is required", where)
	case id != "" && ref != "":
		return fmt.Errorf("%s: id and ref are mutually exclusive", where)
	case ref != "" && !names[ref]:
		return fmt.Errorf("%s: unknown ref %q", where, ref)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, names map[string]bool) error {
	where := fmt.Sprintf("assertions[%d]", index)
	switch a.Type {
	case AssertRecordStatus:
		if a.Status == "" {
			return fmt.Errorf("%s: status is required for record_status", where)
		}
		return validateTarget(where, a.ID, a.Ref, names)
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("%s: events list is required for event_order", where)
		}
		return validateTarget(where, a.ID, a.Ref, names)
	case AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative", where)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("%s: action is required for trace_count", where)
		}
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative", where)
		}
	case "":
		return fmt.Errorf("%s: type is required", where)
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}
	return nil
}
