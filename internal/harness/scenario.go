package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/foodcsp/internal/engine"
	"github.com/roach88/foodcsp/internal/ir"
)

// Scenario is a scripted session: a list of edits and queries against one
// domain, followed by assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Domain is an optional CUE domain file, relative to the scenario file.
	// The embedded default domain is used when empty.
	Domain string `yaml:"domain,omitempty"`

	// Flow is run in order against a fresh session.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final session.
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one session operation. Exactly one of Add, Remove, Rationale,
// Solve and Rebuild is set.
type FlowStep struct {
	Add       *RecordSpec    `yaml:"add,omitempty"`
	Remove    *RemoveSpec    `yaml:"remove,omitempty"`
	Rationale *RationaleSpec `yaml:"rationale,omitempty"`
	Solve     *SolveSpec     `yaml:"solve,omitempty"`
	Rebuild   bool           `yaml:"rebuild,omitempty"`

	// Confirm answers every override prompt raised by an add.
	Confirm bool `yaml:"confirm,omitempty"`

	// Expect checks the step's outcome. Only the fields given are compared.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// RecordSpec describes a constraint record in scenario YAML.
type RecordSpec struct {
	Kind         string   `yaml:"kind"`
	Participant1 string   `yaml:"participant1"`
	Participant2 string   `yaml:"participant2,omitempty"`
	Shop         string   `yaml:"shop"`
	Items        []string `yaml:"items,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Rationale    string   `yaml:"rationale,omitempty"`
}

// Record builds the record for an add step. Shape problems are left for the session's
// validator to report.
func (r RecordSpec) Record() ir.Record {
	rec := ir.Record{
		Kind:         ir.Kind(r.Kind),
		Participant1: r.Participant1,
		Participant2: r.Participant2,
		Shop:         r.Shop,
		Items:        r.Items,
		Description:  r.Description,
		Rationale:    r.Rationale,
	}
	if rec.Description == "" && rec.Kind.Valid() {
		if generated, err := ir.NewRecord(rec.Kind, rec.Participant1, rec.Participant2, rec.Shop, rec.Items); err == nil {
			rec.Description = generated.Description
		}
	}
	return rec
}

// RemoveSpec selects records to remove. Every non-empty field must match.
type RemoveSpec struct {
	ID          string `yaml:"id,omitempty"`
	Description string `yaml:"description,omitempty"`
	Kind        string `yaml:"kind,omitempty"`
	Participant string `yaml:"participant,omitempty"`
}

// Matches reports whether r is selected.
func (s RemoveSpec) Matches(r ir.Record) bool {
	return (s.ID == "" || r.ID == s.ID) &&
		(s.Description == "" || r.Description == s.Description) &&
		(s.Kind == "" || string(r.Kind) == s.Kind) &&
		(s.Participant == "" || r.Participant1 == s.Participant || r.Participant2 == s.Participant)
}

func (s RemoveSpec) empty() bool {
	return s == RemoveSpec{}
}

// String describes the selection for transcripts.
func (s RemoveSpec) String() string {
	var parts []string
	if s.ID != "" {
		parts = append(parts, "id="+s.ID)
	}
	if s.Description != "" {
		parts = append(parts, fmt.Sprintf("description=%q", s.Description))
	}
	if s.Kind != "" {
		parts = append(parts, "kind="+s.Kind)
	}
	if s.Participant != "" {
		parts = append(parts, "participant="+s.Participant)
	}
	return fmt.Sprint(parts)
}

// RationaleSpec replaces the rationale of the record with ID.
type RationaleSpec struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// SolveSpec is one FindSolutions call.
type SolveSpec struct {
	Participants []string           `yaml:"participants,omitempty"`
	Shops        []string           `yaml:"shops,omitempty"`
	Items        *engine.ItemFilter `yaml:"items,omitempty"`
	Where        string             `yaml:"where,omitempty"`

	// Show writes every solution grid into the transcript.
	Show bool `yaml:"show,omitempty"`
}

// Options converts a solve step to session find options.
func (s SolveSpec) Options() engine.FindOptions {
	return engine.FindOptions{
		Display: engine.DisplayFilter{Participants: s.Participants, Shops: s.Shops},
		Items:   s.Items,
		Where:   s.Where,
	}
}

// ExpectClause holds expected step results. Nil fields are not checked.
type ExpectClause struct {
	// Outcome is an add outcome: applied, conflicts_resolved or aborted.
	Outcome string `yaml:"outcome,omitempty"`

	// Error is a substring the step's error must contain, such as a
	// validation code ("E124"). A step without Error must not fail.
	Error string `yaml:"error,omitempty"`

	Conflicts *int  `yaml:"conflicts,omitempty"`
	Removed   *int  `yaml:"removed,omitempty"`
	Protected *int  `yaml:"protected,omitempty"`
	Shadowed  *bool `yaml:"shadowed,omitempty"`

	// Count and Status check a solve step.
	Count  *int   `yaml:"count,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// Assertion validates the final session.
type Assertion struct {
	// Type specifies the assertion type:
	// - "solution_count": the unfiltered solution count equals Count
	// - "infeasible": the final model has no solution
	// - "constraint_count": the store holds Count records
	// - "constraint_present": a record with Description is stored
	// - "constraint_absent": no record with Description is stored
	// - "history_order": journal ops Ops occur in this order
	// - "history_count": journal op Op occurs exactly Count times
	Type string `yaml:"type"`

	Count       int      `yaml:"count,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Op          string   `yaml:"op,omitempty"`
	Ops         []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertSolutionCount     = "solution_count"
	AssertInfeasible        = "infeasible"
	AssertConstraintCount   = "constraint_count"
	AssertConstraintPresent = "constraint_present"
	AssertConstraintAbsent  = "constraint_absent"
	AssertHistoryOrder      = "history_order"
	AssertHistoryCount      = "history_count"
)

// LoadScenario reads and parses a scenario YAML file. A relative Domain is
// resolved against the scenario file's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Domain != "" && !filepath.IsAbs(scenario.Domain) {
		scenario.Domain = filepath.Join(filepath.Dir(path), scenario.Domain)
	}
	if scenario.Domain != "" {
		if _, err := os.Stat(scenario.Domain); err != nil {
			return nil, fmt.Errorf("invalid scenario: domain file not found: %s", scenario.Domain)
		}
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

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

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
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

func validateStep(index int, step *FlowStep) error {
	actions := 0
	if step.Add != nil {
		actions++
	}
	if step.Remove != nil {
		actions++
		if step.Remove.empty() {
			return fmt.Errorf("flow[%d]: remove needs at least one of id, description, kind, participant", index)
		}
	}
	if step.Rationale != nil {
		actions++
		if step.Rationale.ID == "" {
			return fmt.Errorf("flow[%d]: rationale id is required", index)
		}
	}
	if step.Solve != nil {
		actions++
	}
	if step.Rebuild {
		actions++
	}

	if actions != 1 {
		return fmt.Errorf("flow[%d]: exactly one of add, remove, rationale, solve, rebuild is required (got %d)", index, actions)
	}
	if step.Confirm && step.Add == nil {
		return fmt.Errorf("flow[%d]: confirm only applies to add", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSolutionCount, AssertConstraintCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertInfeasible:
	case AssertConstraintPresent, AssertConstraintAbsent:
		if a.Description == "" {
			return fmt.Errorf("assertions[%d]: description is required for %s", index, a.Type)
		}
	case AssertHistoryOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for history_order", index)
		}
	case AssertHistoryCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for history_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
