package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenariosMatchGolden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Flow))
		})
	}
}

func TestRunTrace(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/override_default.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, []TraceEvent{
		{Step: 1, Op: "add", Subject: "Dean must select one of Papaya, Rambutan from Fruit Shop", Outcome: "applied"},
		{Step: 2, Op: "add", Subject: "Adam must have same selection as Bobby in Fruit Shop", Outcome: "conflicts_resolved"},
		{Step: 3, Op: "solve", Outcome: "FEASIBLE", Count: 4},
		{Step: 4, Op: "solve", Outcome: "FEASIBLE", Count: 12},
	}, result.Trace)
}

func TestRunIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/custom_lifecycle.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, first.Transcript, second.Transcript)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRunReportsExpectMismatch(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: mismatch
description: expectations that do not hold
flow:
  - add:
      kind: must_select
      participant1: Dean
      shop: Fruit Shop
      items: [Papaya]
    expect:
      outcome: aborted
      removed: 2
  - add:
      kind: cannot_select
      participant1: Eve
      shop: Fruit Shop
      items: [Papaya]
  - solve: {}
    expect:
      error: INVALID_FILTER
assertions:
  - type: solution_count
    count: 54
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, `flow step 1 (add): outcome: expected "aborted", got "applied"`)
	assert.Contains(t, joined, "flow step 1 (add): removed: expected 2, got 0")
	assert.Contains(t, joined, "flow step 2 (add): unexpected error")
	assert.Contains(t, joined, `flow step 3 (solve): expected error containing "INVALID_FILTER", got none`)
	assert.Contains(t, joined, "Assertion failed: solution_count")
	assert.Contains(t, joined, "Expected: 54 solution(s)")
	assert.Contains(t, joined, "Actual: 18 solution(s)")
}

func TestRunExpectFieldNotReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: not_reported
description: a solve step has no removed count
flow:
  - solve: {}
    expect:
      removed: 0
      shadowed: false
assertions:
  - type: constraint_count
    count: 5
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, "flow step 1 (solve): removed: not reported by this step")
	assert.Contains(t, result.Errors, "flow step 1 (solve): shadowed: not reported by this step")
}

func TestRunShadowedAdd(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: shadowed
description: a second record with the same key changes nothing
flow:
  - add:
      kind: cannot_select
      participant1: Adam
      shop: Fruit Shop
      items: [Salak]
    expect:
      shadowed: false
  - add:
      kind: cannot_select
      participant1: Adam
      shop: Fruit Shop
      items: [Papaya]
      description: Adam never eats Papaya
    expect:
      outcome: applied
      shadowed: true
assertions:
  - type: solution_count
    count: 54
  - type: constraint_count
    count: 7
  - type: constraint_present
    description: Adam never eats Papaya
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Transcript, "  => applied rec-7 (shadowed)\n")
}

func TestRunMissingDomain(t *testing.T) {
	scenario := &Scenario{
		Name:        "x",
		Description: "d",
		Domain:      filepath.Join(t.TempDir(), "missing.cue"),
		Flow:        []FlowStep{{Rebuild: true}},
		Assertions:  []Assertion{{Type: AssertInfeasible}},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load domain")
}
