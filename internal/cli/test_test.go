package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenario copies testdata/scenarios/basic.yaml into a fresh directory.
func copyScenario(t *testing.T) string {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("testdata", "scenarios", "basic.yaml"))
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.yaml"), src, 0o644))
	return dir
}

func TestTestCommandPasses(t *testing.T) {
	out, err := execute(t, "", "test", "testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ basic\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandUpdate(t *testing.T) {
	dir := copyScenario(t)

	out, err := execute(t, "", "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ basic (golden updated)")

	got, err := os.ReadFile(filepath.Join(dir, "golden", "basic.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("testdata", "scenarios", "golden", "basic.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	_, err = execute(t, "", "test", dir)
	require.NoError(t, err)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := copyScenario(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "basic.golden"), []byte("stale\n"), 0o644))

	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ basic\n  transcript does not match golden file")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_count
description: "Expects the wrong number of solutions"
flow:
  - solve: {}
assertions:
  - type: solution_count
    count: 53
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_count.yaml"), []byte(scenario), 0o644))

	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_count\n")
	assert.Contains(t, out, "Assertion failed: solution_count")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, "", "test", "testdata/scenarios", "--filter", "override*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingDir(t *testing.T) {
	_, err := execute(t, "", "test", "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandJSON(t *testing.T) {
	out, err := execute(t, "", "test", "testdata/scenarios", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "basic", resp.Data.Scenarios[0].Name)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "c.golden"), goldenFilePath(filepath.Join("a", "b", "c.yaml")))
}
