package cli

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/foodcsp/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scripted session scenarios",
		Long: `Run YAML scenarios against fresh sessions.

Each scenario applies its flow of edits and queries, then checks its
assertions. When <scenarios-dir>/golden/<name>.golden exists, the session
transcript must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  foodcsp test ./scenarios
  foodcsp test ./scenarios --filter "override*"
  foodcsp test ./scenarios --update
  foodcsp test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return formatter.Fail("run scenarios", &LoadError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("scenarios directory not found: %s", scenariosDir),
		})
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return formatter.Fail("find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, file := range scenarioFiles {
		res := runScenario(file, opts, cmd)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	formatter.VerboseLog("ran %d scenario(s) from %s", result.Total, scenariosDir)

	if result.Failed > 0 && opts.Format == "json" {
		_ = formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    "E_TEST_FAILED",
				Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
			},
		})
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	err = formatter.Render(result, func(w io.Writer) error {
		return writeTestSummary(w, result)
	})
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles walks dir for .yaml and .yml files whose base name
// matches filter, in lexical order.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func writeTestSummary(w io.Writer, result TestResult) error {
	if result.Total == 0 {
		_, err := fmt.Fprintln(w, "No scenarios found.")
		return err
	}
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
	return nil
}

// runScenario executes a single scenario and returns the result. Text
// output reports each scenario as it finishes.
func runScenario(scenarioFile string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	res := checkScenario(scenarioFile, opts, cmd)
	if opts.Format == "json" {
		return res
	}

	w := cmd.OutOrStdout()
	switch {
	case res.Pass && opts.Update:
		fmt.Fprintf(w, "✓ %s (golden updated)\n", res.Name)
	case res.Pass:
		fmt.Fprintf(w, "✓ %s\n", res.Name)
	default:
		fmt.Fprintf(w, "✗ %s\n", res.Name)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return res
}

func checkScenario(scenarioFile string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	failed := func(name string, errs ...string) ScenarioResult {
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return failed(filepath.Base(scenarioFile), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.RunContext(cmd.Context(), scenario)
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	if opts.Update {
		if err := updateGoldenFile(result, scenarioFile); err != nil {
			return failed(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		return ScenarioResult{Name: scenario.Name, Pass: true}
	}

	// Without a golden file only the assertions decide.
	goldenPath := goldenFilePath(scenarioFile)
	if _, err := os.Stat(goldenPath); err == nil {
		match, err := compareWithGolden(result, goldenPath)
		if err != nil {
			return failed(scenario.Name, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			return failed(scenario.Name, "transcript does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		return failed(scenario.Name, result.Errors...)
	}
	return ScenarioResult{Name: scenario.Name, Pass: true}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// updateGoldenFile writes the current transcript as the golden file.
func updateGoldenFile(result *harness.Result, scenarioFile string) error {
	goldenPath := goldenFilePath(scenarioFile)

	// Ensure golden directory exists
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}

	if err := os.WriteFile(goldenPath, []byte(result.Transcript), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the result transcript against the golden file.
func compareWithGolden(result *harness.Result, goldenPath string) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return string(goldenData) == result.Transcript, nil
}
