package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/harness"
)

// CodeScenariosFailed is the JSON error code of a run with failing scenarios.
const CodeScenariosFailed = "SCENARIOS_FAILED"

// ScenarioOptions holds flags for the test command.
type ScenarioOptions struct {
	*RootOptions
	Update  bool   // rewrite golden traces from this run
	Pattern string // glob over scenario names
}

// ScenarioOutcome summarizes one scenario run.
type ScenarioOutcome struct {
	Name string `json:"name"`
	Pass bool   `json:"pass"`

	// Steps counts executed steps; Rejected counts those that ended with an
	// engine code, expected or not.
	Steps    int `json:"steps"`
	Rejected int `json:"rejected"`

	// Changes is the length of the change log after the run.
	Changes int `json:"changes"`

	Golden string   `json:"golden,omitempty"` // "matched", "updated" or empty
	Errors []string `json:"errors,omitempty"`
}

// ScenarioReport is the result of a test run.
type ScenarioReport struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

func (r *ScenarioReport) add(o ScenarioOutcome) {
	r.Scenarios = append(r.Scenarios, o)
	r.Total++
	if o.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run reservation scenarios",
		Long: `Run scenario files through the harness.

Each scenario runs against a fresh in-memory database, checking every
step's expected outcome and the final state assertions. When a golden
trace exists at <dir>/golden/<name>.golden the run must reproduce it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, bad pattern)`,
		Example: `  caras test ./scenarios
  caras test ./scenarios --filter "authorize_*"
  caras test ./scenarios --update
  caras test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden traces from this run")
	cmd.Flags().StringVar(&opts.Pattern, "filter", "", "only run scenarios whose name matches this glob")
	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenarioOptions, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	files, err := scenarioFiles(dir, opts.Pattern)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	w := cmd.OutOrStdout()
	text := opts.Format != "json"
	report := ScenarioReport{Scenarios: []ScenarioOutcome{}}
	if len(files) == 0 && text {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, file := range files {
		o, trace := runScenarioFile(cmd, opts, file)
		if text {
			writeOutcome(w, o, trace, opts.Verbose)
		}
		report.add(o)
	}

	if !text {
		if err := writeReportJSON(w, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Scenarios: %d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
		if report.Failed == 0 {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
	}
	return nil
}

// scenarioFiles lists the .yaml and .yml files under dir whose base name
// matches pattern. An empty pattern matches every file.
func scenarioFiles(dir, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenarioFile loads, runs and golden-checks one scenario. A scenario
// passes when every step outcome and assertion held and, unless the run
// rewrites goldens, its trace equals the golden file when one exists.
func runScenarioFile(cmd *cobra.Command, opts *ScenarioOptions, file string) (ScenarioOutcome, []harness.TraceEvent) {
	o := ScenarioOutcome{Name: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))}
	fail := func(format string, args ...any) (ScenarioOutcome, []harness.TraceEvent) {
		o.Pass = false
		o.Errors = append(o.Errors, fmt.Sprintf(format, args...))
		return o, nil
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	o.Name = scenario.Name

	result, err := harness.RunContext(cmd.Context(), scenario)
	if err != nil {
		return fail("execution failed: %v", err)
	}
	o.Pass = result.Pass
	o.Steps = len(result.Trace)
	o.Changes = len(result.Changes)
	o.Errors = append(o.Errors, result.Errors...)
	for _, ev := range result.Trace {
		if ev.Outcome != "ok" {
			o.Rejected++
		}
	}

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		o.Pass = false
		o.Errors = append(o.Errors, fmt.Sprintf("render trace: %v", err))
		return o, result.Trace
	}
	o.Golden, err = syncGolden(goldenFilePath(file), snapshot, opts.Update)
	if err != nil {
		o.Pass = false
		o.Errors = append(o.Errors, err.Error())
	}
	return o, result.Trace
}

// syncGolden writes snapshot to path when update is set, and otherwise
// compares it with the file at path if there is one.
func syncGolden(path string, snapshot []byte, update bool) (string, error) {
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(path, snapshot, 0644); err != nil {
			return "", fmt.Errorf("write golden trace: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read golden trace: %w", err)
	}
	if !bytes.Equal(want, snapshot) {
		return "", fmt.Errorf("trace does not match golden file (run with --update to regenerate)")
	}
	return "matched", nil
}

// goldenFilePath maps scenarios/x.yaml to scenarios/golden/x.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	return filepath.Join(filepath.Dir(scenarioFile), "golden", strings.TrimSuffix(base, filepath.Ext(base))+".golden")
}

// writeOutcome prints one scenario line, its errors and, when verbose, the
// step trace.
func writeOutcome(w io.Writer, o ScenarioOutcome, trace []harness.TraceEvent, verbose bool) {
	mark := "✓"
	if !o.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s: %d steps, %d rejected, %d changes", mark, o.Name, o.Steps, o.Rejected, o.Changes)
	if o.Golden == "updated" {
		fmt.Fprint(w, " (golden updated)")
	}
	fmt.Fprintln(w)

	if verbose {
		for _, ev := range trace {
			fmt.Fprintf(w, "    [%d] %s -> %s", ev.Step, ev.Op, ev.Outcome)
			if ev.Code != "" {
				fmt.Fprintf(w, " code %s", ev.Code)
			}
			if len(ev.Published) > 0 {
				fmt.Fprintf(w, " published %v", ev.Published)
			}
			fmt.Fprintln(w)
		}
	}
	for _, e := range o.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// writeReportJSON emits the report in the CLI envelope. A run with failing
// scenarios carries both the report and a SCENARIOS_FAILED error.
func writeReportJSON(w io.Writer, report ScenarioReport) error {
	resp := CLIResponse{Status: "ok", Data: report}
	if report.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    CodeScenariosFailed,
			Message: fmt.Sprintf("%d of %d scenarios failed", report.Failed, report.Total),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
