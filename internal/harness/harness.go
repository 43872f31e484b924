package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/715d/golit/internal/runner"
	"github.com/715d/golit/pkg/lit"
	"github.com/715d/golit/pkg/suite"
)

const defaultWorkers = 2

// TestHarness manages test execution.
type TestHarness struct {
	// root is the directory the suites are extracted into.
	root string
}

// NewHarness creates a new test harness extracting suites below root.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// Run executes a test case with all its run configurations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()
	require.NotEmpty(t, tc.RunConfigurations, "test case has no run configurations")

	var results []ConfigurationResult
	var allSuccess = true

	for i, cfg := range tc.RunConfigurations {
		cfgResult := h.runConfiguration(t, tc, i, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}

	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", len(tc.RunConfigurations))
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n  ")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, len(tc.RunConfigurations), strings.Join(msgs, "\n"))
	}

	return &TestResult{
		TestCase:             tc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration extracts a fresh copy of the suite and runs it once.
func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, idx int, cfg RunConfiguration) *ConfigurationResult {
	t.Helper()

	dir := filepath.Join(h.root, tc.Name, fmt.Sprintf("run%d", idx))
	require.NoError(t, Extract(tc, dir))

	tests, err := runSuite(t.Context(), dir, cfg)
	if err != nil {
		for _, expectedErr := range cfg.ExpectedErrors {
			if strings.Contains(err.Error(), expectedErr) {
				return &ConfigurationResult{
					Configuration: cfg,
					Success:       true,
					Message:       fmt.Sprintf("Got expected error: %v", err),
				}
			}
		}
		require.NoError(t, err)
	}
	if len(cfg.ExpectedErrors) > 0 {
		return &ConfigurationResult{
			Configuration: cfg,
			Tests:         tests,
			Message:       "Expected an error, run succeeded",
			Details:       cfg.ExpectedErrors,
		}
	}
	return validateConfigurationResults(cfg, tests)
}

// runSuite discovers, selects and runs the tests below dir the way the lit
// command does.
func runSuite(ctx context.Context, dir string, cfg RunConfiguration) ([]*lit.Test, error) {
	paths := cfg.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	inputs := make([]string, len(paths))
	for i, p := range paths {
		inputs[i] = filepath.Join(dir, filepath.FromSlash(p))
	}

	tests, err := suite.NewDiscoverer(suite.Options{Params: cfg.Params}).Discover(ctx, inputs)
	if err != nil {
		return nil, err
	}
	lit.ApplyXFail(tests, lit.ParseNameList(cfg.XFail), lit.ParseNameList(cfg.XFailNot))

	var sel runner.Selection
	if cfg.Filter != "" {
		if sel.Filter, err = regexp.Compile(cfg.Filter); err != nil {
			return nil, err
		}
	}
	if cfg.FilterOut != "" {
		if sel.FilterOut, err = regexp.Compile(cfg.FilterOut); err != nil {
			return nil, err
		}
	}
	selected, err := runner.Select(tests, sel)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	err = runner.Run(ctx, selected, runner.Options{
		Workers:     workers,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxFailures: cfg.MaxFailures,
	})
	return tests, err
}

// ConfigurationResult represents the result of running a single run configuration.
type ConfigurationResult struct {
	// Configuration is the run configuration that was run.
	Configuration RunConfiguration

	// Tests are all discovered tests with their results.
	Tests []*lit.Test

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this configuration.
	Details []string
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// ConfigurationResults contains results for each run configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if the test passed (all configurations passed)
	Success bool

	// Message provides a summary of the result.
	Message string
}

// validateConfigurationResults compares actual results with expected for a specific run configuration
func validateConfigurationResults(cfg RunConfiguration, tests []*lit.Test) *ConfigurationResult {
	cfgResult := ConfigurationResult{
		Configuration: cfg,
		Tests:         tests,
	}

	if len(cfg.ExpectedResults) == 0 {
		cfgResult.Message = "Invalid expected.yaml: no expected_results"
		return &cfgResult
	}

	actual := make(map[string]lit.ResultCode, len(tests))
	byName := make(map[string]*lit.Test, len(tests))
	for _, t := range tests {
		actual[t.FullName()] = t.Result.Code
		byName[t.FullName()] = t
	}

	var details []string
	if diff := cmp.Diff(cfg.ExpectedResults, actual); diff != "" {
		details = append(details, "Result codes mismatch (-want +got):\n"+diff)
		var names []string
		for name, code := range actual {
			if want, ok := cfg.ExpectedResults[name]; ok && want != code && code.IsFailure() {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			details = append(details, fmt.Sprintf("Output of %s:\n%s", name, byName[name].Result.Output))
		}
	}

	var outputNames []string
	for name := range cfg.ExpectedOutput {
		outputNames = append(outputNames, name)
	}
	sort.Strings(outputNames)
	for _, name := range outputNames {
		want := cfg.ExpectedOutput[name]
		t, ok := byName[name]
		switch {
		case !ok:
			details = append(details, fmt.Sprintf("No test named %s to check output of", name))
		case !strings.Contains(t.Result.Output, want):
			details = append(details, fmt.Sprintf("Output of %s does not contain %q:\n%s", name, want, t.Result.Output))
		}
	}

	cfgResult.Success = len(details) == 0
	cfgResult.Details = details
	if cfgResult.Success {
		cfgResult.Message = fmt.Sprintf("All %d expected results found", len(cfg.ExpectedResults))
	} else {
		cfgResult.Message = fmt.Sprintf("Test failed: %d checks did not match", len(details))
	}
	return &cfgResult
}
