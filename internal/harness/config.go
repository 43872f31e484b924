// Package harness provides test harness infrastructure for running complete
// lit suites packed in txtar archives and checking their results.
package harness

import "github.com/715d/golit/pkg/lit"

// RunConfiguration represents a single invocation of the runner over the
// suite of a test case.
type RunConfiguration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// Paths are the inputs, relative to the extracted archive. Defaults to ".".
	Paths []string `yaml:"paths,omitempty"`

	// XFail and XFailNot are ';' separated test lists, as given to --xfail.
	XFail    string `yaml:"xfail,omitempty"`
	XFailNot string `yaml:"xfail_not,omitempty"`

	// Filter and FilterOut are regexes on full test names.
	Filter    string `yaml:"filter,omitempty"`
	FilterOut string `yaml:"filter_out,omitempty"`

	// Params are suite parameters.
	Params map[string]string `yaml:"params,omitempty"`

	// Workers defaults to 2.
	Workers int `yaml:"workers,omitempty"`

	// MaxFailures stops the run after this many failures.
	MaxFailures int `yaml:"max_failures,omitempty"`

	// TimeoutSeconds overrides the suite timeout.
	TimeoutSeconds int `yaml:"timeout,omitempty"`

	// ExpectedResults maps full test names to their result code.
	// Every discovered test must be listed.
	ExpectedResults map[string]lit.ResultCode `yaml:"expected_results"`

	// ExpectedOutput maps full test names to text their output must contain.
	ExpectedOutput map[string]string `yaml:"expected_output,omitempty"`

	// ExpectedErrors lists any expected error messages for this configuration.
	ExpectedErrors []string `yaml:"expected_errors,omitempty"`
}

// TestCase represents a single test scenario.
type TestCase struct {
	// Name is the archive name without extension.
	Name string `yaml:"-"`

	// Files holds the suite files of the archive, keyed by relative path.
	Files map[string][]byte `yaml:"-"`

	// RunConfigurations defines the runs to perform over the suite.
	RunConfigurations []RunConfiguration `yaml:"run_configurations"`
}
