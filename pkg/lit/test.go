package lit

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/715d/golit/pkg/boolexpr"
)

// Suite is a named group of tests rooted at the directory holding lit.cfg.yaml.
type Suite struct {
	// Name is the suite name used in full test names.
	Name string

	// SourceRoot is the directory containing the suite config.
	SourceRoot string

	// ExecRoot is the directory where test outputs are written.
	ExecRoot string

	// Config is the suite level configuration.
	Config *Config
}

// Test is a single discovered test.
type Test struct {
	Suite *Suite

	// PathInSuite is the test path relative to the suite root, split into components.
	PathInSuite []string

	// Config is the effective configuration for the directory holding the test.
	Config *Config

	// XFails holds expressions under which the test is expected to fail.
	// "*" means always.
	XFails []string

	// XFailNot overrides XFails and forces the test to be expected to pass.
	XFailNot bool

	// Result is set once the test has been executed, excluded or skipped.
	Result *Result
}

// Name returns the test path within its suite, joined with '/'.
func (t *Test) Name() string {
	return strings.Join(t.PathInSuite, "/")
}

// FullName returns "<suite> :: <path>".
func (t *Test) FullName() string {
	return t.Suite.Name + " :: " + t.Name()
}

// SourcePath returns the absolute path of the test file.
func (t *Test) SourcePath() string {
	return filepath.Join(append([]string{t.Suite.SourceRoot}, t.PathInSuite...)...)
}

// ExecPath returns the path of the test inside the exec root.
func (t *Test) ExecPath() string {
	return filepath.Join(append([]string{t.Suite.ExecRoot}, t.PathInSuite...)...)
}

// IsExpectedToFail evaluates the XFAIL expressions of the test, plus any
// extra ones found in the test file, against the available features and the
// target triple.
func (t *Test) IsExpectedToFail(extra ...string) (bool, error) {
	if t.XFailNot {
		return false, nil
	}
	var features []string
	var triple string
	if t.Config != nil {
		features = t.Config.AvailableFeatures
		triple = t.Config.TargetTriple
	}
	for _, expr := range slices.Concat(t.XFails, extra) {
		if expr == "*" {
			return true, nil
		}
		ok, err := boolexpr.Evaluate(expr, features, triple)
		if err != nil {
			return false, fmt.Errorf("XFAIL %q: %w", expr, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Format executes a test and produces its result.
type Format interface {
	Execute(ctx context.Context, t *Test) *Result
}

// ParseNameList splits a ';' separated list of test names, dropping empty entries.
func ParseNameList(s string) []string {
	var names []string
	for name := range strings.SplitSeq(s, ";") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ApplyXFail marks tests named in xfail as always expected to fail and tests
// named in xfailNot as expected to pass. Names match either the path in the
// suite or the full name.
func ApplyXFail(tests []*Test, xfail, xfailNot []string) {
	if len(xfail) == 0 && len(xfailNot) == 0 {
		return
	}
	xfailSet := toSet(xfail)
	xfailNotSet := toSet(xfailNot)
	for _, t := range tests {
		name, full := t.Name(), t.FullName()
		if _, ok := xfailSet[name]; ok {
			t.XFails = append(t.XFails, "*")
		} else if _, ok := xfailSet[full]; ok {
			t.XFails = append(t.XFails, "*")
		}
		if _, ok := xfailNotSet[name]; ok {
			t.XFailNot = true
		} else if _, ok := xfailNotSet[full]; ok {
			t.XFailNot = true
		}
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
