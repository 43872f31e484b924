package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/golit/pkg/filecheck"
)

const xfailChecks = `
CHECK-FILTER: Testing: 3 tests
CHECK-FILTER-DAG: XFAIL: top-level-suite :: false.txt
CHECK-FILTER-DAG: XFAIL: top-level-suite :: false2.txt
CHECK-FILTER-DAG: PASS: top-level-suite :: true.txt
`

// copySuite copies a suite from testdata so Output directories stay out of
// the source tree.
func copySuite(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.CopyFS(dir, os.DirFS(filepath.Join("testdata", name))))
	return dir
}

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func runLit(t *testing.T, env map[string]string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(t.Context(), args, &stdout, &stderr, envOf(env))
	return code, stdout.String(), stderr.String()
}

func requireMatches(t *testing.T, checks, prefix, output string) {
	t.Helper()
	c, err := filecheck.Compile("checks", []byte(checks), filecheck.Options{Prefixes: []string{prefix}})
	require.NoError(t, err)
	require.NoError(t, c.Check("stdout", []byte(output)), output)
}

func TestXFailList(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{
			name: "flag",
			args: []string{"--xfail", "false.txt;false2.txt"},
		},
		{
			name: "environment",
			env:  map[string]string{"LIT_XFAIL": "false.txt;false2.txt"},
		},
		{
			name: "full_names",
			args: []string{"--xfail", "top-level-suite :: false.txt;top-level-suite :: false2.txt"},
		},
		{
			name: "lit_opts",
			env:  map[string]string{"LIT_OPTS": "--xfail=false.txt;false2.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := copySuite(t, "xfail-cl")
			code, stdout, stderr := runLit(t, tt.env, append(tt.args, dir)...)
			require.Equal(t, 0, code, stderr)
			requireMatches(t, xfailChecks, "CHECK-FILTER", stdout)
		})
	}
}

func TestXFailNot(t *testing.T) {
	dir := copySuite(t, "xfail-cl")
	env := map[string]string{"LIT_XFAIL": "false.txt;false2.txt"}

	code, stdout, _ := runLit(t, env, "--xfail-not", "false2.txt", dir)
	require.Equal(t, exitFailures, code)
	requireMatches(t, `
CHECK-DAG: XFAIL: top-level-suite :: false.txt
CHECK-DAG: FAIL: top-level-suite :: false2.txt
CHECK: Failed Tests (1):
CHECK-NEXT: top-level-suite :: false2.txt
CHECK: Total Discovered Tests: 3
`, "CHECK", stdout)
}

func TestFlagOverridesEnvironment(t *testing.T) {
	dir := copySuite(t, "xfail-cl")
	env := map[string]string{"LIT_XFAIL": "true.txt"}

	code, stdout, _ := runLit(t, env, "--xfail", "false.txt;false2.txt", dir)
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "PASS: top-level-suite :: true.txt")
}

func TestFailuresExitCode(t *testing.T) {
	dir := copySuite(t, "xfail-cl")
	code, stdout, _ := runLit(t, nil, dir)
	require.Equal(t, exitFailures, code)
	requireMatches(t, `
CHECK: Testing: 3 tests
CHECK: Failed Tests (2):
CHECK-NEXT: top-level-suite :: false.txt
CHECK-NEXT: top-level-suite :: false2.txt
CHECK: Passed: 1 (33.33%)
CHECK-NEXT: Failed: 2 (66.67%)
`, "CHECK", stdout)
}

func TestQuietShowsFailures(t *testing.T) {
	dir := copySuite(t, "xfail-cl")
	code, stdout, _ := runLit(t, nil, "-q", dir)
	require.Equal(t, exitFailures, code)
	require.NotContains(t, stdout, "Testing:")
	require.NotContains(t, stdout, "PASS: top-level-suite :: true.txt")
	requireMatches(t, `
CHECK-DAG: FAIL: top-level-suite :: false.txt (
CHECK-DAG: FAIL: top-level-suite :: false2.txt (
CHECK: Failed Tests (2):
`, "CHECK", stdout)
}

func TestFilter(t *testing.T) {
	dir := copySuite(t, "xfail-cl")
	code, stdout, _ := runLit(t, nil, "--filter", "true", dir)
	require.Equal(t, 0, code)
	requireMatches(t, `
CHECK: Testing: 1 of 3 tests, 1 workers
CHECK: PASS: top-level-suite :: true.txt (1 of 1)
CHECK-NOT: FAIL
CHECK: Excluded: 2
`, "CHECK", stdout)
}

func TestSingleFile(t *testing.T) {
	dir := copySuite(t, "xfail-cl")
	code, stdout, _ := runLit(t, nil, "-q", filepath.Join(dir, "true.txt"))
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Total Discovered Tests: 1")
	require.NotContains(t, stdout, "Testing Time")
}

func TestOutputFile(t *testing.T) {
	dir := copySuite(t, "xfail-cl")
	out := filepath.Join(t.TempDir(), "results.json")
	code, _, stderr := runLit(t, nil, "--xfail", "false.txt;false2.txt", "-o", out, dir)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var report struct {
		Tests []struct {
			Name string `json:"name"`
			Code string `json:"code"`
		} `json:"tests"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.Tests, 3)
	for _, tc := range report.Tests {
		if tc.Name == "top-level-suite :: true.txt" {
			require.Equal(t, "PASS", tc.Code)
		} else {
			require.Equal(t, "XFAIL", tc.Code)
		}
	}
}

func TestUsageErrors(t *testing.T) {
	dir := copySuite(t, "xfail-cl")

	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantErr string
	}{
		{name: "no_paths", wantErr: "no test paths given"},
		{name: "missing_path", args: []string{filepath.Join(dir, "nope")}, wantErr: "unable to find test suite"},
		{name: "bad_filter", args: []string{"--filter", "(", dir}, wantErr: "invalid --filter"},
		{name: "empty_selection", args: []string{"--filter", "nothing-matches", dir}, wantErr: "filter did not match any tests (of 3 discovered)"},
		{name: "bad_shard", args: []string{"--num-shards", "2", "--run-shard", "3", dir}, wantErr: "--run-shard must be between"},
		{name: "bad_env", env: map[string]string{"LIT_MAX_WORKERS": "many"}, args: []string{dir}, wantErr: "invalid LIT_MAX_WORKERS"},
		{name: "bad_color", args: []string{"--color", "sometimes", dir}, wantErr: "invalid --color"},
		{name: "unknown_flag", args: []string{"--frobnicate", dir}, wantErr: "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runLit(t, tt.env, tt.args...)
			require.Equal(t, exitError, code)
			require.Contains(t, stderr, tt.wantErr)
		})
	}
}
