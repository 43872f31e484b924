package display

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/715d/golit/pkg/lit"
)

func newTests(results map[string]lit.ResultCode, order ...string) []*lit.Test {
	suite := &lit.Suite{Name: "top-level-suite", Config: &lit.Config{}}
	tests := make([]*lit.Test, 0, len(order))
	for _, name := range order {
		tests = append(tests, &lit.Test{
			Suite:       suite,
			PathInSuite: []string{name},
			Result:      lit.NewResult(results[name], "output of "+name+"\n"),
		})
	}
	return tests
}

func TestDisplayRun(t *testing.T) {
	tests := newTests(map[string]lit.ResultCode{
		"true.txt":   lit.Pass,
		"false.txt":  lit.XFail,
		"false2.txt": lit.XFail,
	}, "true.txt", "false.txt", "false2.txt")

	var buf bytes.Buffer
	d := New(&buf, Options{}, 3, 3, 3)
	d.Header()
	for _, tc := range tests {
		d.Update(tc)
	}
	d.Finish()
	d.Summary(tests, 1500*time.Millisecond)

	want := `-- Testing: 3 tests, 3 workers --
PASS: top-level-suite :: true.txt (1 of 3)
XFAIL: top-level-suite :: false.txt (2 of 3)
XFAIL: top-level-suite :: false2.txt (3 of 3)

Testing Time: 1.50s

Total Discovered Tests: 3
  Passed           : 1 (33.33%)
  Expectedly Failed: 2 (66.67%)
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDisplayFailures(t *testing.T) {
	tests := newTests(map[string]lit.ResultCode{
		"a.txt": lit.Fail,
		"b.txt": lit.Pass,
		"c.txt": lit.XPass,
		"d.txt": lit.Excluded,
	}, "a.txt", "b.txt", "c.txt", "d.txt")

	var buf bytes.Buffer
	d := New(&buf, Options{Verbose: true}, 3, 4, 2)
	d.Header()
	for _, tc := range tests[:3] {
		d.Update(tc)
	}
	d.Summary(tests, 0)

	want := `-- Testing: 3 of 4 tests, 2 workers --
FAIL: top-level-suite :: a.txt (1 of 3)
******************** TEST 'top-level-suite :: a.txt' FAILED ********************
output of a.txt
********************
PASS: top-level-suite :: b.txt (2 of 3)
XPASS: top-level-suite :: c.txt (3 of 3)
******************** TEST 'top-level-suite :: c.txt' FAILED ********************
output of c.txt
********************
********************
Failed Tests (1):
  top-level-suite :: a.txt

********************
Unexpectedly Passed Tests (1):
  top-level-suite :: c.txt


Testing Time: 0.00s

Total Discovered Tests: 4
  Excluded           : 1 (25.00%)
  Passed             : 1 (25.00%)
  Failed             : 1 (25.00%)
  Unexpectedly Passed: 1 (25.00%)
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDisplaySuccinctAndQuiet(t *testing.T) {
	tests := newTests(map[string]lit.ResultCode{
		"a.txt": lit.Pass,
		"b.txt": lit.Fail,
	}, "a.txt", "b.txt")

	var buf bytes.Buffer
	d := New(&buf, Options{Succinct: true}, 2, 2, 1)
	for _, tc := range tests {
		d.Update(tc)
	}
	require.Equal(t, "FAIL: top-level-suite :: b.txt (2 of 2)\n", buf.String())

	buf.Reset()
	d = New(&buf, Options{Quiet: true}, 2, 2, 1)
	d.Header()
	for _, tc := range tests {
		d.Update(tc)
	}
	d.Summary(tests, time.Second)
	want := `FAIL: top-level-suite :: b.txt (2 of 2)
********************
Failed Tests (1):
  top-level-suite :: b.txt


Total Discovered Tests: 2
  Failed: 1 (50.00%)
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDisplayShowAll(t *testing.T) {
	tests := newTests(map[string]lit.ResultCode{"a.txt": lit.Pass}, "a.txt")

	var buf bytes.Buffer
	d := New(&buf, Options{ShowAll: true}, 1, 1, 1)
	d.Update(tests[0])
	require.Contains(t, buf.String(), "TEST 'top-level-suite :: a.txt' RESULTS")
	require.Contains(t, buf.String(), "output of a.txt\n")
}

func TestDisplayProgressBar(t *testing.T) {
	tests := newTests(map[string]lit.ResultCode{
		"a.txt": lit.Pass,
		"b.txt": lit.Fail,
	}, "a.txt", "b.txt")

	var buf bytes.Buffer
	d := New(&buf, Options{Succinct: true, ProgressWidth: 60}, 2, 2, 1)
	d.Update(tests[0])
	require.Contains(t, buf.String(), " 50% [")
	require.Contains(t, buf.String(), "1/2")

	d.Update(tests[1])
	d.Finish()
	out := buf.String()
	require.Contains(t, out, "FAIL: top-level-suite :: b.txt (2 of 2)\n")
	require.Contains(t, out, "100% [")
	require.True(t, strings.HasSuffix(out, "\r\x1b[K"))
}

func TestDisplayTimeTests(t *testing.T) {
	tests := newTests(map[string]lit.ResultCode{
		"fast.txt": lit.Pass,
		"slow.txt": lit.Pass,
	}, "fast.txt", "slow.txt")
	tests[0].Result.Elapsed = 100 * time.Millisecond
	tests[1].Result.Elapsed = 2 * time.Second

	var buf bytes.Buffer
	New(&buf, Options{TimeTests: true}, 2, 2, 1).Summary(tests, 2*time.Second)

	out := buf.String()
	require.Contains(t, out, "Slowest Tests:")
	slow := strings.Index(out, "2.00s: top-level-suite :: slow.txt")
	fast := strings.Index(out, "0.10s: top-level-suite :: fast.txt")
	require.NotEqual(t, -1, slow)
	require.NotEqual(t, -1, fast)
	require.Less(t, slow, fast)
}

func TestWriteReport(t *testing.T) {
	tests := newTests(map[string]lit.ResultCode{
		"a.txt": lit.Pass,
		"b.txt": lit.Excluded,
		"c.txt": lit.XFail,
	}, "a.txt", "b.txt", "c.txt")

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, WriteReport(path, "dev", tests, time.Second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got jReport
	require.NoError(t, json.Unmarshal(data, &got))
	want := jReport{
		Version: "dev",
		Elapsed: 1,
		Tests: []jTest{
			{Name: "top-level-suite :: a.txt", Code: lit.Pass, Output: "output of a.txt\n"},
			{Name: "top-level-suite :: c.txt", Code: lit.XFail, Output: "output of c.txt\n"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestDisplayColor(t *testing.T) {
	tests := newTests(map[string]lit.ResultCode{"a.txt": lit.Fail}, "a.txt")

	var buf bytes.Buffer
	New(&buf, Options{Color: true}, 1, 1, 1).Update(tests[0])
	out := buf.String()
	require.Contains(t, out, "\x1b[")
	require.Contains(t, out, "FAIL")
	require.Contains(t, out, ": top-level-suite :: a.txt (1 of 1)\n")
}
