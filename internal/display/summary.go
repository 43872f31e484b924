package display

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/715d/golit/pkg/lit"
)

const slowestTests = 20

// Summary prints the slowest tests, the failure lists and the counts per
// result code. tests must all carry a result.
func (d *Display) Summary(tests []*lit.Test, elapsed time.Duration) {
	byCode := make(map[lit.ResultCode][]*lit.Test)
	for _, t := range tests {
		byCode[t.Result.Code] = append(byCode[t.Result.Code], t)
	}

	if d.opts.TimeTests {
		d.printSlowest(tests)
	}

	for _, code := range lit.AllCodes() {
		group := byCode[code]
		if !code.IsFailure() || len(group) == 0 {
			continue
		}
		slices.SortFunc(group, func(a, b *lit.Test) int {
			return strings.Compare(a.FullName(), b.FullName())
		})
		fmt.Fprintln(d.w, banner)
		fmt.Fprintf(d.w, "%s Tests (%d):\n", code.Label(), len(group))
		for _, t := range group {
			fmt.Fprintf(d.w, "  %s\n", t.FullName())
		}
		fmt.Fprintln(d.w)
	}

	if !d.opts.Quiet {
		fmt.Fprintf(d.w, "\nTesting Time: %.2fs\n", elapsed.Seconds())
	}
	fmt.Fprintf(d.w, "\nTotal Discovered Tests: %d\n", len(tests))

	type group struct {
		label string
		count int
	}
	var groups []group
	labelWidth, countWidth := 0, 0
	for _, code := range lit.AllCodes() {
		n := len(byCode[code])
		if n == 0 || (d.opts.Quiet && !code.IsFailure()) {
			continue
		}
		groups = append(groups, group{label: code.Label(), count: n})
		labelWidth = max(labelWidth, len(code.Label()))
		countWidth = max(countWidth, len(fmt.Sprint(n)))
	}
	for _, g := range groups {
		pct := float64(g.count) / float64(len(tests)) * 100
		fmt.Fprintf(d.w, "  %-*s: %*d (%.2f%%)\n", labelWidth, g.label, countWidth, g.count, pct)
	}
}

func (d *Display) printSlowest(tests []*lit.Test) {
	var timed []*lit.Test
	for _, t := range tests {
		if t.Result.Elapsed > 0 {
			timed = append(timed, t)
		}
	}
	if len(timed) == 0 {
		return
	}
	slices.SortStableFunc(timed, func(a, b *lit.Test) int {
		return cmp.Compare(b.Result.Elapsed, a.Result.Elapsed)
	})
	timed = timed[:min(len(timed), slowestTests)]

	fmt.Fprintf(d.w, "\nSlowest Tests:\n%s\n", strings.Repeat("-", 74))
	for _, t := range timed {
		fmt.Fprintf(d.w, "%.2fs: %s\n", t.Result.Elapsed.Seconds(), t.FullName())
	}
	fmt.Fprintln(d.w)
}

// jReport is the layout of the --output results file.
type jReport struct {
	Version string  `json:"__version__"`
	Elapsed float64 `json:"elapsed"`
	Tests   []jTest `json:"tests"`
}

type jTest struct {
	Name    string         `json:"name"`
	Code    lit.ResultCode `json:"code"`
	Output  string         `json:"output"`
	Elapsed float64        `json:"elapsed"`
}

// WriteReport writes the results of the executed tests as JSON to path.
// Excluded and skipped tests are left out.
func WriteReport(path, version string, tests []*lit.Test, elapsed time.Duration) error {
	report := jReport{
		Version: version,
		Elapsed: elapsed.Seconds(),
		Tests:   make([]jTest, 0, len(tests)),
	}
	for _, t := range tests {
		if t.Result.Code == lit.Excluded || t.Result.Code == lit.Skipped {
			continue
		}
		report.Tests = append(report.Tests, jTest{
			Name:    t.FullName(),
			Code:    t.Result.Code,
			Output:  t.Result.Output,
			Elapsed: t.Result.Elapsed.Seconds(),
		})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}
