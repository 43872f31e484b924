// Package lit defines the test model shared by discovery, execution and reporting.
package lit

import (
	"fmt"
	"time"
)

// ResultCode is the outcome of a single test.
type ResultCode int

// Result codes in the order they appear in the summary.
const (
	Excluded ResultCode = iota
	Skipped
	Unsupported
	Pass
	FlakyPass
	XFail
	Unresolved
	Timeout
	Fail
	XPass
)

var codeNames = [...]string{
	Excluded:    "EXCLUDED",
	Skipped:     "SKIPPED",
	Unsupported: "UNSUPPORTED",
	Pass:        "PASS",
	FlakyPass:   "FLAKYPASS",
	XFail:       "XFAIL",
	Unresolved:  "UNRESOLVED",
	Timeout:     "TIMEOUT",
	Fail:        "FAIL",
	XPass:       "XPASS",
}

var codeLabels = [...]string{
	Excluded:    "Excluded",
	Skipped:     "Skipped",
	Unsupported: "Unsupported",
	Pass:        "Passed",
	FlakyPass:   "Passed With Retry",
	XFail:       "Expectedly Failed",
	Unresolved:  "Unresolved",
	Timeout:     "Timed Out",
	Fail:        "Failed",
	XPass:       "Unexpectedly Passed",
}

// AllCodes returns every result code in summary order.
func AllCodes() []ResultCode {
	codes := make([]ResultCode, len(codeNames))
	for i := range codeNames {
		codes[i] = ResultCode(i)
	}
	return codes
}

// String returns the name printed in front of each test line, e.g. "XFAIL".
func (c ResultCode) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("ResultCode(%d)", int(c))
	}
	return codeNames[c]
}

// Label returns the human readable name used in the summary.
func (c ResultCode) Label() string {
	if c < 0 || int(c) >= len(codeLabels) {
		return c.String()
	}
	return codeLabels[c]
}

// IsFailure reports whether the code makes the run unsuccessful.
func (c ResultCode) IsFailure() bool {
	switch c {
	case Fail, XPass, Unresolved, Timeout:
		return true
	}
	return false
}

// ParseResultCode parses a code name such as "PASS" or "XFAIL".
func ParseResultCode(s string) (ResultCode, error) {
	for i, name := range codeNames {
		if name == s {
			return ResultCode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown result code %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c ResultCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ResultCode) UnmarshalText(text []byte) error {
	code, err := ParseResultCode(string(text))
	if err != nil {
		return err
	}
	*c = code
	return nil
}

// Result is the outcome of executing a test.
type Result struct {
	Code     ResultCode
	Output   string
	Elapsed  time.Duration
	Attempts int
}

// InterruptedOutput is the output of tests stopped or never started because
// the run was cancelled.
const InterruptedOutput = "Skipped because the run was interrupted\n"

// NewResult creates a result with the given code and output.
func NewResult(code ResultCode, output string) *Result {
	return &Result{Code: code, Output: output}
}
