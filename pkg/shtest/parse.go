// Package shtest implements the shell test format: scripts whose RUN lines
// are executed by a shell, plus the executable format.
package shtest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/715d/golit/pkg/boolexpr"
)

// Script holds the directives parsed from a test file.
type Script struct {
	// Commands are the RUN commands, with line continuations joined.
	Commands []string

	// XFails are the XFAIL expressions.
	XFails []string

	// Requires are the REQUIRES expressions; all must hold.
	Requires []string

	// Unsupported are the UNSUPPORTED expressions; none may hold.
	Unsupported []string

	// AllowRetries is the ALLOW_RETRIES count, or -1 when absent.
	AllowRetries int
}

// ErrNoRunLines is returned by Script.Validate for tests without RUN lines.
var ErrNoRunLines = errors.New("Test has no 'RUN:' line")

// keywordPattern finds the first directive on a line. A keyword preceded by
// a word character or '-' (as in "CHECK-RUN:") is not a directive. A line
// holds at most one directive: its value runs to the end of the line, so a
// later keyword on the same line is part of that value.
var keywordPattern = regexp.MustCompile(`(?:^|[^\w-])(RUN:|XFAIL:|REQUIRES:|UNSUPPORTED:|ALLOW_RETRIES:|END\.)`)

// ParseFile parses the directives of the test file at path.
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse scans r for directives. Parsing stops at the first "END." directive.
func Parse(r io.Reader) (*Script, error) {
	script := &Script{AllowRetries: -1}
	continued := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		loc := keywordPattern.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		keyword := line[loc[2]:loc[3]]
		value := strings.TrimSpace(line[loc[3]:])

		if keyword == "END." {
			if value != "" {
				return nil, fmt.Errorf("line %d: 'END.' must be followed by nothing, got %q", lineNo, value)
			}
			break
		}

		switch keyword {
		case "RUN:":
			if continued {
				last := len(script.Commands) - 1
				script.Commands[last] = strings.TrimSuffix(script.Commands[last], `\`) + value
			} else {
				script.Commands = append(script.Commands, value)
			}
			continued = strings.HasSuffix(value, `\`)

		case "XFAIL:":
			list, err := parseExprList(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: XFAIL: %w", lineNo, err)
			}
			script.XFails = append(script.XFails, list...)

		case "REQUIRES:":
			list, err := parseExprList(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: REQUIRES: %w", lineNo, err)
			}
			script.Requires = append(script.Requires, list...)

		case "UNSUPPORTED:":
			list, err := parseExprList(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: UNSUPPORTED: %w", lineNo, err)
			}
			script.Unsupported = append(script.Unsupported, list...)

		case "ALLOW_RETRIES:":
			if script.AllowRetries >= 0 {
				return nil, fmt.Errorf("line %d: 'ALLOW_RETRIES:' appears more than once", lineNo)
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: 'ALLOW_RETRIES:' expects a non-negative integer, got %q", lineNo, value)
			}
			script.AllowRetries = n
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if continued {
		return nil, fmt.Errorf("Test has unterminated 'RUN:' lines (with '\\')")
	}
	return script, nil
}

// parseExprList splits a comma separated directive value and checks each
// expression. "*" is only meaningful for XFAIL but is accepted everywhere.
func parseExprList(value string) ([]string, error) {
	var exprs []string
	for item := range strings.SplitSeq(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if item != "*" {
			if err := boolexpr.Validate(item); err != nil {
				return nil, err
			}
		}
		exprs = append(exprs, item)
	}
	return exprs, nil
}

// Validate checks that the script can be executed.
func (s *Script) Validate() error {
	if len(s.Commands) == 0 {
		return ErrNoRunLines
	}
	return nil
}
