// Package filecheck verifies that a text input matches the patterns written
// in a check file, in the style of LLVM's FileCheck.
package filecheck

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Kind is the directive kind, selected by the suffix after the prefix.
type Kind int

const (
	KindPlain Kind = iota // CHECK:
	KindNext              // CHECK-NEXT:
	KindSame              // CHECK-SAME:
	KindNot               // CHECK-NOT:
	KindDAG               // CHECK-DAG:
	KindLabel             // CHECK-LABEL: matched like CHECK, the input is not split into blocks
	KindEmpty             // CHECK-EMPTY:
	KindCount             // CHECK-COUNT-n:
)

var kindSuffixes = map[string]Kind{
	"":       KindPlain,
	"-NEXT":  KindNext,
	"-SAME":  KindSame,
	"-NOT":   KindNot,
	"-DAG":   KindDAG,
	"-LABEL": KindLabel,
	"-EMPTY": KindEmpty,
}

// Directive is a single check line.
type Directive struct {
	Prefix string
	Kind   Kind
	Count  int // for KindCount

	// File, Line and Col locate the directive in the check file.
	File string
	Line int
	Col  int

	// Source is the full check file line, used in diagnostics.
	Source string

	pattern *pattern
}

// Name returns the directive as written, e.g. "CHECK-NEXT".
func (d *Directive) Name() string {
	switch d.Kind {
	case KindNext:
		return d.Prefix + "-NEXT"
	case KindSame:
		return d.Prefix + "-SAME"
	case KindNot:
		return d.Prefix + "-NOT"
	case KindDAG:
		return d.Prefix + "-DAG"
	case KindLabel:
		return d.Prefix + "-LABEL"
	case KindEmpty:
		return d.Prefix + "-EMPTY"
	case KindCount:
		return d.Prefix + "-COUNT-" + strconv.Itoa(d.Count)
	}
	return d.Prefix
}

// Pattern returns the pattern text of the directive.
func (d *Directive) Pattern() string {
	return d.pattern.raw
}

func (d *Directive) isPositive() bool {
	return d.Kind != KindNot && d.Kind != KindDAG
}

var prefixPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

func validatePrefixes(prefixes []string) error {
	seen := make(map[string]bool, len(prefixes))
	for _, p := range prefixes {
		if !prefixPattern.MatchString(p) || seen[p] {
			return fmt.Errorf("supplied check prefix %q is invalid: prefixes must be unique and start with a letter and contain only alphanumeric characters, hyphens and underscores", p)
		}
		seen[p] = true
	}
	return nil
}

// directiveRegexp matches the first directive on a line. A prefix preceded
// by a word character or '-' is part of another word and is ignored.
func directiveRegexp(prefixes []string) *regexp.Regexp {
	sorted := slices.Clone(prefixes)
	slices.SortFunc(sorted, func(a, b string) int { return len(b) - len(a) })
	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?:^|[^\w-])(` + strings.Join(quoted, "|") +
		`)(-NEXT|-SAME|-NOT|-DAG|-LABEL|-EMPTY|-COUNT-[0-9]+)?:`)
}

// parseDirectives reads all directives from a check file.
func parseDirectives(name string, data []byte, opts *Options) ([]*Directive, error) {
	re := directiveRegexp(opts.Prefixes)

	var directives []*Directive
	havePositive := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		m := re.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}

		d := &Directive{
			Prefix: line[m[2]:m[3]],
			File:   name,
			Line:   lineNo,
			Col:    m[2] + 1,
			Source: line,
		}
		suffix := ""
		if m[4] >= 0 {
			suffix = line[m[4]:m[5]]
		}
		if countStr, ok := strings.CutPrefix(suffix, "-COUNT-"); ok {
			n, err := strconv.Atoi(countStr)
			if err != nil || n <= 0 {
				return nil, d.errorf("invalid count in -COUNT specification on prefix '%s'", d.Prefix)
			}
			d.Kind, d.Count = KindCount, n
		} else {
			d.Kind = kindSuffixes[suffix]
		}

		text := line[m[1]:]
		if !(opts.StrictWhitespace && opts.MatchFullLines) {
			text = strings.TrimLeft(text, " \t")
		}
		text = strings.TrimRight(text, " \t\r")

		switch {
		case d.Kind == KindEmpty && text != "":
			return nil, d.errorf("found non-empty check string for empty check with prefix '%s:'", d.Prefix)
		case d.Kind != KindEmpty && text == "":
			return nil, d.errorf("found empty check string with prefix '%s:'", d.Prefix)
		}

		if (d.Kind == KindNext || d.Kind == KindSame || d.Kind == KindEmpty) && !havePositive {
			return nil, d.errorf("found '%s' without previous '%s: line", d.Name(), d.Prefix)
		}
		if d.isPositive() {
			havePositive = true
		}

		p, err := parsePattern(text, lineNo, opts.MatchFullLines && d.Kind != KindNot, opts)
		if err != nil {
			return nil, d.errorf("%v", err)
		}
		d.pattern = p
		directives = append(directives, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(directives) == 0 {
		return nil, noCheckStringsError(opts.Prefixes)
	}
	return directives, nil
}

func noCheckStringsError(prefixes []string) error {
	quoted := make([]string, len(prefixes))
	for i, p := range prefixes {
		quoted[i] = "'" + p + ":'"
	}
	if len(prefixes) == 1 {
		return fmt.Errorf("error: no check strings found with prefix %s", quoted[0])
	}
	return fmt.Errorf("error: no check strings found with prefixes %s", strings.Join(quoted, ", "))
}
