package filecheck

import (
	"fmt"
	"maps"
	"strings"
)

// DefaultPrefix is used when no prefixes are configured.
const DefaultPrefix = "CHECK"

// Options configures how check files are parsed and matched.
type Options struct {
	// Prefixes select the directives to honour. Defaults to CHECK.
	Prefixes []string

	// StrictWhitespace disables canonicalisation of horizontal whitespace.
	StrictWhitespace bool

	// MatchFullLines requires every positive pattern to match a whole line.
	MatchFullLines bool

	// AllowEmpty accepts an empty input.
	AllowEmpty bool

	// ImplicitCheckNot patterns must not appear anywhere between matches.
	ImplicitCheckNot []string

	// Defines are initial variable values, usable as [[NAME]].
	Defines map[string]string
}

// step is a run of DAG and NOT directives followed by a positive directive.
// The last step of a checker has no positive directive.
type step struct {
	dags     []*Directive
	nots     []*Directive
	positive *Directive
}

// Checker holds a parsed check file.
type Checker struct {
	opts       Options
	directives []*Directive
	steps      []step
}

// Compile parses the check file data, named name in diagnostics.
func Compile(name string, data []byte, opts Options) (*Checker, error) {
	if len(opts.Prefixes) == 0 {
		opts.Prefixes = []string{DefaultPrefix}
	}
	if err := validatePrefixes(opts.Prefixes); err != nil {
		return nil, err
	}
	for v := range opts.Defines {
		if !varNamePattern.MatchString(v) {
			return nil, fmt.Errorf("invalid variable name in -D%s", v)
		}
	}

	directives, err := parseDirectives(name, data, &opts)
	if err != nil {
		return nil, err
	}

	implicit := make([]*Directive, 0, len(opts.ImplicitCheckNot))
	for _, text := range opts.ImplicitCheckNot {
		source := "-implicit-check-not='" + text + "'"
		d := &Directive{
			Prefix: "IMPLICIT-CHECK",
			Kind:   KindNot,
			File:   "command line",
			Line:   1,
			Col:    len("-implicit-check-not='") + 1,
			Source: source,
		}
		p, err := parsePattern(text, 1, false, &Options{StrictWhitespace: opts.StrictWhitespace})
		if err != nil {
			return nil, d.errorf("%v", err)
		}
		d.pattern = p
		implicit = append(implicit, d)
	}

	return &Checker{
		opts:       opts,
		directives: directives,
		steps:      buildSteps(directives, implicit),
	}, nil
}

func buildSteps(directives, implicit []*Directive) []step {
	var steps []step
	var cur step
	for _, d := range directives {
		switch d.Kind {
		case KindDAG:
			cur.dags = append(cur.dags, d)
		case KindNot:
			cur.nots = append(cur.nots, d)
		default:
			cur.positive = d
			cur.nots = append(cur.nots, implicit...)
			steps = append(steps, cur)
			cur = step{}
		}
	}
	cur.nots = append(cur.nots, implicit...)
	return append(steps, cur)
}

// Directives returns the parsed directives in file order.
func (c *Checker) Directives() []*Directive {
	return c.directives
}

// Check matches input, named inputName in diagnostics, against the check
// file. It returns an *Error describing the first mismatch.
func (c *Checker) Check(inputName string, input []byte) error {
	if len(input) == 0 && !c.opts.AllowEmpty {
		return fmt.Errorf("error: FileCheck input '%s' is empty", inputName)
	}

	buf := string(input)
	if !c.opts.StrictWhitespace {
		buf = whitespaceRun.ReplaceAllString(buf, " ")
	}

	vars := make(map[string]string, len(c.opts.Defines))
	maps.Copy(vars, c.opts.Defines)

	m := &matcher{
		buf:       buf,
		inputName: inputName,
		opts:      &c.opts,
		vars:      vars,
	}
	return m.run(c.steps)
}

type matcher struct {
	buf       string
	inputName string
	opts      *Options
	vars      map[string]string

	// prevEnd is the end offset of the last positive match.
	prevEnd int
}

type match struct {
	start, end int
	defs       map[string]string
}

func (m *matcher) run(steps []step) error {
	pos := 0
	for _, st := range steps {
		regionStart := pos

		dagEnd := pos
		var ranges []match
		for _, d := range st.dags {
			mt, err := m.matchDAG(d, pos, ranges)
			if err != nil {
				return err
			}
			ranges = append(ranges, mt)
			dagEnd = max(dagEnd, mt.end)
		}

		regionEnd := len(m.buf)
		if st.positive != nil {
			start, end, err := m.matchPositive(st.positive, dagEnd)
			if err != nil {
				return err
			}
			regionEnd = start
			pos = end
		} else {
			pos = dagEnd
		}

		for _, d := range st.nots {
			if err := m.checkNot(d, regionStart, regionEnd); err != nil {
				return err
			}
		}
	}
	return nil
}

// find searches buf[from:to] for the pattern of d. Full-line patterns
// only match between line boundaries of the whole input.
func (m *matcher) find(d *Directive, from, to int) (match, bool, error) {
	re, groups, err := d.pattern.compile(m.vars, m.opts)
	if err != nil {
		return match{}, false, d.errorf("%v", err)
	}
	for base := from; base <= to; {
		loc := re.FindStringSubmatchIndex(m.buf[base:to])
		if loc == nil {
			return match{}, false, nil
		}
		start, end := base+loc[0], base+loc[1]
		if d.pattern.fullLine && !m.isLine(start, end) {
			nl := strings.IndexByte(m.buf[start:to], '\n')
			if nl < 0 {
				return match{}, false, nil
			}
			base = start + nl + 1
			continue
		}

		mt := match{start: start, end: end}
		for idx, name := range groups {
			if idx > 0 && loc[2*idx] >= 0 {
				if mt.defs == nil {
					mt.defs = make(map[string]string, len(groups))
				}
				mt.defs[name] = m.buf[base+loc[2*idx] : base+loc[2*idx+1]]
			}
		}
		return mt, true, nil
	}
	return match{}, false, nil
}

// isLine reports whether buf[start:end] starts and ends on line boundaries.
func (m *matcher) isLine(start, end int) bool {
	return (start == 0 || m.buf[start-1] == '\n') && (end == len(m.buf) || m.buf[end] == '\n')
}

func (m *matcher) commit(mt match) {
	maps.Copy(m.vars, mt.defs)
}

func (m *matcher) matchPositive(d *Directive, from int) (int, int, error) {
	switch d.Kind {
	case KindEmpty:
		nl := strings.IndexByte(m.buf[from:], '\n')
		if nl < 0 {
			return 0, 0, m.notFound(d, from)
		}
		lineStart := from + nl + 1
		if lineStart >= len(m.buf) || m.buf[lineStart] != '\n' {
			return 0, 0, m.notFound(d, from)
		}
		m.prevEnd = lineStart
		return lineStart, lineStart, nil

	case KindCount:
		cur, first := from, from
		for i := range d.Count {
			mt, ok, err := m.find(d, cur, len(m.buf))
			if err != nil {
				return 0, 0, err
			}
			if !ok {
				return 0, 0, m.notFound(d, cur)
			}
			if i == 0 {
				first = mt.start
			}
			m.commit(mt)
			cur = mt.end
		}
		m.prevEnd = cur
		return first, cur, nil
	}

	mt, ok, err := m.find(d, from, len(m.buf))
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, m.notFound(d, from)
	}

	switch d.Kind {
	case KindNext:
		switch n := strings.Count(m.buf[m.prevEnd:mt.start], "\n"); {
		case n == 0:
			return 0, 0, m.withNote(d.errorf("%s: is on the same line as previous match", d.Name()), mt.start, "'next' match was here")
		case n > 1:
			return 0, 0, m.withNote(d.errorf("%s: is not on the line after the previous match", d.Name()), mt.start, "'next' match was here")
		}
	case KindSame:
		if strings.Contains(m.buf[m.prevEnd:mt.start], "\n") {
			return 0, 0, m.withNote(d.errorf("%s: is not on the same line as the previous match", d.Name()), mt.start, "'same' match was here")
		}
	}

	m.commit(mt)
	m.prevEnd = mt.end
	return mt.start, mt.end, nil
}

// matchDAG finds the first match of d at or after from that does not
// overlap a match of an earlier DAG directive in the same group.
func (m *matcher) matchDAG(d *Directive, from int, taken []match) (match, error) {
	for s := from; s <= len(m.buf); {
		mt, ok, err := m.find(d, s, len(m.buf))
		if err != nil {
			return match{}, err
		}
		if !ok {
			break
		}
		next := -1
		for _, r := range taken {
			if mt.start < r.end && r.start < mt.end || mt.start == r.start {
				next = max(next, r.end)
			}
		}
		if next < 0 {
			m.commit(mt)
			return mt, nil
		}
		if next <= mt.start {
			next = mt.start + 1
		}
		s = next
	}
	return match{}, m.notFound(d, from)
}

func (m *matcher) checkNot(d *Directive, start, end int) error {
	if start > end {
		return nil
	}
	mt, ok, err := m.find(d, start, end)
	if err != nil {
		return err
	}
	if ok {
		return m.withNote(d.errorf("%s: excluded string found in input", d.Name()), mt.start, "found here")
	}
	return nil
}

func (m *matcher) notFound(d *Directive, from int) error {
	return m.withNote(d.errorf("%s: expected string not found in input", d.Name()), from, "scanning from here")
}

func (m *matcher) withNote(e *Error, off int, msg string) *Error {
	line, col, source := m.locate(off)
	e.Note = &Note{File: m.inputName, Line: line, Col: col, Message: msg, Source: source}
	return e
}

// locate converts a byte offset into a 1-based line and column and the text
// of that line.
func (m *matcher) locate(off int) (int, int, string) {
	off = min(off, len(m.buf))
	line := 1 + strings.Count(m.buf[:off], "\n")
	lineStart := strings.LastIndexByte(m.buf[:off], '\n') + 1
	lineEnd := len(m.buf)
	if i := strings.IndexByte(m.buf[off:], '\n'); i >= 0 {
		lineEnd = off + i
	}
	return line, off - lineStart + 1, m.buf[lineStart:lineEnd]
}
