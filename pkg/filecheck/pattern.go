package filecheck

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type pieceKind int

const (
	pieceLiteral pieceKind = iota
	pieceRegex
	pieceDef  // [[NAME:regex]]
	pieceUse  // [[NAME]]
	pieceLine // [[@LINE]], [[@LINE+n]], [[@LINE-n]]
)

type piece struct {
	kind   pieceKind
	text   string // literal text, regex, or variable name
	regex  string // regex of a definition
	offset int    // @LINE offset
}

// pattern is a parsed check pattern. Variable uses are resolved when the
// pattern is matched, so the regexp is built per match.
type pattern struct {
	raw    string
	line   int
	pieces []piece
	static *regexp.Regexp // set when the pattern has no variable uses

	// fullLine anchors the pattern to whole input lines.
	fullLine bool
}

var (
	varNamePattern = regexp.MustCompile(`^\$?[A-Za-z_][A-Za-z0-9_]*$`)
	whitespaceRun  = regexp.MustCompile(`[ \t]+`)
)

// parsePattern parses raw, the text after a directive, found on check file
// line. fullLine anchors the pattern to whole lines.
func parsePattern(raw string, line int, fullLine bool, opts *Options) (*pattern, error) {
	p := &pattern{raw: raw, line: line, fullLine: fullLine}
	hasUse := false
	defined := make(map[string]bool)

	for i := 0; i < len(raw); {
		rest := raw[i:]
		switch {
		case strings.HasPrefix(rest, "{{"):
			end := strings.Index(rest[2:], "}}")
			if end < 0 {
				return nil, fmt.Errorf("found start of regex string with no end '}}'")
			}
			re := rest[2 : 2+end]
			if _, err := regexp.Compile(re); err != nil {
				return nil, fmt.Errorf("invalid regex: %w", err)
			}
			p.pieces = append(p.pieces, piece{kind: pieceRegex, text: re})
			i += 2 + end + 2

		case strings.HasPrefix(rest, "[["):
			end := strings.Index(rest[2:], "]]")
			if end < 0 {
				return nil, fmt.Errorf("invalid variable reference, no ]] found")
			}
			pc, err := parseSubstitution(rest[2 : 2+end])
			if err != nil {
				return nil, err
			}
			switch pc.kind {
			case pieceDef:
				defined[pc.text] = true
			case pieceUse:
				if defined[pc.text] {
					return nil, fmt.Errorf("variable %q used on the line that defines it", pc.text)
				}
				hasUse = true
			}
			p.pieces = append(p.pieces, pc)
			i += 2 + end + 2

		default:
			next := len(rest)
			if j := strings.Index(rest, "{{"); j >= 0 && j < next {
				next = j
			}
			if j := strings.Index(rest, "[["); j >= 0 && j < next {
				next = j
			}
			p.pieces = append(p.pieces, piece{kind: pieceLiteral, text: rest[:next]})
			i += next
		}
	}

	if !hasUse {
		re, _, err := p.compile(nil, opts)
		if err != nil {
			return nil, err
		}
		p.static = re
	}
	return p, nil
}

func parseSubstitution(body string) (piece, error) {
	if after, ok := strings.CutPrefix(body, "@LINE"); ok {
		if after == "" {
			return piece{kind: pieceLine}, nil
		}
		if after[0] != '+' && after[0] != '-' {
			return piece{}, fmt.Errorf("invalid @LINE expression %q", body)
		}
		n, err := strconv.Atoi(strings.TrimSpace(after[1:]))
		if err != nil {
			return piece{}, fmt.Errorf("invalid @LINE expression %q", body)
		}
		if after[0] == '-' {
			n = -n
		}
		return piece{kind: pieceLine, offset: n}, nil
	}

	if name, re, ok := strings.Cut(body, ":"); ok {
		if !varNamePattern.MatchString(name) {
			return piece{}, fmt.Errorf("invalid name in string variable definition %q", name)
		}
		if _, err := regexp.Compile(re); err != nil {
			return piece{}, fmt.Errorf("invalid regex in definition of %q: %w", name, err)
		}
		return piece{kind: pieceDef, text: name, regex: re}, nil
	}

	if !varNamePattern.MatchString(body) {
		return piece{}, fmt.Errorf("invalid name in string variable use %q", body)
	}
	return piece{kind: pieceUse, text: body}, nil
}

// compile builds the regexp for the pattern with the current variable
// values. It returns the variable name of each definition group, indexed by
// submatch number.
func (p *pattern) compile(vars map[string]string, opts *Options) (*regexp.Regexp, map[int]string, error) {
	if p.static != nil {
		return p.static, p.defGroups(), nil
	}

	var b strings.Builder
	b.WriteString("(?m)")
	if p.fullLine {
		b.WriteString("^")
		if !opts.StrictWhitespace {
			b.WriteString("[ \t]*")
		}
	}

	defIdx := 0
	for _, pc := range p.pieces {
		switch pc.kind {
		case pieceLiteral:
			b.WriteString(quoteLiteral(pc.text, opts.StrictWhitespace))
		case pieceRegex:
			b.WriteString("(?:" + pc.text + ")")
		case pieceDef:
			fmt.Fprintf(&b, "(?P<d%d>%s)", defIdx, pc.regex)
			defIdx++
		case pieceUse:
			value, ok := vars[pc.text]
			if !ok {
				return nil, nil, fmt.Errorf("undefined variable: %s", pc.text)
			}
			b.WriteString(regexp.QuoteMeta(value))
		case pieceLine:
			b.WriteString(strconv.Itoa(p.line + pc.offset))
		}
	}

	if p.fullLine {
		if !opts.StrictWhitespace {
			b.WriteString("[ \t]*")
		}
		b.WriteString("$")
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, p.defGroupsFor(re), nil
}

func (p *pattern) defGroups() map[int]string {
	return p.defGroupsFor(p.static)
}

func (p *pattern) defGroupsFor(re *regexp.Regexp) map[int]string {
	groups := make(map[int]string)
	defIdx := 0
	for _, pc := range p.pieces {
		if pc.kind != pieceDef {
			continue
		}
		groups[re.SubexpIndex(fmt.Sprintf("d%d", defIdx))] = pc.text
		defIdx++
	}
	return groups
}

func quoteLiteral(text string, strict bool) string {
	if strict {
		return regexp.QuoteMeta(text)
	}
	parts := whitespaceRun.Split(text, -1)
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return strings.Join(parts, "[ \t]+")
}
