// Package boolexpr evaluates the feature expressions used by REQUIRES,
// UNSUPPORTED and XFAIL test directives.
//
// Grammar:
//
//	expr  := or
//	or    := and ('||' and)*
//	and   := not ('&&' not)*
//	not   := '!' not | '(' or ')' | 'true' | 'false' | ident
//	ident := ([-+=._:a-zA-Z0-9] | '{{' regex '}}')+
//
// An identifier is true when it names an available feature. Identifiers
// containing {{regex}} segments are true when any feature matches the whole
// pattern. When a target triple is given, a plain identifier is also true
// when it is a substring of the triple.
package boolexpr

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

var (
	tokenPattern = regexp.MustCompile(`^\s*([()]|&&|\|\||!|(?:[-+=._:a-zA-Z0-9]+|\{\{.+?\}\})+)`)

	// identCache holds compiled regexes for identifiers with {{...}} segments.
	identCache = xsync.NewMap[string, *regexp.Regexp]()
)

// Evaluate parses expr and evaluates it against features and triple.
func Evaluate(expr string, features []string, triple string) (bool, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return false, err
	}
	p := &parser{
		expr:     expr,
		tokens:   tokens,
		features: features,
		triple:   triple,
	}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos < len(p.tokens) {
		return false, p.errorf("<end of expression>")
	}
	return v, nil
}

// Validate reports whether expr is syntactically valid.
func Validate(expr string) error {
	_, err := Evaluate(expr, nil, "")
	return err
}

func tokenize(expr string) ([]string, error) {
	var tokens []string
	rest := expr
	for strings.TrimSpace(rest) != "" {
		m := tokenPattern.FindStringSubmatch(rest)
		if m == nil {
			return nil, fmt.Errorf("couldn't parse text: %q in expression %q", strings.TrimSpace(rest), expr)
		}
		tokens = append(tokens, m[1])
		rest = rest[len(m[0]):]
	}
	return tokens, nil
}

type parser struct {
	expr     string
	tokens   []string
	pos      int
	features []string
	triple   string
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	return p.tokens[p.pos], true
}

func (p *parser) accept(tok string) bool {
	if t, ok := p.peek(); ok && t == tok {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(expected string) error {
	have := "<end of expression>"
	if t, ok := p.peek(); ok {
		have = t
	}
	return fmt.Errorf("expected: %s, have: %q in expression %q", expected, have, p.expr)
}

func (p *parser) parseOr() (bool, error) {
	v, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.accept("||") {
		rhs, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		v = v || rhs
	}
	return v, nil
}

func (p *parser) parseAnd() (bool, error) {
	v, err := p.parseNot()
	if err != nil {
		return false, err
	}
	for p.accept("&&") {
		rhs, err := p.parseNot()
		if err != nil {
			return false, err
		}
		v = v && rhs
	}
	return v, nil
}

func (p *parser) parseNot() (bool, error) {
	if p.accept("!") {
		v, err := p.parseNot()
		return !v, err
	}
	if p.accept("(") {
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if !p.accept(")") {
			return false, p.errorf("')'")
		}
		return v, nil
	}

	tok, ok := p.peek()
	if !ok || !isIdentifier(tok) {
		return false, p.errorf("'!', '(', '{{', or identifier")
	}
	p.pos++
	switch tok {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return p.matchIdentifier(tok)
}

func (p *parser) matchIdentifier(ident string) (bool, error) {
	if !strings.Contains(ident, "{{") {
		if slices.Contains(p.features, ident) {
			return true, nil
		}
		return p.triple != "" && strings.Contains(p.triple, ident), nil
	}

	re, err := compileIdentifier(ident)
	if err != nil {
		return false, fmt.Errorf("identifier %q in expression %q: %w", ident, p.expr, err)
	}
	for _, f := range p.features {
		if re.MatchString(f) {
			return true, nil
		}
	}
	return false, nil
}

func isIdentifier(tok string) bool {
	switch tok {
	case "(", ")", "&&", "||", "!":
		return false
	}
	return true
}

// compileIdentifier turns "foo{{[0-9]+}}bar" into ^(?:foo(?:[0-9]+)bar)$.
func compileIdentifier(ident string) (*regexp.Regexp, error) {
	if re, ok := identCache.Load(ident); ok {
		return re, nil
	}

	var b strings.Builder
	b.WriteString("^(?:")
	rest := ident
	for rest != "" {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		b.WriteString(regexp.QuoteMeta(rest[:start]))
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			return nil, fmt.Errorf("unterminated '{{'")
		}
		b.WriteString("(?:" + rest[start+2:start+2+end] + ")")
		rest = rest[start+2+end+2:]
	}
	b.WriteString(")$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	re, _ = identCache.LoadOrStore(ident, re)
	return re, nil
}
