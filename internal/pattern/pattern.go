// Package pattern compiles module trigger declarations into anchored
// regular expressions. A literal trigger is prefixed with the configured
// command prefixes; a pre-built expression is used as declared.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyMatch is returned when a literal trigger would match every message.
var ErrEmptyMatch = errors.New("empty match text with no command prefixes")

// MatchSpec is a module's declared trigger: either literal text or a
// pre-built expression. The zero value is an empty literal.
type MatchSpec struct {
	text string
	re   *regexp.Regexp
}

// Literal declares a trigger text. The text is placed after the command
// prefixes without escaping, so it may contain expression syntax.
func Literal(text string) MatchSpec {
	return MatchSpec{text: text}
}

// Regexp declares a pre-built trigger. It is used as is and must carry its
// own anchoring.
func Regexp(re *regexp.Regexp) MatchSpec {
	return MatchSpec{re: re}
}

// IsRegexp reports whether m wraps a pre-built expression.
func (m MatchSpec) IsRegexp() bool {
	return m.re != nil
}

// String returns the declared text or the source of the pre-built expression.
func (m MatchSpec) String() string {
	if m.re != nil {
		return m.re.String()
	}
	return m.text
}

// Trigger is a compiled trigger expression.
type Trigger struct {
	re *regexp.Regexp
}

// Match reports whether text fires the trigger and returns the submatches
// (index 0 is the whole match).
func (t *Trigger) Match(text string) ([]string, bool) {
	m := t.re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return m, true
}

// MatchString reports whether text fires the trigger.
func (t *Trigger) MatchString(text string) bool {
	return t.re.MatchString(text)
}

// SubexpNames returns the names of the parenthesized subexpressions.
func (t *Trigger) SubexpNames() []string {
	return t.re.SubexpNames()
}

func (t *Trigger) String() string {
	return t.re.String()
}

// Compiler builds triggers against a fixed prefix set.
type Compiler struct {
	prefixes []string
}

// New returns a Compiler for the given command prefixes. Order is kept.
func New(prefixes ...string) *Compiler {
	p := make([]string, len(prefixes))
	copy(p, prefixes)
	return &Compiler{prefixes: p}
}

// Prefixes returns a copy of the configured prefixes.
func (c *Compiler) Prefixes() []string {
	p := make([]string, len(c.prefixes))
	copy(p, c.prefixes)
	return p
}

// Compile turns a match spec into a trigger anchored at the start of the
// message. Literal text becomes ^(?:p1|p2|...)text with every prefix
// escaped; with no prefixes it becomes ^text.
func (c *Compiler) Compile(spec MatchSpec) (*Trigger, error) {
	if spec.re != nil {
		return &Trigger{re: spec.re}, nil
	}

	expr, err := c.Expression(spec.text)
	if err != nil {
		return nil, err
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid trigger %q: %w", spec.text, err)
	}
	return &Trigger{re: re}, nil
}

// Expression returns the source expression Compile would build for text.
func (c *Compiler) Expression(text string) (string, error) {
	if len(c.prefixes) == 0 {
		if text == "" {
			return "", ErrEmptyMatch
		}
		return "^" + text, nil
	}

	escaped := make([]string, 0, len(c.prefixes))
	for _, p := range c.prefixes {
		escaped = append(escaped, regexp.QuoteMeta(p))
	}
	return "^(?:" + strings.Join(escaped, "|") + ")" + text, nil
}
