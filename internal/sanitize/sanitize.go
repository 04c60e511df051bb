// Package sanitize turns model generated markdown into plain chat text.
package sanitize

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	blockBreaks = regexp.MustCompile(`<br\s*/?>|</?p>|</?div>|</?pre>|</?h[1-6]>|</?blockquote>`)
	listItems   = regexp.MustCompile(`<li>`)
	blankLines  = regexp.MustCompile(`\n\s*\n+`)
)

// Policy strips markdown and HTML from text.
type Policy struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewPlainTextPolicy returns a Policy that keeps no markup at all.
func NewPlainTextPolicy() *Policy {
	return &Policy{
		policy:   bluemonday.StrictPolicy(),
		markdown: goldmark.New(),
	}
}

// Text renders text as markdown and returns the visible characters, with
// block elements kept as line breaks. If rendering fails the input is
// returned unchanged.
func (p *Policy) Text(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}

	out := blockBreaks.ReplaceAllString(buf.String(), "\n")
	out = listItems.ReplaceAllString(out, "- ")
	out = p.policy.Sanitize(out)
	out = blankLines.ReplaceAllString(out, "\n\n")
	out = html.UnescapeString(out)

	return strings.TrimSpace(out)
}
