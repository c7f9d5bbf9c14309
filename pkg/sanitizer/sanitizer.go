package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reControlChars = regexp.MustCompile(`[\x00-\x1f\x7f]+`)
	reMultiSpace   = regexp.MustCompile(`\s+`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func stripControlChars(s string) string {
	return reControlChars.ReplaceAllString(s, "")
}

func collapseSpaces(s string) string {
	return reMultiSpace.ReplaceAllString(s, " ")
}

// SanitizeIdentifier normalizes opaque identifiers (court ids, principal ids,
// group ids) before validation. Identifiers are tokens, not prose, so all
// whitespace is removed rather than collapsed.
func SanitizeIdentifier(input string) string {
	p := Pipeline{
		stripControlChars,
		func(s string) string { return reMultiSpace.ReplaceAllString(s, "") },
	}
	return p.Apply(input)
}

// SanitizeLabel normalizes free-text labels: control characters stripped,
// inner whitespace collapsed, outer whitespace trimmed.
func SanitizeLabel(input string) string {
	p := Pipeline{
		stripControlChars,
		collapseSpaces,
		trim,
	}
	return p.Apply(input)
}
