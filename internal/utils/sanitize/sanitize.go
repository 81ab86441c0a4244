package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes all HTML tags and attributes.
// bluemonday.Policy is read-only after build, so it is shared across goroutines;
// never call mutating helpers (AddAttr, AllowElements) on it after init.
var strict = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// Clean strips HTML from user text and normalises whitespace while keeping line breaks.
// Content bodies, prompts and template text pass through here before storage.
//
// Examples:
//   - "<p>hi</p>" -> "hi"
//   - "<b>a</b> <b>b</b>" -> "a b"
//   - "&nbsp;test" -> "test"
func Clean(s string) string {
	out := strict.Sanitize(s)
	out = html.UnescapeString(out)
	out = strings.ReplaceAll(out, " ", " ")

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Line is Clean for single-line fields such as names and titles.
func Line(s string) string {
	return strings.Join(strings.Fields(Clean(s)), " ")
}

// WordCount counts whitespace separated words in already cleaned text.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
