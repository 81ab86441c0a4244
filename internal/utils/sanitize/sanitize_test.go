package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "leading/trailing artefacts", input: "<p>hi</p>", want: "hi"},
		{name: "double spaces inside text", input: "<b>a</b> <b>b</b>", want: "a b"},
		{name: "removes script tags", input: `  <script>alert('xss')</script>Hello world  `, want: "Hello world"},
		{name: "image with onerror", input: `<img src=x onerror=alert(1)><p>Hello <b>world</b></p>`, want: "Hello world"},
		{name: "keeps line breaks", input: "  # Heading\n**bold**   text  ", want: "# Heading\n**bold** text"},
		{name: "non-breaking space", input: "&nbsp;test", want: "test"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.input)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.Contains(got, "<script") || strings.Contains(got, "onerror"))
		})
	}
}

func TestLine(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Line("  <b>Ada</b>\n  Lovelace "))
	assert.Equal(t, "Acme", Line("<i>Acme</i>"))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 3, WordCount("one two\nthree"))
	assert.Equal(t, 2, WordCount("  spaced    out "))
}
