package generator

import (
	"regexp"
	"strings"

	"code2diagram/internal/diagram"
)

// fenceRe matches ``` fences. An info string such as "mermaid" is consumed
// only when it runs to the end of the line.
var fenceRe = regexp.MustCompile("```(?:[A-Za-z0-9_+-]*[ \t]*(?:\r?\n|$))?")

// Normalize turns raw model output into bare Mermaid text: code fences are
// removed wherever they appear, any preamble before the first dialect keyword
// is dropped, and surrounding whitespace is trimmed. Normalize(Normalize(s))
// equals Normalize(s).
func Normalize(raw string) string {
	text := fenceRe.ReplaceAllString(raw, "")
	if i := diagram.FindKeyword(text); i > 0 {
		text = text[i:]
	}
	return strings.TrimSpace(text)
}
