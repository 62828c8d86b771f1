package diagram

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keywords are the Mermaid dialect headers the service accepts. Matching is a
// heuristic gate, not a grammar check.
var Keywords = []string{
	"classDiagram",
	"flowchart",
	"graph",
	"sequenceDiagram",
	"stateDiagram",
	"erDiagram",
	"gantt",
}

// proseWords are keywords that are also ordinary English words. They only
// count when they open a line.
var proseWords = map[string]bool{"graph": true}

// ContainsKeyword reports whether any dialect keyword occurs anywhere in text.
func ContainsKeyword(text string) bool {
	for _, kw := range Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// HasHeader reports whether the first non-blank line of text starts with a dialect keyword.
func HasHeader(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return keywordAt(line, 0) != ""
	}
	return false
}

// FindKeyword returns the byte offset where the diagram body starts, or -1.
// A keyword opening a line wins over one embedded in prose; among those the
// earliest is chosen. Words in proseWords are never matched mid-line.
func FindKeyword(text string) int {
	lineStart := 0
	for lineStart <= len(text) {
		i := lineStart
		for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\r') {
			i++
		}
		if keywordAt(text, i) != "" {
			return i
		}
		next := strings.IndexByte(text[lineStart:], '\n')
		if next < 0 {
			break
		}
		lineStart += next + 1
	}

	best := -1
	for _, kw := range Keywords {
		if proseWords[kw] {
			continue
		}
		from := 0
		for {
			idx := strings.Index(text[from:], kw)
			if idx < 0 {
				break
			}
			idx += from
			if bounded(text, idx, len(kw)) {
				if best < 0 || idx < best {
					best = idx
				}
				break
			}
			from = idx + len(kw)
		}
	}
	return best
}

// keywordAt returns the keyword starting exactly at offset i, if it is word-bounded.
func keywordAt(text string, i int) string {
	if i >= len(text) {
		return ""
	}
	for _, kw := range Keywords {
		if strings.HasPrefix(text[i:], kw) && bounded(text, i, len(kw)) {
			return kw
		}
	}
	return ""
}

func bounded(text string, start, n int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end := start + n; end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
