// Package diagram holds the domain vocabulary shared by generation and export:
// diagram kinds, source languages, export formats, Mermaid dialect keywords
// and the error taxonomy. It has no transport or infrastructure dependencies.
package diagram

import (
	"fmt"
	"strings"
)

// Kind is the diagram the caller asks the model to produce.
type Kind string

const (
	KindClass     Kind = "class"
	KindFlowchart Kind = "flowchart"
	KindSequence  Kind = "sequence"
	KindState     Kind = "state"
	KindER        Kind = "er"
	KindGantt     Kind = "gantt"
)

var kinds = []Kind{KindClass, KindFlowchart, KindSequence, KindState, KindER, KindGantt}

// Kinds lists every supported diagram kind in display order.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unsupported diagram type %q", s)
}

func (k Kind) Label() string {
	switch k {
	case KindClass:
		return "Class Diagram"
	case KindFlowchart:
		return "Flowchart"
	case KindSequence:
		return "Sequence Diagram"
	case KindState:
		return "State Diagram"
	case KindER:
		return "ER Diagram"
	case KindGantt:
		return "Gantt Chart"
	default:
		return string(k)
	}
}

func (k Kind) Description() string {
	switch k {
	case KindClass:
		return "UML class relationships and structure"
	case KindFlowchart:
		return "Control flow and program logic"
	case KindSequence:
		return "Method interactions and timing"
	case KindState:
		return "State transitions and behavior"
	case KindER:
		return "Entity-relationship database modeling"
	case KindGantt:
		return "Project timeline and dependencies"
	default:
		return ""
	}
}

// Language is the programming language of the submitted source code.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangGo         Language = "go"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangSwift      Language = "swift"
	LangKotlin     Language = "kotlin"
	LangRust       Language = "rust"
)

var languageLabels = map[Language]string{
	LangPython:     "Python",
	LangJavaScript: "JavaScript",
	LangTypeScript: "TypeScript",
	LangJava:       "Java",
	LangCPP:        "C++",
	LangCSharp:     "C#",
	LangGo:         "Go",
	LangRuby:       "Ruby",
	LangPHP:        "PHP",
	LangSwift:      "Swift",
	LangKotlin:     "Kotlin",
	LangRust:       "Rust",
}

var languages = []Language{
	LangPython, LangJavaScript, LangTypeScript, LangJava, LangCPP, LangCSharp,
	LangGo, LangRuby, LangPHP, LangSwift, LangKotlin, LangRust,
}

// Languages lists every supported source language in display order.
func Languages() []Language {
	return append([]Language(nil), languages...)
}

// ParseLanguage returns the Language named s.
func ParseLanguage(s string) (Language, error) {
	l := Language(s)
	if _, ok := languageLabels[l]; !ok {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return l, nil
}

func (l Language) Label() string {
	if label, ok := languageLabels[l]; ok {
		return label
	}
	return string(l)
}

// Format is the artifact type produced by the exporter.
type Format string

const (
	FormatSVG Format = "svg" // vector
	FormatPNG Format = "png" // raster
	FormatPDF Format = "pdf" // document
)

var formats = []Format{FormatSVG, FormatPNG, FormatPDF}

// Formats lists every export format.
func Formats() []Format {
	return append([]Format(nil), formats...)
}

// ParseFormat returns the Format named s.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if !f.Valid() {
		return "", fmt.Errorf("unsupported export format %q", s)
	}
	return f, nil
}

func (f Format) Valid() bool {
	switch f {
	case FormatSVG, FormatPNG, FormatPDF:
		return true
	}
	return false
}

// ContentType is the MIME type of an artifact in this format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Extension is the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// IsText reports whether the renderer emits a text document for this format.
func (f Format) IsText() bool {
	return f == FormatSVG
}

func (f Format) Label() string {
	return strings.ToUpper(string(f))
}

func (f Format) Description() string {
	switch f {
	case FormatSVG:
		return "Scalable Vector Graphics - Best for web and editing"
	case FormatPNG:
		return "Portable Network Graphics - Best for sharing and embedding"
	case FormatPDF:
		return "Portable Document Format - Best for printing and documentation"
	default:
		return ""
	}
}

// Request is a single generation request.
type Request struct {
	Code     string
	Language Language
	Kind     Kind
}

// ExportRequest is a single render request.
type ExportRequest struct {
	Source string
	Format Format
}
