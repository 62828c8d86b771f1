package generator

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"code2diagram/internal/diagram"
)

func TestBuildPrompt_SelectsInstructionPerKind(t *testing.T) {
	wantKeyword := map[diagram.Kind]string{
		diagram.KindClass:     "classDiagram",
		diagram.KindFlowchart: "flowchart",
		diagram.KindSequence:  "sequenceDiagram",
		diagram.KindState:     "stateDiagram",
		diagram.KindER:        "erDiagram",
		diagram.KindGantt:     "gantt",
	}
	for _, k := range diagram.Kinds() {
		t.Run(string(k), func(t *testing.T) {
			p := BuildPrompt(diagram.Request{Code: "x = 1", Language: diagram.LangPython, Kind: k})
			assert.Contains(t, p, instruction(k))
			assert.Contains(t, p, wantKeyword[k])
			assert.NotContains(t, p, "Generate a "+string(k)+" diagram for this code.")
		})
	}
}

func TestBuildPrompt_FallbackMentionsKind(t *testing.T) {
	p := BuildPrompt(diagram.Request{Code: "fn main() {}", Language: diagram.LangRust, Kind: diagram.Kind("mindmap")})
	assert.Contains(t, p, "Generate a mindmap diagram for this code.")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	req := diagram.Request{Code: "class A: pass\nclass B(A): pass", Language: diagram.LangPython, Kind: diagram.KindClass}
	want := `Analyze the following Python code and generate a class diagram using Mermaid.js syntax.

` + instruction(diagram.KindClass) + `

Code:
class A: pass
class B(A): pass

Generate ONLY the Mermaid.js code without any additional explanation or text.`

	if diff := cmp.Diff(want, BuildPrompt(req)); diff != "" {
		t.Fatalf("prompt mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(BuildPrompt(req), BuildPrompt(req)); diff != "" {
		t.Fatalf("prompt not stable:\n%s", diff)
	}
}

func TestBuildPrompt_KeepsCodeVerbatim(t *testing.T) {
	code := "func f() {\n\treturn `%s %d`\n}"
	p := BuildPrompt(diagram.Request{Code: code, Language: diagram.LangGo, Kind: diagram.KindFlowchart})
	assert.True(t, strings.Contains(p, code))
}
