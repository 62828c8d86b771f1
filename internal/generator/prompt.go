package generator

import (
	"fmt"

	"code2diagram/internal/diagram"
)

// instruction returns the kind-specific guidance for the model.
func instruction(kind diagram.Kind) string {
	switch kind {
	case diagram.KindClass:
		return "Generate a UML class diagram (Mermaid classDiagram) showing classes, their attributes, methods, and relationships (inheritance, associations, dependencies). Focus on the class structure and hierarchy."
	case diagram.KindFlowchart:
		return "Generate a flowchart (Mermaid flowchart) showing the control flow and program logic. Include decision points, processes, start/end points, and the flow of execution."
	case diagram.KindSequence:
		return "Generate a sequence diagram (Mermaid sequenceDiagram) showing method interactions and message passing between objects. Include lifelines, messages, and timing."
	case diagram.KindState:
		return "Generate a state diagram (Mermaid stateDiagram-v2) showing state transitions and behavior. Include states, transitions, and events."
	case diagram.KindER:
		return "Generate an entity-relationship diagram (Mermaid erDiagram) showing database entities, their attributes, and relationships."
	case diagram.KindGantt:
		return "Generate a Gantt chart (Mermaid gantt) showing project timeline, tasks, and dependencies."
	default:
		return fmt.Sprintf("Generate a %s diagram for this code.", kind)
	}
}

const promptTemplate = `Analyze the following %s code and generate a %s diagram using Mermaid.js syntax.

%s

Code:
%s

Generate ONLY the Mermaid.js code without any additional explanation or text.`

// BuildPrompt renders the request into the text sent to the model. The
// output depends only on the request.
func BuildPrompt(req diagram.Request) string {
	return fmt.Sprintf(promptTemplate, req.Language.Label(), req.Kind, instruction(req.Kind), req.Code)
}
