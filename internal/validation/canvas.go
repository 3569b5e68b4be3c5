package validation

import (
	"github.com/easelkit/easel/internal/expressions"
	"github.com/easelkit/easel/pkg/schema"
)

// CanvasValidator orchestrates the three-stage save/deploy pipeline:
// 1. Document (JSON Schema over the wire shape)
// 2. Structure (branching and split/join rules)
// 3. Expression lint (CEL / jq / expr compile checks)
type CanvasValidator struct {
	document *DocumentValidator
	cel      expressions.Engine
	jq       expressions.Engine
	expr     expressions.Engine
}

// NewCanvasValidator builds the pipeline with fresh expression engines.
func NewCanvasValidator() (*CanvasValidator, error) {
	doc, err := NewDocumentValidator()
	if err != nil {
		return nil, err
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &CanvasValidator{
		document: doc,
		cel:      cel,
		jq:       expressions.NewGoJQEngine(),
		expr:     expressions.NewExprEngine(),
	}, nil
}

// Validate runs the full pipeline on a wire document. Document errors
// short-circuit: a malformed shape makes the later stages meaningless.
// A structure violation likewise skips the expression lint, mirroring the
// interactive flow where structure is fixed before parameters.
func (cv *CanvasValidator) Validate(doc schema.WorkflowImport) *schema.ValidationResult {
	result := cv.document.Validate(doc)
	if !result.Valid() {
		return result
	}

	if issue := CheckGraphStructure(doc.Graph.Nodes, doc.Graph.Edges); issue != nil {
		result.AddNodeError(issue.Slug, issue.Code, issue.Message)
		return result
	}

	result.Merge(lintExpressions(doc.Graph, cv.cel, cv.jq, cv.expr))
	return result
}

// ValidateGraph validates a bare graph with no workflow metadata.
func (cv *CanvasValidator) ValidateGraph(g schema.Graph) *schema.ValidationResult {
	return cv.Validate(schema.WorkflowImport{Graph: g})
}
