package validation

import (
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/easelkit/easel/pkg/schema"
)

// graphSchemaJSON is the JSON Schema for the canonical wire document.
// Embedded as a constant to avoid filesystem dependencies. The kind enum
// here is the save/deploy gate for unknown kinds: the codec lets them
// through so bulk insertion can drop them one by one, but a persisted
// document must not contain any.
const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://easelkit.dev/schemas/canvas.json",
  "type": "object",
  "required": ["graph"],
  "properties": {
    "graph": {
      "type": "object",
      "required": ["nodes", "edges"],
      "properties": {
        "nodes": {
          "type": "array",
          "items": { "$ref": "#/$defs/node" }
        },
        "edges": {
          "type": "array",
          "items": { "$ref": "#/$defs/edge" }
        },
        "repeat_zones": {
          "type": "array",
          "items": { "$ref": "#/$defs/repeat_zone" }
        }
      },
      "additionalProperties": false
    },
    "workflow_id": { "type": "integer" },
    "slug": { "type": "string" },
    "workflow_slug": { "type": "string" },
    "display_name": { "type": "string" },
    "workflow_display_name": { "type": "string" },
    "description": { "type": "string" },
    "workflow_description": { "type": "string" },
    "version_name": { "type": "string" },
    "name": { "type": "string" },
    "mark_as_active": { "type": "boolean" }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["slug", "kind"],
      "properties": {
        "slug": { "type": "string", "minLength": 1 },
        "kind": {
          "type": "string",
          "enum": ["start", "end", "agent", "condition", "parallel_split",
                   "parallel_join", "state_update", "transform", "widget",
                   "note", "guardrail", "file_search", "vector_store_ingest",
                   "mcp_tool", "code_interpreter", "user_approval", "wait",
                   "http_request", "handoff", "subflow"]
        },
        "display_name": { "type": ["string", "null"] },
        "agent_key": { "type": ["string", "null"] },
        "is_enabled": { "type": "boolean" },
        "parameters": { "type": "object" },
        "metadata": { "type": "object" }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "source": { "type": "string", "minLength": 1 },
        "target": { "type": "string", "minLength": 1 },
        "condition": { "type": ["string", "null"] },
        "metadata": { "type": "object" }
      },
      "additionalProperties": false
    },
    "repeat_zone": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "label": { "type": ["string", "null"] },
        "bounds": {
          "type": "object",
          "properties": {
            "x": { "type": "number" },
            "y": { "type": "number" },
            "width": { "type": "number", "minimum": 0 },
            "height": { "type": "number", "minimum": 0 }
          },
          "additionalProperties": false
        },
        "node_slugs": {
          "type": "array",
          "items": { "type": "string" }
        },
        "metadata": { "type": "object" }
      },
      "additionalProperties": false
    }
  }
}`

// DocumentValidator checks a wire document against the canvas JSON Schema.
// Safe for concurrent use; the schema compiles once at construction.
type DocumentValidator struct {
	compiled *jsonschema.Schema
}

// NewDocumentValidator compiles the embedded canvas schema.
func NewDocumentValidator() (*DocumentValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal canvas schema: %w", err)
	}
	if err := c.AddResource("https://easelkit.dev/schemas/canvas.json", doc); err != nil {
		return nil, fmt.Errorf("add canvas schema resource: %w", err)
	}
	compiled, err := c.Compile("https://easelkit.dev/schemas/canvas.json")
	if err != nil {
		return nil, fmt.Errorf("compile canvas schema: %w", err)
	}
	return &DocumentValidator{compiled: compiled}, nil
}

// Validate serializes the document through the codec and checks the result
// against the canvas schema, so programmatically built graphs face exactly
// the wire contract.
func (v *DocumentValidator) Validate(doc schema.WorkflowImport) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	encoded, err := schema.EncodeWorkflowExport(doc)
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, "document cannot be serialized: "+err.Error())
		return result
	}
	value, err := jsonschema.UnmarshalJSON(strings.NewReader(string(encoded)))
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, "document cannot be re-read: "+err.Error())
		return result
	}

	if err := v.compiled.Validate(value); err != nil {
		for _, violation := range collectViolations(err) {
			result.AddError(violation.loc, schema.ErrCodeValidation, violation.msg)
		}
	}
	return result
}

type schemaViolation struct {
	loc string
	msg string
}

// collectViolations flattens a jsonschema error tree into leaf messages
// with their instance locations.
func collectViolations(err error) []schemaViolation {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []schemaViolation{{loc: "/", msg: err.Error()}}
	}
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []schemaViolation{{loc: loc, msg: verr.Error()}}
	}

	var out []schemaViolation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
